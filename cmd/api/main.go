package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"worklist-sentinel/common"
	"worklist-sentinel/internal/store"
)

type server struct {
	store store.StatusStore
}

func newServer(store store.StatusStore) *server {
	return &server{store: store}
}

func main() {
	redisAddr := common.GetEnv("REDIS_ADDR", "localhost:6379")
	addr := common.GetEnv("API_ADDR", ":8080")
	statusTTL := common.ParseDuration(common.GetEnv("STATUS_TTL", "72h"), 72*time.Hour)

	statusStore := store.NewRedisStatusStore(redis.NewClient(&redis.Options{Addr: redisAddr}), "sentinel:run:", statusTTL)
	defer func() {
		if err := statusStore.Close(); err != nil {
			log.Printf("failed to close status store: %v", err)
		}
	}()

	srv := newServer(statusStore)

	mux := http.NewServeMux()
	mux.HandleFunc("/runs/", srv.handleRunStatus)
	mux.HandleFunc("/metrics", srv.handleMetrics)

	log.Printf("api listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

// handleRunStatus returns the status of a monitor run.
//
// Method: GET
// Path:   /runs/{runID} or /runs/latest
// Example:
//
//	curl "http://localhost:8080/runs/latest"
func (s *server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/runs/"), "/")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	status, ok, err := s.store.GetStatus(r.Context(), runID)
	if err != nil {
		http.Error(w, "failed to load status", http.StatusBadGateway)
		return
	}
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, status, http.StatusOK)
}

// handleMetrics exposes a minimal Prometheus-compatible endpoint.
//
// Method: GET
// Path:   /metrics
func (s *server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("sentinel_api_up 1\n"))
}

func writeJSON(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
