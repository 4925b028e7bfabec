package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"worklist-sentinel/common"
	"worklist-sentinel/internal/events"
	"worklist-sentinel/internal/graph"
	"worklist-sentinel/internal/models"
)

// eventRecorder persists a decoded monitor event.
type eventRecorder interface {
	RecordEvent(ctx context.Context, event models.Event) error
}

// writeRetryDelay spaces retries of a failed Neo4j write.
var writeRetryDelay = 2 * time.Second

var (
	// Counters for audit-writer throughput and failures exposed on /metrics.
	auditEventsReceived uint64
	auditEventsInvalid  uint64
	auditEventsFailed   uint64
	auditEventsWritten  uint64
)

func main() {
	broker := common.GetEnv("KAFKA_BROKER", "localhost:9092")
	topic := common.GetEnv("KAFKA_EVENTS_TOPIC", "sentinel.events")
	groupID := common.GetEnv("KAFKA_GROUP_ID", "sentinel-audit-writer")
	metricsAddr := common.GetEnv("METRICS_ADDR", ":9091")

	neo4jURI := common.GetEnv("NEO4J_URI", "neo4j://localhost:7687")
	neo4jUser := common.GetEnv("NEO4J_USER", "neo4j")
	neo4jPassword := common.GetEnv("NEO4J_PASSWORD", "neo4j")

	driver, err := graph.NewDriver(neo4jURI, neo4jUser, neo4jPassword)
	if err != nil {
		log.Fatalf("neo4j driver error: %v", err)
	}
	defer func() {
		if err := driver.Close(context.Background()); err != nil {
			log.Printf("neo4j close error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: groupID,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			log.Printf("events reader close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr)
	}

	log.Printf("audit writer consuming topic=%s group=%s broker=%s", topic, groupID, broker)
	consumeEvents(ctx, reader, graph.NewRecorder(driver))
}

func startMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", handleMetrics)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics shutdown error: %v", err)
		}
	}()

	go func() {
		log.Printf("metrics listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
}

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	body := fmt.Sprintf(
		"sentinel_audit_writer_up 1\n"+
			"sentinel_audit_writer_events_received_total %d\n"+
			"sentinel_audit_writer_events_invalid_total %d\n"+
			"sentinel_audit_writer_events_failed_total %d\n"+
			"sentinel_audit_writer_events_written_total %d\n",
		atomic.LoadUint64(&auditEventsReceived),
		atomic.LoadUint64(&auditEventsInvalid),
		atomic.LoadUint64(&auditEventsFailed),
		atomic.LoadUint64(&auditEventsWritten),
	)
	_, _ = w.Write([]byte(body))
}

// consumeEvents records events until ctx is done. Undecodable payloads are committed and
// skipped. A failed write is retried on the same message until it succeeds, since committing
// a later offset would skip it for the whole group.
func consumeEvents(ctx context.Context, reader events.MessageReader, recorder eventRecorder) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("events fetch error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		atomic.AddUint64(&auditEventsReceived, 1)
		for {
			err := handleMessage(ctx, recorder, msg)
			if err == nil {
				break
			}
			atomic.AddUint64(&auditEventsFailed, 1)
			log.Printf("event write error partition=%d offset=%d, retrying in %s: %v", msg.Partition, msg.Offset, writeRetryDelay, err)
			if !waitRetry(ctx) {
				return
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("events commit error: %v", err)
		}
	}
}

func waitRetry(ctx context.Context) bool {
	timer := time.NewTimer(writeRetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func handleMessage(ctx context.Context, recorder eventRecorder, msg kafka.Message) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		atomic.AddUint64(&auditEventsInvalid, 1)
		log.Printf("invalid event payload partition=%d offset=%d: %v", msg.Partition, msg.Offset, err)
		return nil
	}
	if err := recorder.RecordEvent(ctx, event); err != nil {
		return err
	}
	atomic.AddUint64(&auditEventsWritten, 1)
	return nil
}
