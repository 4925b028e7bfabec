package monitor

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"worklist-sentinel/internal/models"
)

var (
	// Counters for monitor activity exposed on /metrics.
	monitorCyclesTotal          uint64
	monitorStandbyTotal         uint64
	monitorFetchFailuresTotal   uint64
	monitorPersistFailuresTotal uint64
	// One slot per models.Outcomes entry.
	monitorOutcomeCounts = make([]uint64, len(models.Outcomes))

	// Histogram buckets for validation endpoint latency (seconds); +Inf is implicit.
	probeLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10}
	// Counts per bucket; last slot holds the +Inf bucket.
	probeLatencyCounts = make([]uint64, len(probeLatencyBuckets)+1)
	probeLatencySumNs  uint64
	probeLatencyCount  uint64
)

// StartMetricsServer serves /metrics on addr until ctx is done.
func StartMetricsServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", HandleMetrics)

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

// HandleMetrics writes the monitor counters in Prometheus text format.
func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)

	var sb strings.Builder
	sb.WriteString("sentinel_monitor_up 1\n")
	sb.WriteString(fmt.Sprintf(
		"sentinel_monitor_cycles_total %d\n"+
			"sentinel_monitor_standby_total %d\n"+
			"sentinel_monitor_fetch_failures_total %d\n"+
			"sentinel_monitor_persist_failures_total %d\n",
		atomic.LoadUint64(&monitorCyclesTotal),
		atomic.LoadUint64(&monitorStandbyTotal),
		atomic.LoadUint64(&monitorFetchFailuresTotal),
		atomic.LoadUint64(&monitorPersistFailuresTotal),
	))
	sb.WriteString("# HELP sentinel_monitor_probes_total Probes by classified outcome.\n")
	sb.WriteString("# TYPE sentinel_monitor_probes_total counter\n")
	for i, outcome := range models.Outcomes {
		sb.WriteString(fmt.Sprintf("sentinel_monitor_probes_total{outcome=%q} %d\n", string(outcome), atomic.LoadUint64(&monitorOutcomeCounts[i])))
	}
	sb.WriteString("# HELP sentinel_monitor_probe_latency_seconds Validation endpoint latency.\n")
	sb.WriteString("# TYPE sentinel_monitor_probe_latency_seconds histogram\n")
	appendHistogram(&sb, "sentinel_monitor_probe_latency_seconds", probeLatencyBuckets,
		probeLatencyCounts, &probeLatencySumNs, &probeLatencyCount, "%.2f")

	_, _ = w.Write([]byte(sb.String()))
}

// appendHistogram writes a Prometheus histogram (buckets, +Inf, sum, count) to sb.
// counts must have len(buckets)+1 elements.
func appendHistogram(sb *strings.Builder, name string, buckets []float64, counts []uint64, sumNs, count *uint64, leFmt string) {
	var cumulative uint64
	for i, bound := range buckets {
		cumulative += atomic.LoadUint64(&counts[i])
		sb.WriteString(fmt.Sprintf("%s_bucket{le=\"%s\"} %d\n", name, fmt.Sprintf(leFmt, bound), cumulative))
	}
	cumulative += atomic.LoadUint64(&counts[len(buckets)])
	sb.WriteString(fmt.Sprintf("%s_bucket{le=\"+Inf\"} %d\n", name, cumulative))
	sumSeconds := float64(atomic.LoadUint64(sumNs)) / float64(time.Second)
	sb.WriteString(fmt.Sprintf("%s_sum %.6f\n", name, sumSeconds))
	sb.WriteString(fmt.Sprintf("%s_count %d\n", name, atomic.LoadUint64(count)))
}

func recordCycle()          { atomic.AddUint64(&monitorCyclesTotal, 1) }
func recordStandby()        { atomic.AddUint64(&monitorStandbyTotal, 1) }
func recordFetchFailure()   { atomic.AddUint64(&monitorFetchFailuresTotal, 1) }
func recordPersistFailure() { atomic.AddUint64(&monitorPersistFailuresTotal, 1) }

func recordOutcome(outcome models.Outcome) {
	for i, o := range models.Outcomes {
		if o == outcome {
			atomic.AddUint64(&monitorOutcomeCounts[i], 1)
			return
		}
	}
}

// observeProbeLatency updates the manual latency histogram.
func observeProbeLatency(duration time.Duration) {
	if duration <= 0 {
		return
	}
	seconds := duration.Seconds()
	bucketIndex := len(probeLatencyBuckets)
	for i, bound := range probeLatencyBuckets {
		if seconds <= bound {
			bucketIndex = i
			break
		}
	}
	atomic.AddUint64(&probeLatencyCounts[bucketIndex], 1)
	atomic.AddUint64(&probeLatencySumNs, uint64(duration.Nanoseconds()))
	atomic.AddUint64(&probeLatencyCount, 1)
}
