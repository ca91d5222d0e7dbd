package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64
	AnalysesSubmitted  atomic.Uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{StartTime: time.Now()}

// IncrementAnalysesSubmitted counts accepted /analyze requests.
func IncrementAnalysesSubmitted() {
	globalMetrics.AnalysesSubmitted.Add(1)
}

// QueueStats reports job counts by state. Used by the metrics endpoint.
type QueueStats func(ctx context.Context) (map[string]int, error)

// GetMetrics returns current metrics
func GetMetrics() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]any{
		"requests_total":       globalMetrics.RequestsTotal.Load(),
		"requests_in_progress": globalMetrics.RequestsInProgress.Load(),
		"requests_success":     globalMetrics.RequestsSuccess.Load(),
		"requests_failed":      globalMetrics.RequestsFailed.Load(),
		"analyses_submitted":   globalMetrics.AnalysesSubmitted.Load(),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		globalMetrics.RequestsTotal.Add(1)
		globalMetrics.RequestsInProgress.Add(1)
		defer globalMetrics.RequestsInProgress.Add(-1)

		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			globalMetrics.RequestsSuccess.Add(1)
		} else {
			globalMetrics.RequestsFailed.Add(1)
		}
	})
}

// MetricsHandler returns metrics as JSON, with queue depth when stats is set.
func MetricsHandler(stats QueueStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := GetMetrics()
		if stats != nil {
			jobs, err := stats(r.Context())
			if err != nil {
				zap.L().Warn("queue stats", zap.Error(err))
			} else {
				out["jobs"] = jobs
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
