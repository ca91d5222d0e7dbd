package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const checkTimeout = 2 * time.Second

// HealthChecker is one dependency checked by /health.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

type healthReport struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler runs every checker in parallel. Any failure turns the
// response into 503 with "unhealthy" and the failing check's error.
func HealthHandler(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{
			Status:    "ok",
			Timestamp: time.Now().UTC(),
			Checks:    make(map[string]string, len(checkers)),
		}

		var mu sync.Mutex
		var g errgroup.Group
		for name, c := range checkers {
			g.Go(func() error {
				ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
				defer cancel()
				result := "ok"
				if err := c.Check(ctx); err != nil {
					result = err.Error()
				}
				mu.Lock()
				report.Checks[name] = result
				if result != "ok" {
					report.Status = "unhealthy"
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		code := http.StatusOK
		if report.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	}
}
