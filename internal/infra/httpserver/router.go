package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/bito-analyst/internal/application/analysis"
	"github.com/bryanwahyu/bito-analyst/internal/auth"
	domai "github.com/bryanwahyu/bito-analyst/internal/domain/ai"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/bito-analyst/internal/domain/failures"
	"github.com/bryanwahyu/bito-analyst/internal/domain/jobs"
	"github.com/bryanwahyu/bito-analyst/internal/middleware"
)

// maxBodyBytes caps /analyze payloads.
const maxBodyBytes = 10 << 20

type Options struct {
	Signer       *auth.Signer
	Credentials  auth.Credentials
	Health       map[string]middleware.HealthChecker
	QueueStats   func(ctx context.Context) (map[jobs.State]int, error)
	CORSOrigins  []string
	RateLimitRPS float64
	RateBurst    int
}

type Router struct {
	svc    *appanalysis.Service
	signer *auth.Signer
	creds  auth.Credentials
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	r := &Router{svc: svc, signer: opts.Signer, creds: opts.Credentials}
	mux := chi.NewRouter()

	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/metrics", middleware.MetricsHandler(queueStats(opts.QueueStats)))

	limit := middleware.RateLimitMiddleware(opts.RateLimitRPS, opts.RateBurst)
	if opts.RateLimitRPS <= 0 {
		limit = func(next http.Handler) http.Handler { return next }
	}

	mux.With(limit).Post("/auth/login", r.wrap(r.handleLogin))

	mux.Group(func(rt chi.Router) {
		rt.Use(middleware.BearerAuth(r.signer))
		rt.Use(limit)

		rt.Post("/analyze", r.wrap(r.handleAnalyze))
		rt.Get("/results/{id}", r.wrap(r.handleGet))
		rt.Get("/results/{id}/errors", r.wrap(r.handleErrors))
		rt.Get("/results/{id}/report", r.wrap(r.handleReport))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Delete("/analyses/{id}", r.wrap(r.handleDelete))
	})

	return mux
}

func queueStats(f func(ctx context.Context) (map[jobs.State]int, error)) middleware.QueueStats {
	if f == nil {
		return nil
	}
	return func(ctx context.Context) (map[string]int, error) {
		stats, err := f(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]int, len(stats))
		for st, n := range stats {
			out[string(st)] = n
		}
		return out, nil
	}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// apiError is an error with its own status and public message.
type apiError struct {
	status  int
	message string
	details string
}

func (e *apiError) Error() string { return e.message }

func badRequest(message string, details string) error {
	return &apiError{status: http.StatusBadRequest, message: message, details: details}
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var ae *apiError
		switch {
		case errors.As(err, &ae):
			writeError(w, ae.status, ae.message, ae.details)
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, jobs.ErrNotFound):
			writeError(w, http.StatusNotFound, "Analysis not found", "")
		case errors.Is(err, appanalysis.ErrReportsDisabled):
			writeError(w, http.StatusNotFound, "Report not available", err.Error())
		case errors.Is(err, domain.ErrEmptySubmission), errors.Is(err, domain.ErrInvalidSubmission):
			writeError(w, http.StatusBadRequest, "Invalid data", err.Error())
		case errors.Is(err, domai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, "AI quota exceeded", "")
		default:
			zap.L().Error("request failed",
				zap.String("path", req.URL.Path),
				zap.String("request_id", chimw.GetReqID(req.Context())),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		}
	}
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

// pathID returns the {id} param; non-numeric ids are not found.
func pathID(req *http.Request) (int64, error) {
	id, ok := middleware.ParseID(chi.URLParam(req, "id"))
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

// POST /auth/login
// Body: {"email": "...", "password": "..."}
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, 1<<16)).Decode(&body); err != nil {
		return badRequest("Invalid request body", err.Error())
	}

	if !r.creds.Check(body.Email, body.Password) {
		return &apiError{status: http.StatusUnauthorized, message: "Invalid credentials"}
	}

	token, err := r.signer.Generate(body.Email)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "email": body.Email})
	return nil
}

// POST /analyze
// Body: any JSON object; "raw_data" or the modules sales/warehouse/finance/crm.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return &apiError{
				status:  http.StatusRequestEntityTooLarge,
				message: "Payload too large",
				details: fmt.Sprintf("body exceeds %d bytes", tooBig.Limit),
			}
		}
		return badRequest("Invalid data", err.Error())
	}

	cmd, err := appanalysis.ParseSubmission(body)
	if err != nil {
		return err
	}
	cmd.Name = middleware.SanitizeString(cmd.Name)

	res, err := r.svc.Submit(req.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrEmptySubmission) {
			return err
		}
		return &apiError{status: http.StatusInternalServerError, message: "Failed to start analysis", details: err.Error()}
	}
	middleware.IncrementAnalysesSubmitted()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":     "Analysis started successfully",
		"task_id":     res.TaskID,
		"analysis_id": res.AnalysisID,
		"snapshot_id": res.SnapshotID,
		"status":      res.Status,
	})
	return nil
}

// GET /results/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	a, err := r.svc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

// GET /results/{id}/errors?limit=20
func (r *Router) handleErrors(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.FailureLog(req.Context(), id, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*failures.Failure{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /results/{id}/report
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	url, err := r.svc.ReportURL(req.Context(), id)
	if err != nil {
		return err
	}
	http.Redirect(w, req, url, http.StatusFound)
	return nil
}

// GET /analyses?status=&page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	st, err := middleware.ValidateStatus(q.Get("status"))
	if err != nil {
		return badRequest("Invalid status", err.Error())
	}
	limit, offset, err := middleware.ValidatePage(q.Get("page"), q.Get("page_size"))
	if err != nil {
		return badRequest("Invalid pagination", err.Error())
	}

	list, err := r.svc.List(req.Context(), domain.ListFilter{Status: st, Limit: limit, Offset: offset})
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Analysis{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// DELETE /analyses/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	id, err := pathID(req)
	if err != nil {
		return err
	}
	if err := r.svc.Delete(req.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
