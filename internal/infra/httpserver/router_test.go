package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/bito-analyst/internal/application"
	appanalysis "github.com/bryanwahyu/bito-analyst/internal/application/analysis"
	appjobs "github.com/bryanwahyu/bito-analyst/internal/application/jobs"
	"github.com/bryanwahyu/bito-analyst/internal/auth"
	domain "github.com/bryanwahyu/bito-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/bito-analyst/internal/infra/db/sqlite"
	"github.com/bryanwahyu/bito-analyst/internal/infra/db/sqlrepo"
	"github.com/bryanwahyu/bito-analyst/internal/middleware"
)

type nopChain struct{}

func (nopChain) Run(context.Context, json.RawMessage) (domain.Results, error) {
	return domain.Results{}, nil
}

type testServer struct {
	handler http.Handler
	store   *sqlrepo.Store
	signer  *auth.Signer
	token   string
}

func newTestServer(t *testing.T, rps float64, burst int) *testServer {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.Connect(ctx, filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlrepo.Migrate(ctx, db, sqlite.Dialect))
	clock := application.NewManualClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	store := sqlrepo.New(db, sqlite.Dialect, clock)
	svc := &appanalysis.Service{
		Repo:     store.Analyses,
		Failures: store.Failures,
		Queue:    &appjobs.Queue{Store: store.Jobs, Policy: appjobs.DefaultRetryPolicy(), Clock: clock},
		Chain:    nopChain{},
		Clock:    clock,
	}
	signer := auth.NewSigner("test-secret", time.Hour, application.SystemClock{})
	token, err := signer.Generate("admin@bito.ai")
	require.NoError(t, err)

	h := NewRouter(svc, Options{
		Signer:       signer,
		Credentials:  auth.Credentials{Email: "admin@bito.ai", Password: "pw"},
		Health:       map[string]middleware.HealthChecker{"database": middleware.CheckFunc(store.Ping)},
		QueueStats:   store.Jobs.Stats,
		RateLimitRPS: rps,
		RateBurst:    burst,
	})
	return &testServer{handler: h, store: store, signer: signer, token: token}
}

func (s *testServer) do(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0, 0)
	rec := s.do(t, http.MethodGet, "/health", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, 0, 0)

	rec := s.do(t, http.MethodPost, "/auth/login", `{"email":"admin@bito.ai","password":"pw"}`, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "admin@bito.ai", body["email"])
	email, err := s.signer.Verify(body["token"])
	require.NoError(t, err)
	assert.Equal(t, "admin@bito.ai", email)

	rec = s.do(t, http.MethodPost, "/auth/login", `{"email":"admin@bito.ai","password":"nope"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode[map[string]string](t, rec)["error"])
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, 0, 0)

	rec := s.do(t, http.MethodGet, "/analyses", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/analyses", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnalyzeAndRead(t *testing.T) {
	s := newTestServer(t, 0, 0)

	rec := s.do(t, http.MethodPost, "/analyze",
		`{"name":"Q1","sales":{"total_orders":10},"finance":{"revenue":100}}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	sub := decode[map[string]any](t, rec)
	assert.Equal(t, "pending", sub["status"])
	assert.Equal(t, "Analysis started successfully", sub["message"])
	assert.NotEmpty(t, sub["task_id"])
	id := int64(sub["analysis_id"].(float64))

	job, err := s.store.Jobs.Get(context.Background(), sub["task_id"].(string))
	require.NoError(t, err)
	assert.Equal(t, id, job.AnalysisID)

	rec = s.do(t, http.MethodGet, "/results/"+itoa(id), "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[domain.Analysis](t, rec)
	assert.Equal(t, "Q1", a.Name)
	assert.Equal(t, domain.StatusPending, a.Status)
	require.NotNil(t, a.Snapshot)
	assert.JSONEq(t, `{"sales":{"total_orders":10},"finance":{"revenue":100}}`, string(a.Snapshot.RawData))

	rec = s.do(t, http.MethodGet, "/results/"+itoa(id)+"/errors", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestAnalyzeRejectsBadBodies(t *testing.T) {
	s := newTestServer(t, 0, 0)

	for name, body := range map[string]string{
		"empty":          ``,
		"array":          `[1,2]`,
		"empty object":   `{}`,
		"module not obj": `{"sales":[1,2,3]}`,
		"null raw_data":  `{"raw_data":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/analyze", body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Invalid data", decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestAnalyzeNameOnly(t *testing.T) {
	s := newTestServer(t, 0, 0)

	rec := s.do(t, http.MethodPost, "/analyze", `{"name":"Q1 review"}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	id := int64(decode[map[string]any](t, rec)["analysis_id"].(float64))

	rec = s.do(t, http.MethodGet, "/results/"+itoa(id), "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[domain.Analysis](t, rec)
	assert.Equal(t, "Q1 review", a.Name)
	assert.JSONEq(t, `{"sales":{},"warehouse":{},"finance":{},"crm":{}}`, string(a.Snapshot.RawData))
}

func TestAnalyzeBodyTooLarge(t *testing.T) {
	s := newTestServer(t, 0, 0)

	big := `{"sales":{"blob":"` + strings.Repeat("a", maxBodyBytes) + `"}}`
	rec := s.do(t, http.MethodPost, "/analyze", big, true)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "Payload too large", decode[map[string]string](t, rec)["error"])
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t, 0, 0)

	for _, path := range []string{"/results/999", "/results/abc", "/results/-1"} {
		rec := s.do(t, http.MethodGet, path, "", true)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := s.do(t, http.MethodDelete, "/analyses/999", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/results/1/report", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code, "archive disabled")
}

func TestListFilterAndDelete(t *testing.T) {
	s := newTestServer(t, 0, 0)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		rec := s.do(t, http.MethodPost, "/analyze", `{"raw_data":{"sales":{"n":1}}}`, true)
		require.Equal(t, http.StatusAccepted, rec.Code)
		ids = append(ids, int64(decode[map[string]any](t, rec)["analysis_id"].(float64)))
	}
	require.NoError(t, s.store.Analyses.UpdateStatus(ctx, ids[0], domain.StatusProcessing))
	require.NoError(t, s.store.Analyses.Complete(ctx, ids[0], domain.Results{}))

	rec := s.do(t, http.MethodGet, "/analyses", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]domain.Analysis](t, rec)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")

	rec = s.do(t, http.MethodGet, "/analyses?status=completed", "", true)
	done := decode[[]domain.Analysis](t, rec)
	require.Len(t, done, 1)
	assert.Equal(t, ids[0], done[0].ID)

	rec = s.do(t, http.MethodGet, "/analyses?status=weird", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/analyses?page=2&page_size=2", "", true)
	page := decode[[]domain.Analysis](t, rec)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	rec = s.do(t, http.MethodDelete, "/analyses/"+itoa(ids[1]), "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodGet, "/results/"+itoa(ids[1]), "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 0.001, 2)

	for i := 0; i < 2; i++ {
		rec := s.do(t, http.MethodGet, "/analyses", "", true)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := s.do(t, http.MethodGet, "/analyses", "", true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t, 0, 0)
	s.do(t, http.MethodPost, "/analyze", `{"crm":{"leads":5}}`, true)

	rec := s.do(t, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.GreaterOrEqual(t, body["analyses_submitted"].(float64), 1.0)
	jobs := body["jobs"].(map[string]any)
	assert.Equal(t, 1.0, jobs["pending"])
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
