package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"cohortaudit/internal/api"
	"cohortaudit/internal/config"
	"cohortaudit/internal/observability"
	"cohortaudit/internal/server"
	"cohortaudit/internal/services"
	"cohortaudit/internal/testsupport"
)

const batchName = "batch_notes_eval_001.json"

func newTestServer(t *testing.T, cfg *config.Config) (*server.Server, *observability.Metrics) {
	t.Helper()
	metrics := observability.New(nil)
	srv, err := server.New(cfg, nil, metrics)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return srv, metrics
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestAnalyticsEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBatch(batchName, testsupport.TwoCohortBatch()...))
	srv, metrics := newTestServer(t, cfg)

	w := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/notes/analytics?n_clusters=2&seed=3", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.AnalyticsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Config.NClusters != 2 || resp.Config.Seed != 3 {
		t.Fatalf("unexpected response config %+v", resp.Config)
	}
	if len(resp.Clusters.Counts) != 2 {
		t.Fatalf("expected two cohorts, got %v", resp.Clusters.Counts)
	}
	if got := testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues(observability.OutcomeSuccess)); got != 1 {
		t.Fatalf("expected one successful analysis, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("analytics", "200")); got != 1 {
		t.Fatalf("expected one analytics request, got %v", got)
	}
}

func TestAnalyticsEndpointErrors(t *testing.T) {
	tests := []struct {
		name   string
		opts   []testsupport.ConfigOption
		query  string
		status int
		kind   string
	}{
		{
			name:   "bad parameter",
			opts:   []testsupport.ConfigOption{testsupport.WithBatch(batchName, testsupport.TwoCohortBatch()...)},
			query:  "?n_clusters=abc",
			status: http.StatusBadRequest,
			kind:   services.KindInvalidParameter,
		},
		{
			name:   "no batch files",
			query:  "",
			status: http.StatusInternalServerError,
			kind:   services.KindIngestion,
		},
		{
			name:   "too few subjects",
			opts:   []testsupport.ConfigOption{testsupport.WithBatch(batchName, testsupport.TwoCohortBatch()...)},
			query:  "?n_clusters=20",
			status: http.StatusUnprocessableEntity,
			kind:   services.KindInsufficientData,
		},
		{
			name: "length mismatch",
			opts: []testsupport.ConfigOption{testsupport.WithBatch(batchName,
				testsupport.Record(0, "", 1, 2, 3),
				testsupport.Record(1, "", 1, 2, 3, 4),
			)},
			query:  "?n_clusters=1&length_mode=error",
			status: http.StatusUnprocessableEntity,
			kind:   services.KindLengthMismatch,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, tc.opts...)
			srv, _ := newTestServer(t, cfg)

			w := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/notes/analytics"+tc.query, nil))
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			resp := decodeError(t, w)
			if resp.OK || resp.Kind != tc.kind || resp.Error == "" {
				t.Fatalf("unexpected error response %+v", resp)
			}
		})
	}
}

func TestLabEndpoint(t *testing.T) {
	rec := testsupport.WithNotes(testsupport.Record(2, "plateau", 1, 2), "notes_20240105_101500.json", "steady", "first", "second")
	cfg := testsupport.NewConfig(t, testsupport.WithBatch(batchName, rec))
	srv, _ := newTestServer(t, cfg)

	w := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/notes/lab", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp api.LabResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Notes) != 2 || resp.Notes[0].ClientID != "C-0003" {
		t.Fatalf("unexpected notes %+v", resp.Notes)
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithAPIToken("secret"),
		testsupport.WithBatch(batchName, testsupport.TwoCohortBatch()...),
	)
	srv, _ := newTestServer(t, cfg)

	w := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/notes/lab", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/notes/lab", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := do(t, srv.Handler(), req); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/notes/lab", nil)
	req.Header.Set("Authorization", "Bearer secret")
	if w := do(t, srv.Handler(), req); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil)); w.Code != http.StatusOK {
		t.Fatalf("expected healthz to skip auth, got %d", w.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/notes/analytics", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := do(t, srv.Handler(), req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("expected allowed origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("expected credentials allowed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://127.0.0.1:4321")
	if got := do(t, srv.Handler(), req).Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:4321" {
		t.Fatalf("expected regex-matched origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.com")
	if got := do(t, srv.Handler(), req).Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected foreign origin to be refused, got %q", got)
	}
}

func TestRequestID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, _ := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	if got := do(t, srv.Handler(), req).Header().Get("X-Request-ID"); got != "abc-123" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	generated := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil)).Header().Get("X-Request-ID")
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("expected generated uuid, got %q: %v", generated, err)
	}
}

func TestSandboxEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, _ := newTestServer(t, cfg)

	body := `{"code":"print('hi') result = sum({1, 2, 3})"}`
	w := do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/sandbox/history/lua", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != true || resp["value"] != float64(6) || resp["stdout"] != "hi\n" {
		t.Fatalf("unexpected sandbox response %v", resp)
	}

	w = do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/sandbox/history/lua", strings.NewReader("{")))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
	w = do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/sandbox/history/lua", strings.NewReader(`{"code":""}`)))
	if w.Code != http.StatusBadRequest || decodeError(t, w).Kind != services.KindInvalidParameter {
		t.Fatalf("expected 400 invalid_parameter for empty code, got %d", w.Code)
	}
}

func TestSandboxDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSandboxDisabled())
	srv, _ := newTestServer(t, cfg)

	w := do(t, srv.Handler(), httptest.NewRequest(http.MethodPost, "/sandbox/history/lua", strings.NewReader(`{"code":"result = 1"}`)))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when sandbox is disabled, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	srv, _ := newTestServer(t, cfg)

	do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	w := do(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `cohortaudit_http_requests_total{route="healthz",status="200"} 1`) {
		t.Fatalf("expected request counter in exposition, got:\n%s", w.Body.String())
	}
}

func TestStartEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, _ := newTestServer(t, cfg)
	second, _ := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("start first server: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second server to fail on the held lock")
	}

	resp, err := http.Get("http://" + first.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	first.Stop()
	third, _ := newTestServer(t, cfg)
	if err := third.Start(ctx); err != nil {
		t.Fatalf("expected lock to be free after stop: %v", err)
	}
	third.Stop()
}
