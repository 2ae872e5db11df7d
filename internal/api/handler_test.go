package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/datachat/datachat/internal/auth"
	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/session"
)

func TestHealthEndpoint(t *testing.T) {
	cfg := loadConfig(t, nil)

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if rr.Header().Get("X-Trace-ID") == "" {
		t.Fatal("expected X-Trace-ID header")
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg := loadConfig(t, nil)

	h := NewHandler(cfg, Dependencies{
		Readiness: CheckDatabase(func(context.Context) error {
			return errors.New("dependency down")
		}),
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "NOT_READY" {
		t.Fatalf("error_code = %v", body["error_code"])
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"DATACHAT_AUTH_REQUIRED": "true"})
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:query_reader")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{AuthMiddleware: auth.Middleware(nil, validator)})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodGet, "/v1/demos", nil))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodGet, "/v1/demos", nil)
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusOK {
		t.Fatalf("auth status = %d", authResp.Code)
	}

	writeReq := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	writeReq.Header.Set("X-API-Key", "k1")
	writeResp := httptest.NewRecorder()
	h.ServeHTTP(writeResp, writeReq)
	if writeResp.Code != http.StatusForbidden {
		t.Fatalf("reader creating a session status = %d", writeResp.Code)
	}

	healthResp := httptest.NewRecorder()
	h.ServeHTTP(healthResp, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if healthResp.Code != http.StatusOK {
		t.Fatalf("health should stay public, status = %d", healthResp.Code)
	}
}

func TestAuthRequiredWithoutMiddlewareFailsClosed(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"DATACHAT_AUTH_REQUIRED": "true"})
	h := NewHandler(cfg, Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestInvalidSessionHeaderRejected(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	req := httptest.NewRequest(http.MethodGet, "/v1/demos", nil)
	req.Header.Set(sessionHeader, "../etc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateAndEndSession(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	id, _ := decodeBody(t, rr)["session_id"].(string)
	if id == "" || rr.Header().Get(sessionHeader) != id {
		t.Fatalf("session id = %q header = %q", id, rr.Header().Get(sessionHeader))
	}

	end := httptest.NewRecorder()
	h.ServeHTTP(end, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+id, nil))
	if end.Code != http.StatusNoContent {
		t.Fatalf("end status = %d", end.Code)
	}
	again := httptest.NewRecorder()
	h.ServeHTTP(again, httptest.NewRequest(http.MethodDelete, "/v1/sessions/"+id, nil))
	if again.Code != http.StatusNotFound {
		t.Fatalf("second end status = %d", again.Code)
	}

	ended := httptest.NewRequest(http.MethodGet, "/v1/results/latest", nil)
	ended.Header.Set(sessionHeader, id)
	endedResp := httptest.NewRecorder()
	h.ServeHTTP(endedResp, ended)
	if endedResp.Code != http.StatusNotFound || decodeBody(t, endedResp)["error_code"] != "SESSION_NOT_FOUND" {
		t.Fatalf("ended session status = %d body=%s", endedResp.Code, endedResp.Body.String())
	}
}

func TestUnknownSessionIsNotCreated(t *testing.T) {
	sessions := session.NewRegistry()
	h := NewHandler(loadConfig(t, nil), Dependencies{Sessions: sessions})

	req := httptest.NewRequest(http.MethodGet, "/v1/results/latest", nil)
	req.Header.Set(sessionHeader, "made-up")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound || decodeBody(t, rr)["error_code"] != "SESSION_NOT_FOUND" {
		t.Fatalf("status = %d body=%s", rr.Code, rr.Body.String())
	}
	if sessions.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", sessions.Len())
	}
}

func TestUnconfiguredDependenciesReturn501(t *testing.T) {
	h := NewHandler(loadConfig(t, nil), Dependencies{})
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/v1/schema"},
		{http.MethodGet, "/v1/questions"},
		{http.MethodPost, "/v1/query"},
		{http.MethodPost, "/v1/uploads"},
		{http.MethodPost, "/v1/demos/0/load"},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(route.method, route.path, nil))
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s %s status = %d", route.method, route.path, rr.Code)
		}
	}
}

func TestStatusForKind(t *testing.T) {
	tests := map[errs.Kind]int{
		errs.KindValidation: http.StatusBadRequest,
		errs.KindNotFound:   http.StatusNotFound,
		errs.KindExecution:  http.StatusUnprocessableEntity,
		errs.KindCompletion: http.StatusBadGateway,
		errs.KindSchema:     http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusForKind(kind); got != want {
			t.Fatalf("statusForKind(%q) = %d, want %d", kind, got, want)
		}
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		nil,
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func TestCheckObjectStoreConfig(t *testing.T) {
	cfg := loadConfig(t, nil)
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err != nil {
		t.Fatalf("disabled store should be ready: %v", err)
	}
	cfg.ObjectStore.Enabled = true
	cfg.ObjectStore.Bucket = ""
	if err := CheckObjectStoreConfig(cfg)(context.Background()); err == nil {
		t.Fatal("expected missing bucket error")
	}
}

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Helper()
	if env == nil {
		env = map[string]string{}
	}
	cfg, err := config.Load("datachat-api", mapLookup(env))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	return cfg
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("json decode failed: %v body=%s", err, rr.Body.String())
	}
	return body
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestWriteJSONReportsEncodingFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Header().Set("X-Trace-ID", "trace-1")
	writeJSON(rr, http.StatusOK, map[string]any{"value": math.Inf(1)})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error_code"] != "ENCODE_FAILED" || body["trace_id"] != "trace-1" {
		t.Fatalf("body = %#v", body)
	}
}
