package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/datachat/datachat/internal/auth"
	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/demo"
	"github.com/datachat/datachat/internal/errs"
	"github.com/datachat/datachat/internal/ingest"
	"github.com/datachat/datachat/internal/observability"
	"github.com/datachat/datachat/internal/pipeline"
	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/session"
	"github.com/datachat/datachat/internal/storage"
	"github.com/datachat/datachat/internal/suggest"
)

const sessionHeader = "X-Datachat-Session"

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

type ReadinessCheck func(ctx context.Context) error

type SchemaSource interface {
	Describe(ctx context.Context) (schema.Schema, error)
}

type Ingester interface {
	IngestAll(ctx context.Context, files []ingest.File) []ingest.Result
}

type QuestionSuggester interface {
	Suggest(ctx context.Context, cache *suggest.Cache, current schema.Schema) ([]string, error)
}

type QueryRunner interface {
	Run(ctx context.Context, state *session.State, question string) pipeline.Outcome
}

type DemoLoader interface {
	Datasets() []demo.Dataset
	Load(ctx context.Context, index int, state *session.State) (ingest.Result, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Sessions          *session.Registry
	Schemas           SchemaSource
	Ingestor          Ingester
	Suggester         QuestionSuggester
	Pipeline          QueryRunner
	Demos             DemoLoader
	Archive storage.ObjectStore
	WarmQuestions bool
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	routes := map[string]http.HandlerFunc{
		"POST /v1/sessions": func(w http.ResponseWriter, r *http.Request) {
			handleCreateSession(deps, w, r)
		},
		"DELETE /v1/sessions/{id}": func(w http.ResponseWriter, r *http.Request) {
			handleEndSession(deps, w, r)
		},
		"POST /v1/uploads": func(w http.ResponseWriter, r *http.Request) {
			handleUpload(cfg, deps, w, r)
		},
		"GET /v1/schema": func(w http.ResponseWriter, r *http.Request) {
			handleSchema(deps, w, r)
		},
		"GET /v1/questions": func(w http.ResponseWriter, r *http.Request) {
			handleQuestions(cfg, deps, w, r)
		},
		"POST /v1/query": func(w http.ResponseWriter, r *http.Request) {
			handleQuery(cfg, deps, w, r)
		},
		"GET /v1/results/latest": func(w http.ResponseWriter, r *http.Request) {
			handleLatestResult(cfg, deps, w, r)
		},
		"GET /v1/results/latest/export": func(w http.ResponseWriter, r *http.Request) {
			handleExport(cfg, deps, w, r)
		},
		"GET /v1/demos": func(w http.ResponseWriter, r *http.Request) {
			handleListDemos(deps, w, r)
		},
		"POST /v1/demos/{index}/load": func(w http.ResponseWriter, r *http.Request) {
			handleLoadDemo(deps, w, r)
		},
	}

	protected := http.NewServeMux()
	for pattern, handler := range routes {
		protected.HandleFunc(pattern, handler)
	}

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			deps.Logger.Error("auth required but auth middleware missing")
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	for pattern := range routes {
		mux.Handle(pattern, protectedHandler)
	}

	return chain(mux,
		observability.TraceMiddleware,
		sessionMiddleware,
		observability.MetricsMiddleware,
		observability.LoggingMiddleware(deps.Logger),
	)
}

func sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(sessionHeader))
		if id == "" {
			id = session.DefaultID
		}
		if !sessionIDPattern.MatchString(id) {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_SESSION", "invalid "+sessionHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(observability.ContextWithSessionID(r.Context(), id)))
	})
}

func sessionFor(deps Dependencies, w http.ResponseWriter, r *http.Request) (*session.State, bool) {
	id := observability.SessionIDFromContext(r.Context())
	state, ok := deps.Sessions.Get(id)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found", map[string]any{"session_id": id})
		return nil, false
	}
	return state, true
}

func CheckDatabase(ping func(ctx context.Context) error) ReadinessCheck {
	return func(ctx context.Context) error {
		if ping == nil {
			return errors.New("database is not configured")
		}
		return ping(ctx)
	}
}

func CheckObjectStoreConfig(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if !cfg.ObjectStore.Enabled {
			return nil
		}
		if cfg.ObjectStore.Endpoint == "" {
			return errors.New("object store endpoint is not configured")
		}
		if cfg.ObjectStore.Bucket == "" {
			return errors.New("object store bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		body.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&body).Encode(map[string]any{
			"error_code": "ENCODE_FAILED",
			"message":    err.Error(),
			"context":    nil,
			"trace_id":   w.Header().Get("X-Trace-ID"),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body.Bytes())
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}

func writeKindError(ctx context.Context, w http.ResponseWriter, err error, extra map[string]any) {
	kind := errs.KindOf(err)
	writeError(ctx, w, statusForKind(kind), strings.ToUpper(string(kind)), err.Error(), extra)
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindIngest, errs.KindExecution:
		return http.StatusUnprocessableEntity
	case errs.KindCompletion:
		return http.StatusBadGateway
	case errs.KindConfig:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func requireRole(w http.ResponseWriter, r *http.Request, role string) bool {
	if err := auth.RequireRole(r.Context(), role); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
		return false
	}
	return true
}
