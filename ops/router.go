package ops

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// RouterConfig assembles the ops endpoints. Nil fields leave their endpoints unmounted.
type RouterConfig struct {
	// Tasks backs /tasks, /queues and /tasks/stop. A *ztick.Loop fits.
	Tasks TaskController
	// LevelVar backs /log/level (GET and POST).
	LevelVar *slog.LevelVar
	// ReadyChecks backs /readyz. /healthz is always mounted.
	ReadyChecks []ReadyCheck
	// TaskOptions apply to every task handler.
	TaskOptions []TaskOption
	// Token, when set, is required as "Authorization: Bearer <token>" on every route but /healthz.
	Token string
	// Logger receives one line per request. Nil discards.
	Logger *slog.Logger
}

// NewRouter returns a chi router serving the ops endpoints:
//
//	GET  /healthz
//	GET  /readyz
//	GET  /tasks       (?name=, ?state=)
//	GET  /queues
//	POST /tasks/stop  (?id=)
//	GET  /log/level
//	POST /log/level   (?level=)
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))

	r.Method(http.MethodGet, "/healthz", HealthzHandler())
	r.Group(func(r chi.Router) {
		if cfg.Token != "" {
			r.Use(tokenMiddleware(cfg.Token))
		}
		r.Handle("/readyz", ReadyzHandler(cfg.ReadyChecks))
		if cfg.Tasks != nil {
			r.Handle("/tasks", TasksSnapshotHandler(cfg.Tasks, cfg.TaskOptions...))
			r.Handle("/queues", QueuesSnapshotHandler(cfg.Tasks, cfg.TaskOptions...))
			r.Handle("/tasks/stop", TaskStopHandler(cfg.Tasks, cfg.TaskOptions...))
		}
		if cfg.LevelVar != nil {
			get := LogLevelGetHandler(cfg.LevelVar)
			set := LogLevelSetHandler(cfg.LevelVar)
			r.Handle("/log/level", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				if req.Method == http.MethodPost {
					set.ServeHTTP(w, req)
					return
				}
				get.ServeHTTP(w, req)
			}))
		}
	})
	return r
}

type ctxKey string

const ctxKeyRequestID ctxKey = "request_id"

// RequestIDFromContext extracts the request ID set by the router.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := "req_" + uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, id)))
	})
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start).String(),
				"request_id", RequestIDFromContext(r.Context()),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func tokenMiddleware(token string) func(http.Handler) http.Handler {
	want := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeError(w, r, formatFromRequest(r, FormatText), http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
