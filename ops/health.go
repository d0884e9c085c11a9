package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type healthConfig struct {
	format Format
}

// HealthOption configures HealthzHandler / ReadyzHandler.
type HealthOption func(*healthConfig)

// WithHealthDefaultFormat sets the default response format for health handlers.
// ?format=json|text overrides it per request. Default is FormatText.
func WithHealthDefaultFormat(f Format) HealthOption {
	return func(c *healthConfig) { c.format = f }
}

func applyHealthOptions(opts []HealthOption) healthConfig {
	cfg := healthConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.format = normalizeFormat(cfg.format)
	return cfg
}

// HealthzHandler returns a liveness handler. It always responds 200 OK for GET/HEAD.
func HealthzHandler(opts ...HealthOption) http.Handler {
	cfg := applyHealthOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		writeResponse(w, r, format, http.StatusOK, errorResponse{OK: true}, func() string { return "ok\n" })
	})
}

// ReadyCheckFunc returns nil when healthy. It must respect ctx cancellation.
type ReadyCheckFunc func(context.Context) error

// ReadyCheck is a named readiness check. A ztick Loop's Ready method fits Func directly.
type ReadyCheck struct {
	Name    string
	Func    ReadyCheckFunc
	Timeout time.Duration // <= 0: no extra timeout
}

// ReadyCheckResult is a single check execution result.
type ReadyCheckResult struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Duration is encoded as nanoseconds in JSON.
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// ReadyzReport is a point-in-time readiness execution report.
type ReadyzReport struct {
	OK       bool               `json:"ok"`
	Duration time.Duration      `json:"duration"`
	Checks   []ReadyCheckResult `json:"checks,omitempty"`
}

// ReadyzHandler returns a readiness handler that runs checks sequentially.
// It responds 200 when every check passes and 503 otherwise.
//
// It panics on a check with an empty Name or nil Func.
func ReadyzHandler(checks []ReadyCheck, opts ...HealthOption) http.Handler {
	for i, c := range checks {
		if c.Name == "" {
			panic(fmt.Sprintf("ops: ready check[%d] has empty Name", i))
		}
		if c.Func == nil {
			panic(fmt.Sprintf("ops: ready check[%d] %q has nil Func", i, c.Name))
		}
	}
	cfg := applyHealthOptions(opts)
	checks = append([]ReadyCheck(nil), checks...)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		rep := RunReadyzChecks(r.Context(), checks)
		code := http.StatusOK
		if !rep.OK {
			code = http.StatusServiceUnavailable
		}
		writeResponse(w, r, format, code, rep, func() string { return renderReadyText(rep) })
	})
}

// RunReadyzChecks executes checks sequentially and returns a report.
func RunReadyzChecks(ctx context.Context, checks []ReadyCheck) ReadyzReport {
	start := time.Now()
	out := ReadyzReport{OK: true, Checks: make([]ReadyCheckResult, 0, len(checks))}
	for _, c := range checks {
		cr := runOneCheck(ctx, c)
		out.Checks = append(out.Checks, cr)
		out.OK = out.OK && cr.OK
	}
	out.Duration = time.Since(start)
	return out
}

func runOneCheck(parent context.Context, c ReadyCheck) (cr ReadyCheckResult) {
	cr.Name = c.Name
	start := time.Now()
	ctx, cancel := parent, context.CancelFunc(func() {})
	if c.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, c.Timeout)
	}
	defer cancel()

	defer func() {
		cr.Duration = time.Since(start)
		if p := recover(); p != nil {
			cr.OK = false
			cr.Error = fmt.Sprintf("panic: %v", p)
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			cr.OK = false
			cr.TimedOut = true
			if cr.Error == "" {
				cr.Error = "timeout"
			}
		}
	}()

	if err := c.Func(ctx); err != nil {
		cr.Error = err.Error()
		return cr
	}
	cr.OK = true
	return cr
}

func renderReadyText(rep ReadyzReport) string {
	if rep.OK {
		return "ok\n"
	}
	var b strings.Builder
	for _, c := range rep.Checks {
		if c.OK {
			continue
		}
		b.WriteString("fail " + escapeTextField(c.Name))
		if c.Error != "" {
			b.WriteString(": " + escapeTextField(c.Error))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
