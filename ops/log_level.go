package ops

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/evan-idocoding/ztick/internal/logging"
)

type logLevelConfig struct {
	format Format
}

// LogLevelOption configures LogLevelGetHandler / LogLevelSetHandler.
type LogLevelOption func(*logLevelConfig)

// WithLogLevelDefaultFormat sets the default response format. ?format=json|text overrides it.
func WithLogLevelDefaultFormat(f Format) LogLevelOption {
	return func(c *logLevelConfig) { c.format = f }
}

func applyLogLevelOptions(opts []LogLevelOption) logLevelConfig {
	cfg := logLevelConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.format = normalizeFormat(cfg.format)
	return cfg
}

// LogLevelSnapshot is a point-in-time snapshot of a slog.LevelVar.
type LogLevelSnapshot struct {
	// Level is one of debug/info/warn/error, bucketed from LevelValue.
	Level      string `json:"level"`
	LevelValue int    `json:"level_value"`
}

// LogLevel returns a snapshot of lv.
func LogLevel(lv *slog.LevelVar) LogLevelSnapshot {
	if lv == nil {
		return LogLevelSnapshot{}
	}
	l := lv.Level()
	return LogLevelSnapshot{Level: logging.LevelName(l), LevelValue: int(l)}
}

type logLevelResponse struct {
	OK  bool              `json:"ok"`
	Log *LogLevelSnapshot `json:"log,omitempty"`
	Old *LogLevelSnapshot `json:"old,omitempty"`
	New *LogLevelSnapshot `json:"new,omitempty"`
}

// LogLevelGetHandler returns a GET/HEAD handler reporting the current level of lv.
func LogLevelGetHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := applyLogLevelOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		snap := LogLevel(lv)
		writeResponse(w, r, format, http.StatusOK, logLevelResponse{OK: true, Log: &snap}, func() string {
			var b strings.Builder
			appendLevelLines(&b, "", snap)
			return b.String()
		})
	})
}

// LogLevelSetHandler returns a POST handler setting lv from ?level=debug|info|warn|error.
func LogLevelSetHandler(lv *slog.LevelVar, opts ...LogLevelOption) http.Handler {
	if lv == nil {
		panic("ops: nil slog.LevelVar")
	}
	cfg := applyLogLevelOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, format, "POST")
			return
		}
		raw, _ := getQueryRequired(r, "level")
		level, ok := logging.LookupLevel(raw)
		if !ok {
			writeError(w, r, format, http.StatusBadRequest, "invalid level (want one of: debug, info, warn, error)")
			return
		}

		old := LogLevel(lv)
		lv.Set(level)
		cur := LogLevel(lv)
		writeResponse(w, r, format, http.StatusOK, logLevelResponse{OK: true, Old: &old, New: &cur}, func() string {
			var b strings.Builder
			appendLevelLines(&b, "old_", old)
			appendLevelLines(&b, "new_", cur)
			return b.String()
		})
	})
}

// appendLevelLines writes log\t<prefix>level\t<value> lines.
func appendLevelLines(b *strings.Builder, prefix string, s LogLevelSnapshot) {
	b.WriteString("log\t" + prefix + "level\t" + s.Level + "\n")
	b.WriteString("log\t" + prefix + "level_value\t" + strconv.Itoa(s.LevelValue) + "\n")
}
