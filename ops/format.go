package ops

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Format controls the response rendering format.
//
// This is shared across ops handlers that support multiple output formats.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func normalizeFormat(f Format) Format {
	if f != FormatText && f != FormatJSON {
		return FormatText
	}
	return f
}

func formatFromRequest(r *http.Request, def Format) Format {
	if r == nil || r.URL == nil {
		return def
	}
	switch r.URL.Query().Get("format") {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return def
	}
}

// writeResponse renders v as JSON, or the output of text as plain text. HEAD requests get headers
// only.
func writeResponse(w http.ResponseWriter, r *http.Request, f Format, code int, v any, text func() string) {
	w.Header().Set("Cache-Control", "no-store")
	if f == FormatJSON {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.WriteHeader(code)
	if r.Method == http.MethodHead {
		return
	}
	if f == FormatJSON {
		_ = json.NewEncoder(w).Encode(v)
		return
	}
	_, _ = w.Write([]byte(text()))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, f Format, allow string) {
	w.Header().Set("Allow", allow)
	writeResponse(w, r, f, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"}, func() string {
		return "method not allowed\n"
	})
}

func writeError(w http.ResponseWriter, r *http.Request, f Format, code int, msg string) {
	writeResponse(w, r, f, code, errorResponse{Error: msg}, func() string {
		return escapeTextField(msg) + "\n"
	})
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// getQueryRequired returns the first value of a query parameter that is present and non-empty.
func getQueryRequired(r *http.Request, name string) (string, bool) {
	if r == nil || r.URL == nil {
		return "", false
	}
	vs := r.URL.Query()[name]
	if len(vs) == 0 || vs[0] == "" {
		return "", false
	}
	return vs[0], true
}

// escapeTextField escapes characters that would break line-based, tab-separated output:
// backslash, tab, CR, LF, and other ASCII control characters (as \u00XX).
func escapeTextField(s string) string {
	need := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; c == '\\' || c < 0x20 {
			need = true
			break
		}
	}
	if !need {
		return s
	}
	const hex = "0123456789abcdef"
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\n':
			b.WriteString(`\n`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hex[c>>4])
				b.WriteByte(hex[c&0x0f])
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
