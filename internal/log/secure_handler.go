package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces every secret that reaches a log line.
const MaskValue = "***REDACTED***"

// secretKeys are attribute keys whose value is never logged.
var secretKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"set-cookie":          true,
	"x-api-key":           true,
	"api_key":             true,
	"apikey":              true,
	"openai_api_key":      true,
}

// secretKeyParts mark a key as secret wherever they appear in it.
var secretKeyParts = []string{"password", "secret", "token"}

var (
	// openAIKey matches "sk-" keys, including project keys ("sk-proj-...").
	openAIKey = regexp.MustCompile(`sk-[A-Za-z0-9_-]{16,}`)

	// bearerCredential matches the credential of an Authorization header
	// echoed into an error or a dumped request.
	bearerCredential = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)

	// urlUserinfo matches "user:password@" in seed, link or proxy URLs.
	urlUserinfo = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s:]+:[^/@\s]+@`)
)

// SecureHandler masks oracle API keys, bearer credentials and URL
// passwords before a record reaches the wrapped handler.
type SecureHandler struct {
	next slog.Handler
}

// NewSecureHandler wraps next; a nil next wraps slog.Default().Handler().
func NewSecureHandler(next slog.Handler) *SecureHandler {
	if next == nil {
		next = slog.Default().Handler()
	}
	return &SecureHandler{next: next}
}

func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(mask(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = mask(a)
	}
	return &SecureHandler{next: h.next.WithAttrs(masked)}
}

func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{next: h.next.WithGroup(name)}
}

// mask returns a with its value masked or redacted. Groups are walked.
func mask(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = mask(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	if isSecretKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, redact(v.String()))
	case slog.KindAny:
		// Errors and URLs print their content; the HTTP client's errors
		// quote the request URL, and the oracle's quote the response.
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, redact(x.Error()))
		case fmt.Stringer:
			return slog.String(a.Key, redact(x.String()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}

func isSecretKey(key string) bool {
	key = strings.ToLower(key)
	if secretKeys[key] {
		return true
	}
	for _, part := range secretKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

// redact replaces secrets inside s and keeps the rest readable.
func redact(s string) string {
	s = openAIKey.ReplaceAllString(s, MaskValue)
	s = bearerCredential.ReplaceAllString(s, "${1}"+MaskValue)
	return urlUserinfo.ReplaceAllString(s, "${1}"+MaskValue+"@")
}

// NewLogger creates a masking logger writing text, or JSON when
// jsonFormat is set, to w. verbose selects Debug; otherwise only warnings
// and errors are written.
func NewLogger(w io.Writer, verbose, jsonFormat bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewSecureHandler(handler))
}
