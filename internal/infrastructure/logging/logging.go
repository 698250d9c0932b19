// Package logging provides the process logger. Every line passes through
// Redact so service keys and tokens never reach the log sink.
package logging

import (
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	bearerRe      = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9._\-+/=]+)`)
	headerKeyRe   = regexp.MustCompile(`(?i)(x-api-key\s*[:=]\s*)([A-Za-z0-9._\-+/=%]+)`)
	apiKeyValueRe = regexp.MustCompile(`(?i)(api[_-]?key\s*[:=]\s*)([A-Za-z0-9._\-+/=%]+)`)
	tokenRe       = regexp.MustCompile(`(?i)(token\s*[:=]\s*)([A-Za-z0-9._\-+/=:%]{6,})`)
	botPathRe     = regexp.MustCompile(`/bot[0-9]+:[A-Za-z0-9_\-]+`)
	urlRe         = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// secretParams are query parameters whose values are always masked.
var secretParams = []string{"serviceKey", "servicekey", "api_key", "key", "token"}

// Redact masks known secret patterns in s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	out := urlRe.ReplaceAllStringFunc(s, redactURL)
	out = botPathRe.ReplaceAllString(out, "/bot[REDACTED]")
	out = bearerRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = headerKeyRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = apiKeyValueRe.ReplaceAllString(out, "${1}[REDACTED]")
	out = tokenRe.ReplaceAllString(out, "${1}[REDACTED]")
	return out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for _, p := range secretParams {
		if q.Has(p) {
			q.Set(p, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Logger writes redacted lines to a *log.Logger.
type Logger struct {
	out *log.Logger
}

// New returns a logger writing to w.
func New(w io.Writer, prefix string) *Logger {
	return &Logger{out: log.New(w, prefix, log.LstdFlags)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return New(io.Discard, "")
}

// Printf formats and writes one redacted line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil {
		return
	}
	l.out.Print(Redact(fmt.Sprintf(format, args...)))
}

// Open logs to the file at path, appending. When path is empty or the file
// cannot be opened the logger writes to stderr. The returned closer is never nil.
func Open(path, prefix string) (*Logger, io.Closer) {
	if strings.TrimSpace(path) == "" {
		return New(os.Stderr, prefix), io.NopCloser(nil)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l := New(os.Stderr, prefix)
		l.Printf("log file %s unavailable, logging to stderr: %v", path, err)
		return l, io.NopCloser(nil)
	}
	return New(f, prefix), f
}
