package observability

import (
	"fmt"
	"regexp"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface bot components depend on. *logging.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

type redactRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Order matters: key blocks first so their base64 bodies are not matched
// piecemeal by the narrower rules.
var redactRules = []redactRule{
	{regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`), "[PRIVATE_KEY]"},
	{regexp.MustCompile(`(?im)^(\s*(?:PrivateKey|PresharedKey)\s*=\s*)\S+`), "${1}[HIDDEN]"},
	{regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`), "[BOT_TOKEN]"},
	{regexp.MustCompile(`(?i)\b(api[_-]?key)(\s*[=:]\s*)[^\s,;&"']+`), "${1}${2}[HIDDEN]"},
	{regexp.MustCompile(`(?i)\b(password|passwd|secret|auth_?token|token)(\s*[=:]\s*)[^\s,;&"']+`), "${1}${2}[HIDDEN]"},
}

// Redact masks bot tokens, credentials and private key material in s.
func Redact(s string) string {
	if s == "" {
		return s
	}
	for _, rule := range redactRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}
	return s
}

// RedactFields returns a copy of fields with string, stringer and error values
// passed through Redact.
func RedactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = Redact(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zap.String(f.Key, Redact(err.Error()))
			}
		case zapcore.StringerType:
			if s, ok := f.Interface.(fmt.Stringer); ok && s != nil {
				f = zap.String(f.Key, Redact(s.String()))
			}
		}
		out[i] = f
	}
	return out
}

type redactingLogger struct {
	inner Logger
}

// NewRedactingLogger wraps inner so every message and field is redacted
// before it reaches a sink.
func NewRedactingLogger(inner Logger) Logger {
	if inner == nil {
		return NopLogger{}
	}
	if already, ok := inner.(redactingLogger); ok {
		return already
	}
	return redactingLogger{inner: inner}
}

// Redacting wraps a gofulmen logger, tolerating nil.
func Redacting(l *logging.Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return NewRedactingLogger(l)
}

func (r redactingLogger) Debug(msg string, fields ...zap.Field) {
	r.inner.Debug(Redact(msg), RedactFields(fields)...)
}

func (r redactingLogger) Info(msg string, fields ...zap.Field) {
	r.inner.Info(Redact(msg), RedactFields(fields)...)
}

func (r redactingLogger) Warn(msg string, fields ...zap.Field) {
	r.inner.Warn(Redact(msg), RedactFields(fields)...)
}

func (r redactingLogger) Error(msg string, fields ...zap.Field) {
	r.inner.Error(Redact(msg), RedactFields(fields)...)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...zap.Field) {}
func (NopLogger) Info(string, ...zap.Field)  {}
func (NopLogger) Warn(string, ...zap.Field)  {}
func (NopLogger) Error(string, ...zap.Field) {}
