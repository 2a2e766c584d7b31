package logger

import "chorddht/internal/domain"

// Field is a structured key:value pair attached to a log entry.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal structured-logging interface the DHT core depends
// on; it never imports zap directly so tests can substitute NopLogger.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F is a concise constructor for a Field.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FNode serializes a domain.NodeRef into a readable structured field.
func FNode(key string, n domain.NodeRef) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"id":   n.ID.String(),
			"addr": n.Addr,
		},
	}
}

// FResource serializes a domain.Resource into a readable structured field,
// omitting the value bytes themselves.
func FResource(key string, r domain.Resource) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"key":    r.Key.String(),
			"rawKey": r.RawKey,
			"size":   len(r.Value),
		},
	}
}

// NopLogger discards every log entry. Used when logging is disabled and as
// the default in unit tests.
type NopLogger struct{}

func (l NopLogger) Named(name string) Logger          { return l }
func (l NopLogger) With(fields ...Field) Logger       { return l }
func (l NopLogger) Debug(msg string, fields ...Field) {}
func (l NopLogger) Info(msg string, fields ...Field)  {}
func (l NopLogger) Warn(msg string, fields ...Field)  {}
func (l NopLogger) Error(msg string, fields ...Field) {}
