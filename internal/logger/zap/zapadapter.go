package zap

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chorddht/internal/logger"
)

// ZapAdapter bridges *zap.Logger to the internal logger.Logger interface.
// All four level methods funnel through a single level-checked emit, so
// field conversion is skipped entirely when the entry would be dropped.
type ZapAdapter struct {
	L *zap.Logger
}

// NewZapAdapter wraps l. Two caller frames (the level method and emit)
// sit between the call site and zap, hence the skip of 2.
func NewZapAdapter(l *zap.Logger) ZapAdapter {
	return ZapAdapter{L: l.WithOptions(zap.AddCallerSkip(2))}
}

func (z ZapAdapter) Named(name string) logger.Logger {
	return ZapAdapter{L: z.L.Named(name)}
}

func (z ZapAdapter) With(fields ...logger.Field) logger.Logger {
	return ZapAdapter{L: z.L.With(convert(fields)...)}
}

func (z ZapAdapter) Debug(msg string, fields ...logger.Field) {
	z.emit(zapcore.DebugLevel, msg, fields)
}

func (z ZapAdapter) Info(msg string, fields ...logger.Field) {
	z.emit(zapcore.InfoLevel, msg, fields)
}

func (z ZapAdapter) Warn(msg string, fields ...logger.Field) {
	z.emit(zapcore.WarnLevel, msg, fields)
}

func (z ZapAdapter) Error(msg string, fields ...logger.Field) {
	z.emit(zapcore.ErrorLevel, msg, fields)
}

func (z ZapAdapter) emit(lvl zapcore.Level, msg string, fields []logger.Field) {
	ce := z.L.Check(lvl, msg)
	if ce == nil {
		return
	}
	ce.Write(convert(fields)...)
}

func convert(fields []logger.Field) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	zf := make([]zap.Field, len(fields))
	for i, f := range fields {
		zf[i] = zap.Any(f.Key, f.Val)
	}
	return zf
}
