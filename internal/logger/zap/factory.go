package zap

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"chorddht/internal/config"
)

// New builds a *zap.Logger from the logger section of the node
// configuration. An unknown level falls back to info rather than failing
// the boot; ValidateConfig has already rejected truly malformed sections.
func New(cfg config.LoggerConfig) *zap.Logger {
	core := zapcore.NewCore(newEncoder(cfg.Encoding), newSink(cfg), parseLevel(cfg.Level))
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func parseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// newEncoder keys entries with ts/component and renders console output
// with colored capitalized levels, JSON with lowercase ones.
func newEncoder(encoding string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.NameKey = "component"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewJSONEncoder(ec)
}

// newSink writes to a lumberjack-rotated file in file mode, stdout
// otherwise.
func newSink(cfg config.LoggerConfig) zapcore.WriteSyncer {
	if cfg.Mode == "file" && cfg.File.Path != "" {
		return zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSize,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAge,
			Compress:   cfg.File.Compress,
		})
	}
	return zapcore.AddSync(os.Stdout)
}
