package telemetry

import (
	"os"
	"sort"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerOnce sync.Once
	logger     *zap.Logger
)

// stdoutSyncer resolves os.Stdout on every write so redirected output is honored.
type stdoutSyncer struct{}

func (stdoutSyncer) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdoutSyncer) Sync() error                 { return nil }

func base() *zap.Logger {
	loggerOnce.Do(func() {
		encCfg := zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			MessageKey:     "msg",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
		}
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), stdoutSyncer{}, zap.DebugLevel)
		logger = zap.New(core)
	})
	return logger
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	base().Info(msg, toZap(fields)...)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	base().Warn(msg, toZap(fields)...)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	base().Error(msg, toZap(fields)...)
}

// Logger returns the underlying zap logger for callers that want typed fields.
func Logger() *zap.Logger {
	return base()
}

// Truncate shortens s to at most limit runes, marking the cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "...(truncated)"
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
