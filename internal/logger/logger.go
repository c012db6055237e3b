package logger

import (
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogLevel string

const (
	InfoLevel  LogLevel = "INFO"
	ErrorLevel LogLevel = "ERROR"
	DebugLevel LogLevel = "DEBUG"
)

// Logger is a module scoped structured logger. All Loggers share the zap core
// installed by Init, so package level loggers created before Init pick it up.
type Logger struct{}

var root atomic.Pointer[zap.Logger]

var (
	emailRegex  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	tokenRegex  = regexp.MustCompile(`eyJ[^\s]+`)
	userIDRegex = regexp.MustCompile(`\buser_id"?\s*[=:]\s*"?(?:[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|\d+)\b"?`)
)

// Init builds the shared zap logger. env "production" selects the JSON encoder.
func Init(env string) error {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return err
	}
	root.Store(z)
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	if z := root.Load(); z != nil {
		_ = z.Sync()
	}
}

// New creates a new Logger
func New() *Logger {
	return &Logger{}
}

func current() *zap.Logger {
	if z := root.Load(); z != nil {
		return z
	}
	z, err := zap.NewProduction(zap.AddCallerSkip(2))
	if err != nil {
		return zap.NewNop()
	}
	if root.CompareAndSwap(nil, z) {
		return z
	}
	return root.Load()
}

// Anonymize replaces sensitive information in logs (emails, tokens, IDs)
func Anonymize(s string) string {
	s = emailRegex.ReplaceAllString(s, "[REDACTED_EMAIL]")
	s = tokenRegex.ReplaceAllString(s, "[REDACTED_TOKEN]")
	s = userIDRegex.ReplaceAllString(s, "user_id=[USER_ID]")
	return s
}

func (l *Logger) log(module string, level LogLevel, msg string, err error, fields []zap.Field) {
	all := make([]zap.Field, 0, len(fields)+2)
	all = append(all, zap.String("module", module))
	if err != nil {
		all = append(all, zap.String("error", Anonymize(err.Error())))
	}
	all = append(all, fields...)

	z := current()
	msg = Anonymize(msg)
	switch level {
	case ErrorLevel:
		z.Error(msg, all...)
	case DebugLevel:
		z.Debug(msg, all...)
	default:
		z.Info(msg, all...)
	}
}

// --- Convenient methods ---
func (l *Logger) Info(module, msg string, fields ...zap.Field) {
	l.log(module, InfoLevel, msg, nil, fields)
}

func (l *Logger) Debug(module, msg string, fields ...zap.Field) {
	l.log(module, DebugLevel, msg, nil, fields)
}

func (l *Logger) Error(module, msg string, err error, fields ...zap.Field) {
	l.log(module, ErrorLevel, msg, err, fields)
}
