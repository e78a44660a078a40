package log

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultMaxSizeBytes = 20 * 1024 * 1024
	envLogLevel         = "LOG_LEVEL"
	envLogFormat        = "LOG_FORMAT"
	envLogFilePath      = "LOG_FILE_PATH"
	envLogMaxSizeMB     = "LOG_MAX_SIZE_MB"
	logFormatText       = "text"
	logFormatJSON       = "json"
)

var (
	mu     sync.RWMutex
	global = newLoggerFromEnv()
)

type settings struct {
	level        zapcore.Level
	format       string
	filePath     string
	maxSizeBytes int64
}

func settingsFromEnv() settings {
	s := settings{
		level:        zapcore.InfoLevel,
		format:       logFormatText,
		filePath:     strings.TrimSpace(os.Getenv(envLogFilePath)),
		maxSizeBytes: defaultMaxSizeBytes,
	}
	if raw := strings.TrimSpace(os.Getenv(envLogLevel)); raw != "" {
		if parsed, err := zapcore.ParseLevel(strings.ToLower(raw)); err == nil {
			s.level = parsed
		}
	}
	if strings.ToLower(strings.TrimSpace(os.Getenv(envLogFormat))) == logFormatJSON {
		s.format = logFormatJSON
	}
	if raw := strings.TrimSpace(os.Getenv(envLogMaxSizeMB)); raw != "" {
		if sizeMB, err := strconv.Atoi(raw); err == nil && sizeMB > 0 {
			s.maxSizeBytes = int64(sizeMB) * 1024 * 1024
		}
	}
	return s
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func newEncoder(format string, color bool) zapcore.Encoder {
	cfg := encoderConfig()
	if format == logFormatJSON {
		return zapcore.NewJSONEncoder(cfg)
	}
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// build logs to stdout and, when a file path is set, to a size capped file.
// Colors are only used on stdout.
func build(s settings) *zap.Logger {
	level := zap.NewAtomicLevelAt(s.level)
	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(s.format, true), zapcore.Lock(os.Stdout), level),
	}
	if s.filePath != "" {
		cores = append(cores, zapcore.NewCore(newEncoder(s.format, false), newRotatingFile(s.filePath, s.maxSizeBytes), level))
	}
	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	)
}

func newLoggerFromEnv() *zap.SugaredLogger {
	return build(settingsFromEnv()).Sugar()
}

// Reload rebuilds the process logger from LOG_* after a .env file was loaded.
func Reload() {
	l := newLoggerFromEnv()
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// SetLogger replaces the process logger.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	global = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

func Debugf(format string, args ...any) {
	current().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	current().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	current().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	current().Errorf(format, args...)
}

// Infow logs a message with structured key/value pairs.
func Infow(msg string, keysAndValues ...any) {
	current().Infow(msg, keysAndValues...)
}

func Sync() error {
	return current().Sync()
}
