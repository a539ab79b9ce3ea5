package log

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a zap logger with context hooks. Hooks run on every entry and
// may append fields derived from the context (request id, device id).
type Logger struct {
	zap   *zap.Logger
	level zap.AtomicLevel

	mu    sync.RWMutex
	hooks []Hook
}

var (
	globalMu     sync.RWMutex
	globalLogger = newLogger(Config{Name: "clienthub", Level: "info", Format: "console"})
)

// New builds a Logger from config. Provided to fx.
func New(cfg Config) *Logger {
	return newLogger(cfg)
}

func newLogger(cfg Config) *Logger {
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stderr)}
	if cfg.File.Path != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
		}))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)

	zl := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	if cfg.Name != "" {
		zl = zl.Named(cfg.Name)
	}

	return &Logger{zap: zl, level: level}
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetGlobalConfig reconfigures the global logger. Called once at startup.
func SetGlobalConfig(cfg Config) {
	globalMu.Lock()
	defer globalMu.Unlock()

	hooks := globalLogger.snapshotHooks()
	globalLogger = newLogger(cfg)
	globalLogger.hooks = hooks
}

// GetGlobalLogger returns the process-wide logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	return globalLogger
}

// AddHook registers a context hook on this logger.
func (l *Logger) AddHook(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, h)
}

func (l *Logger) snapshotHooks() []Hook {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Hook, len(l.hooks))
	copy(out, l.hooks)

	return out
}

func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields ...Field) {
	for _, h := range l.snapshotHooks() {
		fields = h.Apply(ctx, msg, fields...)
	}

	if ce := l.zap.Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Debug logs at debug level with context hook fields applied.
func Debug(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().log(ctx, zapcore.DebugLevel, msg, fields...)
}

// Info logs at info level with context hook fields applied.
func Info(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().log(ctx, zapcore.InfoLevel, msg, fields...)
}

// Warn logs at warn level with context hook fields applied.
func Warn(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().log(ctx, zapcore.WarnLevel, msg, fields...)
}

// Error logs at error level with context hook fields applied.
func Error(ctx context.Context, msg string, fields ...Field) {
	GetGlobalLogger().log(ctx, zapcore.ErrorLevel, msg, fields...)
}

// DebugEnabled reports whether debug entries are being emitted.
func DebugEnabled(ctx context.Context) bool {
	return GetGlobalLogger().level.Enabled(zapcore.DebugLevel)
}
