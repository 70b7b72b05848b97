package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger configuration
var (
	globalMu   sync.RWMutex
	globalBase = zap.NewNop()
	globalFile string
)

var logLevelNames = map[string]zapcore.Level{
	"error": zapcore.ErrorLevel,
	"warn":  zapcore.WarnLevel,
	"info":  zapcore.InfoLevel,
	"debug": zapcore.DebugLevel,
}

// Logger is a component-scoped logger. Components obtain one once at
// package level and keep it for the process lifetime.
type Logger struct {
	component string
}

func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) sugar() *zap.SugaredLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalBase.Named(l.component).Sugar()
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar().Errorf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar().Warnf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar().Infof(format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar().Debugf(format, args...)
}

func (l *Logger) Fatal(format string, args ...interface{}) {
	l.sugar().Errorf(format, args...)
	_ = globalBase.Sync()
	os.Exit(1)
}

// Setup creates the log directory if needed and routes all loggers to
// stdout plus a timestamped file inside it. The directory must be
// writable before the first record is emitted; failure here is fatal to
// startup.
func Setup(logDir, levelStr string) (string, error) {
	level, ok := logLevelNames[levelStr]
	if !ok {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("app_%s.log", time.Now().Format("20060102_150405")))
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open log file %s: %w", logFile, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level),
		zapcore.NewCore(enc, zapcore.AddSync(f), level),
	)

	globalMu.Lock()
	globalBase = zap.New(core)
	globalFile = logFile
	globalMu.Unlock()

	NewLogger("logging").Info("Logging to file: %s", logFile)
	return logFile, nil
}

// CurrentLogFile returns the path of the active log file, empty before Setup.
func CurrentLogFile() string {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalFile
}
