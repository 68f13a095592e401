package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RunLogName is the rotating JSON log shared by every run.
const RunLogName = "shardprobe.log"

// NewLogger returns the structured run logger writing to <logDir>/shardprobe.log.
func NewLogger(logDir string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, RunLogName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel)
	return zap.New(core), nil
}

// StrategyLogPath is where a strategy's own log is written.
func StrategyLogPath(logDir, name string) string {
	return filepath.Join(logDir, name+".log")
}

// NewStrategyLogger tees human-readable lines to console and to
// <logDir>/<name>.log. The file is truncated, so it only ever holds the
// latest run. Callers add the strategy field themselves. The returned func
// syncs and closes the file.
func NewStrategyLogger(logDir, name string, console io.Writer) (*zap.Logger, func() error, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.Create(StrategyLogPath(logDir, name))
	if err != nil {
		return nil, nil, fmt.Errorf("create strategy log: %w", err)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	enc := zapcore.NewConsoleEncoder(cfg)

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(f), zap.InfoLevel)}
	if console != nil {
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(console), zap.InfoLevel))
	}
	l := zap.New(zapcore.NewTee(cores...))

	closeFn := func() error {
		_ = l.Sync()
		return f.Close()
	}
	return l, closeFn, nil
}
