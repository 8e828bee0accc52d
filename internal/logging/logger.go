// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the logger is built.
type Options struct {
	// Dir is where the timestamped log file is written. Empty disables file output.
	Dir string
	// Debug lowers the level to debug and switches to the development encoder.
	Debug bool
	// Verbose tees log output to stderr in addition to the log file.
	Verbose bool
}

// New builds a zap.Logger that writes to a timestamped file under opts.Dir,
// optionally teeing to stderr. The returned path is the log file location,
// empty when file output is disabled.
func New(opts Options) (*zap.Logger, string, error) {
	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	var cores []zapcore.Core
	logPath := ""

	if opts.Dir != "" {
		logPath = filepath.Join(opts.Dir, time.Now().Format("20060102-150405")+"_flighttrack.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, "", fmt.Errorf("open log file: %w", err)
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
	}

	if opts.Verbose || opts.Dir == "" {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(os.Stderr), level))
	}

	return zap.New(zapcore.NewTee(cores...)), logPath, nil
}
