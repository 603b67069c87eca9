package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/astro-comp/registrar/config"
)

// New builds the production JSON logger. With a log directory, entries also go
// to <dir>/app.log and errors additionally to <dir>/error.log.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	paths := []string{"stdout"}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		paths = append(paths, filepath.Join(cfg.Dir, "app.log"))
	}
	out, _, err := zap.Open(paths...)
	if err != nil {
		return nil, fmt.Errorf("open log outputs: %w", err)
	}
	cores := []zapcore.Core{zapcore.NewCore(encoder, out, level)}

	if cfg.Dir != "" {
		errOut, _, err := zap.Open(filepath.Join(cfg.Dir, "error.log"))
		if err != nil {
			return nil, fmt.Errorf("open error log: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder.Clone(), errOut, zapcore.ErrorLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
