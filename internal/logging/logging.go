// Package logging builds the zap loggers used by the relink binaries.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console logger writing to w at the given level ("debug",
// "info", "warn", "error"). Development mode adds caller information and
// colored levels.
func New(w io.Writer, level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var opts []zap.Option
	if development {
		encCfg = zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		opts = append(opts, zap.AddCaller(), zap.Development())
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		lvl,
	)
	return zap.New(core, opts...), nil
}

// Must is New that falls back to a no-op logger on error.
func Must(w io.Writer, level string, development bool) *zap.Logger {
	l, err := New(w, level, development)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
