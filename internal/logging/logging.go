// Package logging builds the process logger and a few shared fields.
package logging

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shpitdev/dossier-outreach/pkg/pipeline/redact"
)

// Options selects the encoder and level.
type Options struct {
	Verbose bool
	// Format is "json" (default) or "console".
	Format string
}

// New builds a production zap logger. Verbose lowers the level to debug.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = !opts.Verbose

	logger, err := cfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logging: build logger")
	}
	return logger, nil
}

// Err is zap.Error with secrets removed from the message.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", redact.Secrets(err.Error()))
}

// Duration logs d in whole milliseconds under duration_ms.
func Duration(d time.Duration) zap.Field {
	return zap.Int64("duration_ms", d.Milliseconds())
}
