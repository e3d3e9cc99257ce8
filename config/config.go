// Package config holds process-wide ambient settings a Context is built
// from: log level, codec/bitmap capacity hints, and default policy. Job-
// scoped concerns (worker pools, retries, storage backends) belonged to
// the teacher's Config but have no place here — a Context is single-
// threaded per job (see core.Context), so there is no pool to size.
package config

import (
	"errors"

	"github.com/pixelforge/imgcore/codecs"
	"github.com/pixelforge/imgcore/core"
)

// Config is the top-level ambient configuration struct. Config{} has safe
// zero-value defaults; call Default() for the populated starting point.
type Config struct {
	// LogLevel selects the minimum slog level a Logger built from this
	// Config should emit: "debug", "info", "warn", "error".
	LogLevel string

	// BitmapCapacityHint and CodecCapacityHint size the Context's internal
	// maps up front, avoiding growth reallocation for jobs with a known
	// approximate io_id/bitmap count.
	BitmapCapacityHint int
	CodecCapacityHint  int

	// EnabledCodecs is the default codec-selection policy every Context
	// built from this Config starts with.
	EnabledCodecs codecs.EnabledCodecs

	// Security is the default dimension-cap policy every Context built
	// from this Config starts with.
	Security core.SecurityPolicy
}

// Default returns a Config populated with sensible production defaults.
func Default() Config {
	return Config{
		LogLevel:           "info",
		BitmapCapacityHint: 8,
		CodecCapacityHint:  8,
		EnabledCodecs:      codecs.DefaultEnabledCodecs(),
		Security:           core.DefaultSecurityPolicy(),
	}
}

// Validate returns an error if the configuration is inconsistent.
func Validate(c Config) error {
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.New("config: LogLevel must be one of debug, info, warn, error")
	}
	if c.BitmapCapacityHint < 0 {
		return errors.New("config: BitmapCapacityHint must not be negative")
	}
	if c.CodecCapacityHint < 0 {
		return errors.New("config: CodecCapacityHint must not be negative")
	}
	return nil
}

// Options converts Config into the core.Option list Create expects.
func (c Config) Options() []core.Option {
	opts := []core.Option{
		core.WithEnabledCodecs(c.EnabledCodecs),
		core.WithSecurityPolicy(c.Security),
	}
	if c.BitmapCapacityHint > 0 {
		opts = append(opts, core.WithBitmapCapacityHint(c.BitmapCapacityHint))
	}
	if c.CodecCapacityHint > 0 {
		opts = append(opts, core.WithCodecCapacityHint(c.CodecCapacityHint))
	}
	return opts
}
