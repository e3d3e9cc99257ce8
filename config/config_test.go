package config_test

import (
	"testing"

	"github.com/pixelforge/imgcore/config"
)

func TestDefaultIsValid(t *testing.T) {
	if err := config.Validate(config.Default()); err != nil {
		t.Fatalf("Validate(Default()): %v", err)
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	c := config.Default()
	c.LogLevel = "verbose"
	if err := config.Validate(c); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestValidateRejectsNegativeHints(t *testing.T) {
	c := config.Default()
	c.BitmapCapacityHint = -1
	if err := config.Validate(c); err == nil {
		t.Fatal("expected an error for a negative BitmapCapacityHint")
	}

	c = config.Default()
	c.CodecCapacityHint = -1
	if err := config.Validate(c); err == nil {
		t.Fatal("expected an error for a negative CodecCapacityHint")
	}
}

func TestOptionsAppliesCapacityHintsOnlyWhenPositive(t *testing.T) {
	c := config.Default()
	c.BitmapCapacityHint = 0
	c.CodecCapacityHint = 0
	opts := c.Options()
	// WithEnabledCodecs and WithSecurityPolicy are always present; the two
	// capacity hints are appended only when positive.
	if len(opts) != 2 {
		t.Fatalf("len(Options()) = %d, want 2 when both hints are zero", len(opts))
	}
}
