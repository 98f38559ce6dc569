package params

import (
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidateRejectsBadSupply(t *testing.T) {
	cfg := Default()
	cfg.Monetary.InitialSupply = cfg.Monetary.MinimumSupply
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when initial supply does not exceed the minimum")
	}
}

func TestValidateRejectsZeroFrequency(t *testing.T) {
	cfg := Default()
	cfg.Monetary.AdjustmentFrequency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero adjustment frequency")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("BASE_UNIT", "2000")
	t.Setenv("INITIAL_SUPPLY", "500000")
	t.Setenv("MAXIMUM_BIDS", "25")
	t.Setenv("NODE_MIN_BLOCK_TIME_MS", "50")
	t.Setenv("API_ADDR", ":9999")

	cfg := LoadFromEnv("nonexistent.env")
	if cfg.Monetary.BaseUnit != 2000 {
		t.Errorf("BaseUnit = %d, want 2000", cfg.Monetary.BaseUnit)
	}
	if cfg.Monetary.InitialSupply != 500000 {
		t.Errorf("InitialSupply = %d, want 500000", cfg.Monetary.InitialSupply)
	}
	if cfg.Monetary.MaximumBids != 25 {
		t.Errorf("MaximumBids = %d, want 25", cfg.Monetary.MaximumBids)
	}
	if cfg.Node.MinBlockTime != 50*time.Millisecond {
		t.Errorf("MinBlockTime = %v, want 50ms", cfg.Node.MinBlockTime)
	}
	if cfg.Node.APIAddr != ":9999" {
		t.Errorf("APIAddr = %q, want :9999", cfg.Node.APIAddr)
	}
}

func TestLoadFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv("BASE_UNIT", "not-a-number")
	cfg := LoadFromEnv("nonexistent.env")
	if cfg.Monetary.BaseUnit != Default().Monetary.BaseUnit {
		t.Errorf("BaseUnit = %d, want the default", cfg.Monetary.BaseUnit)
	}
}
