package params

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Monetary holds the constants of the monetary policy.
// Defaults follow the Basis whitepaper recommendations scaled down for a
// devnet (a 5-year bond expiration is impractical at 200ms blocks).
type Monetary struct {
	// ExpirationPeriod is the bond lifetime in blocks.
	ExpirationPeriod uint64
	// MaximumBids bounds the bid book. Overflow evicts the lowest bid.
	MaximumBids int
	// AdjustmentFrequency is the number of blocks between supply checks.
	AdjustmentFrequency uint64
	// BaseUnit is the amount of coins meant to track one unit of the
	// pegged value. A value of 1_000_000 when tracking dollars means the
	// coin targets a price of 1_000_000 coins per dollar.
	BaseUnit uint64
	// InitialSupply is the genesis coin supply.
	InitialSupply uint64
	// MinimumSupply is the floor below which contraction is refused.
	MinimumSupply uint64
}

type Node struct {
	// MinBlockTime throttles block production to prevent excessive empty
	// blocks on a devnet.
	//
	// Recommended values:
	//   - Devnet:     200ms (5 blocks/sec, prevents log spam)
	//   - Simulation: 0ms (as fast as the loop runs)
	MinBlockTime time.Duration
	// DataDir is where the pebble database and logs live.
	DataDir string
	// APIAddr is the listen address of the REST/WebSocket server.
	APIAddr string
}

type Config struct {
	Monetary Monetary
	Node     Node
}

func Default() Config {
	return Config{
		Monetary: Monetary{
			ExpirationPeriod:    432_000, // ~1 day at 200ms blocks
			MaximumBids:         1_000,
			AdjustmentFrequency: 10,
			BaseUnit:            1_000_000,
			InitialSupply:       1_000 * 1_000_000,
			MinimumSupply:       1_000_000,
		},
		Node: Node{
			MinBlockTime: 200 * time.Millisecond,
			DataDir:      "data",
			APIAddr:      ":8080",
		},
	}
}

// Validate enforces the genesis constraints.
func (c Config) Validate() error {
	if c.Monetary.InitialSupply <= c.Monetary.MinimumSupply {
		return fmt.Errorf("initial supply (%d) must be greater than the minimum supply (%d)",
			c.Monetary.InitialSupply, c.Monetary.MinimumSupply)
	}
	if c.Monetary.BaseUnit == 0 {
		return fmt.Errorf("base unit must be positive")
	}
	if c.Monetary.AdjustmentFrequency == 0 {
		return fmt.Errorf("adjustment frequency must be positive")
	}
	if c.Monetary.MaximumBids <= 0 {
		return fmt.Errorf("maximum bids must be positive")
	}
	return nil
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Optional - won't fail if the file does not exist.
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("EXPIRATION_PERIOD"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Monetary.ExpirationPeriod = n
		}
	}
	if v := os.Getenv("MAXIMUM_BIDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Monetary.MaximumBids = n
		}
	}
	if v := os.Getenv("ADJUSTMENT_FREQUENCY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Monetary.AdjustmentFrequency = n
		}
	}
	if v := os.Getenv("BASE_UNIT"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Monetary.BaseUnit = n
		}
	}
	if v := os.Getenv("INITIAL_SUPPLY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Monetary.InitialSupply = n
		}
	}
	if v := os.Getenv("MINIMUM_SUPPLY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Monetary.MinimumSupply = n
		}
	}

	if v := os.Getenv("NODE_MIN_BLOCK_TIME_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Node.MinBlockTime = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Node.APIAddr = v
	}

	return cfg
}
