package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/basislabs/basisd/params"
	"github.com/basislabs/basisd/pkg/api"
	"github.com/basislabs/basisd/pkg/chain"
	"github.com/basislabs/basisd/pkg/coin"
	"github.com/basislabs/basisd/pkg/oracle"
	"github.com/basislabs/basisd/pkg/storage"
	"github.com/basislabs/basisd/pkg/util"
)

func main() {
	// Load config from .env file and environment variables.
	cfg := params.LoadFromEnv("")
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	// Setup logging (write to both console and file).
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = filepath.Join(cfg.Node.DataDir, "node.log")
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- State store ----
	store, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "state"))
	if err != nil {
		sugar.Fatalw("pebble_open_failed", "err", err)
	}
	defer store.Close()

	// ---- Oracle ----
	src := selectOracle(cfg, sugar)

	// ---- Engine ----
	// The emitter tees every event to the log and, once the API server
	// is up, to the websocket stream.
	var apiServer *api.Server
	var producer *chain.Producer
	emitter := coin.EmitterFunc(func(ev coin.Event) {
		sugar.Infow("event", "kind", ev.Kind, "account", ev.Account.Hex(), "amount", ev.Amount)
		if apiServer != nil && producer != nil {
			apiServer.BroadcastEvent(producer.Height(), ev)
		}
	})

	engine, err := coin.NewEngine(cfg.Monetary, store, src, emitter, sugar)
	if err != nil {
		sugar.Fatalw("engine_init_failed", "err", err)
	}

	// ---- Genesis ----
	if !engine.Initialized() {
		if err := runGenesis(engine); err != nil {
			sugar.Fatalw("genesis_failed", "err", err)
		}
		if engine.Initialized() {
			sugar.Infow("genesis_applied", "supply", engine.CoinSupply())
		} else {
			sugar.Info("genesis_skipped - set GENESIS_FOUNDER or GENESIS_SHAREHOLDERS")
		}
	}

	// ---- Block production ----
	mempool := chain.NewMempool()
	producer = chain.NewProducer(engine, mempool, util.RealClock{}, sugar)
	producer.MinBlockTime = cfg.Node.MinBlockTime

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- API server ----
	apiServer = api.NewServer(producer, mempool, sugar)
	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_starting",
		"base_unit", cfg.Monetary.BaseUnit,
		"adjustment_frequency", cfg.Monetary.AdjustmentFrequency,
		"min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds())

	if err := producer.Run(ctx); err != nil && ctx.Err() == nil {
		sugar.Fatalw("producer_failed", "err", err)
	}
}

// selectOracle picks the price source from the ORACLE env var:
// "static" (default, pinned to the peg), "feed" (HTTP JSON feed at
// ORACLE_FEED_URL), or "random" (bounded random walk, devnet only).
func selectOracle(cfg params.Config, sugar *zap.SugaredLogger) coin.PriceSource {
	switch os.Getenv("ORACLE") {
	case "feed":
		url := os.Getenv("ORACLE_FEED_URL")
		sugar.Infow("oracle_selected", "kind", "feed", "url", url)
		return oracle.NewFeed(url, cfg.Monetary.BaseUnit)
	case "random":
		// Seeded from the wall clock so each run walks a different
		// path. The oracle sits outside the producer's deterministic
		// path, so this does not affect block application.
		seed := time.Now().UnixNano()
		sugar.Infow("oracle_selected", "kind", "random", "seed", seed)
		return oracle.NewRandom(cfg.Monetary.BaseUnit, seed)
	default:
		sugar.Infow("oracle_selected", "kind", "static", "price", cfg.Monetary.BaseUnit)
		return oracle.Static{Price: cfg.Monetary.BaseUnit}
	}
}

// runGenesis initializes the coin from GENESIS_SHAREHOLDERS (comma
// separated addresses) or GENESIS_FOUNDER. No-op when neither is set.
func runGenesis(engine *coin.Engine) error {
	if list := os.Getenv("GENESIS_SHAREHOLDERS"); list != "" {
		var shareholders []common.Address
		for _, s := range strings.Split(list, ",") {
			s = strings.TrimSpace(s)
			if !common.IsHexAddress(s) {
				continue
			}
			shareholders = append(shareholders, common.HexToAddress(s))
		}
		if len(shareholders) > 0 {
			return engine.InitWithShareholders(shareholders[0], shareholders)
		}
	}
	if founder := os.Getenv("GENESIS_FOUNDER"); common.IsHexAddress(founder) {
		return engine.Init(common.HexToAddress(founder))
	}
	return nil
}
