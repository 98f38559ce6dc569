package chain

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/basislabs/basisd/pkg/coin"
	"github.com/basislabs/basisd/pkg/util"
)

// maxTxPerBlock bounds how many queued transactions one block applies.
const maxTxPerBlock = 512

// Producer is the single-threaded block loop driving the engine: each
// block it runs the supply adjustment hook first, then applies the
// block's queued user transactions in mempool order (transfers, then
// cancels, then bids; admission order within each), then commits the
// state hash. All engine access goes through the producer's lock, so
// dispatches stay sequentially consistent while the API reads
// concurrently.
type Producer struct {
	mu      sync.Mutex // guards engine
	engine  *coin.Engine
	mempool *Mempool
	clock   util.Clock
	log     *zap.SugaredLogger

	// MinBlockTime throttles block production; zero runs the loop flat
	// out.
	MinBlockTime time.Duration
	// OnCommit, when set, is called after every block with its height
	// and state hash.
	OnCommit func(height uint64, hash [32]byte)

	height atomic.Uint64
}

func NewProducer(engine *coin.Engine, mempool *Mempool, clock util.Clock, log *zap.SugaredLogger) *Producer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Producer{
		engine:  engine,
		mempool: mempool,
		clock:   clock,
		log:     log,
	}
}

// Height returns the last produced block number.
func (p *Producer) Height() uint64 { return p.height.Load() }

// Run produces blocks until the context is cancelled.
func (p *Producer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := p.clock.Now()
		height, hash, applied := p.produceBlock()
		if applied > 0 || height%100 == 0 {
			p.log.Infow("block_committed",
				"height", height,
				"txs", applied,
				"apphash", shortHash(hash))
		}
		if p.OnCommit != nil {
			p.OnCommit(height, hash)
		}

		if p.MinBlockTime > 0 {
			if wait := p.MinBlockTime - p.clock.Now().Sub(start); wait > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-p.clock.After(wait):
				}
			}
		}
	}
}

// ProduceBlock advances the chain by one block. Exposed for tests and
// simulations driving the chain manually.
func (p *Producer) ProduceBlock() (height uint64, hash [32]byte, applied int) {
	return p.produceBlock()
}

func (p *Producer) produceBlock() (uint64, [32]byte, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	height := p.height.Add(1)

	// Supply adjustment runs before any user transactions of the block.
	p.engine.OnBlock(height)

	applied := 0
	for _, raw := range p.mempool.SelectForBlock(maxTxPerBlock) {
		if err := p.applyTx(raw); err != nil {
			p.log.Warnw("tx rejected", "height", height, "err", err)
			continue
		}
		applied++
	}

	return height, p.engine.StateHash(height), applied
}

// View runs fn under the engine lock for consistent reads. The engine
// must not be retained past the call.
func (p *Producer) View(fn func(*coin.Engine)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.engine)
}

// Dispatch runs fn under the engine lock for out-of-band dispatches such
// as genesis initialization.
func (p *Producer) Dispatch(fn func(*coin.Engine) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.engine)
}

// shortHash returns a short hex representation of the hash for logging.
func shortHash(h [32]byte) string {
	return fmt.Sprintf("0x%x", h[:8])
}
