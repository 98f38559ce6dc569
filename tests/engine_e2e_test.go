package tests

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/params"
	"github.com/basislabs/basisd/pkg/chain"
	"github.com/basislabs/basisd/pkg/coin"
	"github.com/basislabs/basisd/pkg/coin/fixed"
	"github.com/basislabs/basisd/pkg/oracle"
	"github.com/basislabs/basisd/pkg/storage"
)

// The e2e suite drives the full node stack - engine, state store,
// mempool, and block producer - through the peg lifecycle: contraction
// turns bids into bonds, expansion pays the bonds back and hands the
// residual to shareholders.

func e2eMonetary() params.Monetary {
	return params.Monetary{
		ExpirationPeriod:    100,
		MaximumBids:         10,
		AdjustmentFrequency: 2,
		BaseUnit:            1000,
		InitialSupply:       100_000,
		MinimumSupply:       1000,
	}
}

func addr(n byte) common.Address {
	var a common.Address
	a[common.AddressLength-1] = n
	return a
}

type node struct {
	engine   *coin.Engine
	mempool  *chain.Mempool
	producer *chain.Producer
	oracle   *oracle.Manual
	store    *storage.MemStore
	events   []coin.Event
}

func newNode(t *testing.T) *node {
	t.Helper()
	n := &node{
		mempool: chain.NewMempool(),
		oracle:  oracle.NewManual(1000),
		store:   storage.NewMemStore(),
	}
	emitter := coin.EmitterFunc(func(ev coin.Event) {
		n.events = append(n.events, ev)
	})
	engine, err := coin.NewEngine(e2eMonetary(), n.store, n.oracle, emitter, nil)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	n.engine = engine
	n.producer = chain.NewProducer(engine, n.mempool, nil, nil)
	return n
}

func (n *node) pushJSON(t *testing.T, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal tx: %v", err)
	}
	n.mempool.PushRaw(raw)
}

// produceUntil advances blocks until the chain reaches height h.
func (n *node) produceUntil(t *testing.T, h uint64) {
	t.Helper()
	for n.producer.Height() < h {
		n.producer.ProduceBlock()
	}
}

func TestPegLifecycle(t *testing.T) {
	n := newNode(t)

	shareholders := make([]common.Address, 10)
	for i := range shareholders {
		shareholders[i] = addr(byte(i + 1))
	}
	if err := n.producer.Dispatch(func(e *coin.Engine) error {
		return e.InitWithShareholders(shareholders[0], shareholders)
	}); err != nil {
		t.Fatalf("genesis failed: %v", err)
	}
	if got := n.engine.CoinSupply(); got != 100_000 {
		t.Fatalf("genesis supply = %d, want 100000", got)
	}

	// Two accounts bid for bonds; the txs apply at the next block.
	n.pushJSON(t, chain.BidTx{Type: "bid", Account: addr(1).Hex(), PriceParts: 800_000_000, Quantity: 1250})
	n.pushJSON(t, chain.BidTx{Type: "bid", Account: addr(2).Hex(), PriceParts: 750_000_000, Quantity: 2000})
	n.producer.ProduceBlock() // block 1
	if got := len(n.engine.Bids()); got != 2 {
		t.Fatalf("bids = %d, want 2", got)
	}
	// Payments escrowed: 80% of 1250 and 75% of 2000.
	if got := n.engine.Balance(addr(1)); got != 10_000-1000 {
		t.Errorf("balance(1) = %d, want 9000", got)
	}
	if got := n.engine.Balance(addr(2)); got != 10_000-1500 {
		t.Errorf("balance(2) = %d, want 8500", got)
	}

	// Price 2% above the peg: block 2 contracts by 2000 coins, turning
	// the two best bids into bonds.
	n.oracle.SetPrice(1020)
	n.produceUntil(t, 2)

	if got := n.engine.CoinSupply(); got != 98_000 {
		t.Errorf("supply after contraction = %d, want 98000", got)
	}
	bonds := n.engine.Bonds()
	if len(bonds) != 2 {
		t.Fatalf("bonds = %d, want 2", len(bonds))
	}
	if bonds[0].Account != addr(1) || bonds[0].Payout != 1250 {
		t.Errorf("bonds[0] = %+v, want 1250 for account 1", bonds[0])
	}
	if bonds[1].Account != addr(2) || bonds[1].Payout != 1333 {
		t.Errorf("bonds[1] = %+v, want 1333 for account 2", bonds[1])
	}
	bids := n.engine.Bids()
	if len(bids) != 1 || bids[0].Quantity != 667 {
		t.Errorf("remaining bids = %+v, want one bid of quantity 667", bids)
	}

	// Back to the peg: nothing happens.
	n.oracle.SetPrice(1000)
	n.produceUntil(t, 4)
	if got := n.engine.CoinSupply(); got != 98_000 {
		t.Errorf("supply at the peg = %d, want 98000", got)
	}

	// Price 2% below the peg: block 6 expands by 1999 coins, paying the
	// first bond fully and the second partially.
	n.oracle.SetPrice(980)
	n.produceUntil(t, 6)

	// fraction = 1000/980 - 1 = 0.020408163; delta = floor(1999.99997) = 1999.
	wantExpand := fixed.FromRational(1000, 980).Sub(fixed.FromNatural(1)).SaturatedMul(98_000)
	if got := n.engine.CoinSupply(); got != 98_000+wantExpand {
		t.Errorf("supply after expansion = %d, want %d", got, 98_000+wantExpand)
	}
	if got := n.engine.Balance(addr(1)); got != 9_000+1250 {
		t.Errorf("balance(1) = %d, want bond payout credited", got)
	}
	// Second bond partially filled with the rest.
	rest := wantExpand - 1250
	if got := n.engine.Balance(addr(2)); got != 8_500+rest {
		t.Errorf("balance(2) = %d, want %d", got, 8_500+rest)
	}
	bonds = n.engine.Bonds()
	if len(bonds) != 1 || bonds[0].Payout != 1333-rest {
		t.Errorf("bonds = %+v, want one partial bond of %d", bonds, 1333-rest)
	}

	// The remaining bid is cancelled and refunded in full.
	n.pushJSON(t, chain.CancelTx{Type: "cancel", Account: addr(2).Hex()})
	n.producer.ProduceBlock()
	if got := len(n.engine.Bids()); got != 0 {
		t.Errorf("bids after cancel = %d, want 0", got)
	}
}

func TestCancelAtOrBelowThroughMempool(t *testing.T) {
	n := newNode(t)
	if err := n.producer.Dispatch(func(e *coin.Engine) error {
		return e.Init(addr(1))
	}); err != nil {
		t.Fatalf("genesis failed: %v", err)
	}

	for _, parts := range []uint64{250_000_000, 330_000_000, 450_000_000, 500_000_000} {
		n.pushJSON(t, chain.BidTx{Type: "bid", Account: addr(1).Hex(), PriceParts: parts, Quantity: 1000})
	}
	n.producer.ProduceBlock()
	if got := len(n.engine.Bids()); got != 4 {
		t.Fatalf("bids = %d, want 4", got)
	}

	threshold := uint64(450_000_000)
	n.pushJSON(t, chain.CancelTx{Type: "cancel", Account: addr(1).Hex(), AtOrBelowParts: &threshold})
	n.producer.ProduceBlock()

	bids := n.engine.Bids()
	if len(bids) != 1 || bids[0].Price != fixed.FromParts(500_000_000) {
		t.Errorf("bids = %+v, want only the 50%% bid left", bids)
	}
}

func TestBondExpiryAcrossBlocks(t *testing.T) {
	n := newNode(t)
	if err := n.producer.Dispatch(func(e *coin.Engine) error {
		return e.Init(addr(1))
	}); err != nil {
		t.Fatalf("genesis failed: %v", err)
	}

	// Contract at block 2 to mint a bond expiring at block 102.
	n.pushJSON(t, chain.BidTx{Type: "bid", Account: addr(1).Hex(), PriceParts: 500_000_000, Quantity: 2000})
	n.producer.ProduceBlock()
	n.oracle.SetPrice(1010) // contract by 1%: 1000 coins
	n.produceUntil(t, 2)

	bonds := n.engine.Bonds()
	if len(bonds) != 1 {
		t.Fatalf("bonds = %d, want 1", len(bonds))
	}
	if bonds[0].Expiration != 102 {
		t.Fatalf("expiration = %d, want 102", bonds[0].Expiration)
	}

	// Hold the peg until past the expiration, then expand: the bond is
	// discarded and the expansion goes to the founder's shares.
	n.oracle.SetPrice(1000)
	n.produceUntil(t, 102)
	balBefore := n.engine.Balance(addr(1))
	supplyBefore := n.engine.CoinSupply()

	n.oracle.SetPrice(980)
	n.produceUntil(t, 104)

	if got := len(n.engine.Bonds()); got != 0 {
		t.Errorf("bonds = %d, want the expired bond discarded", got)
	}
	expanded := n.engine.CoinSupply() - supplyBefore
	if expanded == 0 {
		t.Fatal("expected an expansion")
	}
	if got := n.engine.Balance(addr(1)); got != balBefore+expanded {
		t.Errorf("balance(1) = %d, want %d via shares, not the expired bond", got, balBefore+expanded)
	}

	expired := false
	for _, ev := range n.events {
		if ev.Kind == coin.EventBondExpired {
			expired = true
		}
	}
	if !expired {
		t.Error("no BondExpired event observed")
	}
}

func TestRestartRecoversState(t *testing.T) {
	n := newNode(t)
	if err := n.producer.Dispatch(func(e *coin.Engine) error {
		return e.Init(addr(1))
	}); err != nil {
		t.Fatalf("genesis failed: %v", err)
	}
	n.pushJSON(t, chain.TransferTx{Type: "transfer", From: addr(1).Hex(), To: addr(2).Hex(), Amount: 777})
	n.pushJSON(t, chain.BidTx{Type: "bid", Account: addr(1).Hex(), PriceParts: 400_000_000, Quantity: 1500})
	n.producer.ProduceBlock()

	// A fresh engine over the same store resumes with identical state.
	restored, err := coin.NewEngine(e2eMonetary(), n.store, n.oracle, nil, nil)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if got := restored.Balance(addr(2)); got != 777 {
		t.Errorf("balance(2) = %d, want 777", got)
	}
	if got := restored.Balance(addr(1)); got != n.engine.Balance(addr(1)) {
		t.Errorf("balance(1) = %d, want %d", got, n.engine.Balance(addr(1)))
	}
	if got := len(restored.Bids()); got != 1 {
		t.Errorf("bids = %d, want 1", got)
	}
	if restored.StateHash(9) != n.engine.StateHash(9) {
		t.Error("state hash diverged after restart")
	}
}
