package coin

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/basislabs/basisd/params"
	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// PriceSource reports the amount of coins currently exchanged for one
// unit of the tracked value.
type PriceSource interface {
	FetchPrice() (Coins, error)
}

// Engine is the owning aggregate of the monetary-policy state: the share
// register, the balance ledger, the coin supply, the bond queue, and the
// bid book. All operations are single-threaded; the hosting block loop
// applies them sequentially.
//
// Every dispatch follows verify-then-update: all fallible checks run
// before the first mutation, so a failed operation leaves state
// untouched. Mutations are mirrored to the state store in one batch per
// dispatch.
type Engine struct {
	cfg     params.Monetary
	log     *zap.SugaredLogger
	emitter Emitter
	store   StateStore
	price   PriceSource

	initialized  bool
	minBondPrice fixed.Perbill
	shares       []Shareholding
	ledger       *Ledger
	supply       Coins
	bonds        map[BondIndex]Bond
	bondsStart   BondIndex
	bondsEnd     BondIndex
	bids         *BidBook
	block        BlockNumber

	dirty dirtySet
}

// dirtySet tracks which persisted entries a dispatch touched, so commit
// writes only those.
type dirtySet struct {
	init         bool
	minBondPrice bool
	shares       bool
	supply       bool
	bids         bool
	bondsRange   bool
	bondPuts     map[BondIndex]struct{}
	bondDels     map[BondIndex]struct{}
}

func (d *dirtySet) reset() {
	*d = dirtySet{
		bondPuts: make(map[BondIndex]struct{}),
		bondDels: make(map[BondIndex]struct{}),
	}
}

// NewEngine builds an engine from config, restoring any state the store
// holds. A nil store, emitter, or logger falls back to a no-op; a nil
// price source is only acceptable when OnBlock is never used.
func NewEngine(cfg params.Monetary, store StateStore, price PriceSource, emitter Emitter, log *zap.SugaredLogger) (*Engine, error) {
	if err := (params.Config{Monetary: cfg, Node: params.Default().Node}).Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = nopStateStore{}
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	e := &Engine{
		cfg:          cfg,
		log:          log,
		emitter:      emitter,
		store:        store,
		price:        price,
		minBondPrice: MinimumBondPrice,
		ledger:       NewLedger(),
		bonds:        make(map[BondIndex]Bond),
		bids:         NewBidBook(cfg.MaximumBids),
	}
	e.dirty.reset()

	snap, err := store.Load()
	if err != nil {
		return nil, err
	}
	if snap != nil {
		e.restore(snap)
	}
	return e, nil
}

func (e *Engine) restore(snap *Snapshot) {
	e.initialized = snap.Init
	if snap.MinimumBondPrice != 0 {
		e.minBondPrice = snap.MinimumBondPrice
	}
	e.shares = append([]Shareholding(nil), snap.Shares...)
	for a, b := range snap.Balances {
		e.ledger.Set(a, b)
	}
	e.supply = snap.CoinSupply
	for i, b := range snap.Bonds {
		e.bonds[i] = b
	}
	e.bondsStart, e.bondsEnd = snap.BondsStart, snap.BondsEnd
	e.bids.setBids(snap.Bids)

	// Restoring is not a dispatch; nothing needs re-persisting.
	e.ledger.takeDirty()
	e.dirty.reset()
}

// ------------------------------------------------------------
// queries

// Initialized reports whether genesis ran.
func (e *Engine) Initialized() bool { return e.initialized }

// CoinSupply returns the total amount of coins in circulation.
func (e *Engine) CoinSupply() Coins { return e.supply }

// Balance returns the ledger balance of account.
func (e *Engine) Balance(account common.Address) Coins { return e.ledger.Get(account) }

// Balances returns a copy of the full balance map.
func (e *Engine) Balances() map[common.Address]Coins { return e.ledger.Balances() }

// Shares returns the share register fixed at initialization.
func (e *Engine) Shares() []Shareholding {
	return append([]Shareholding(nil), e.shares...)
}

// Bids returns the pending bids from lowest to highest price.
func (e *Engine) Bids() []Bid { return e.bids.Bids() }

// Bonds returns the outstanding bonds in FIFO order.
func (e *Engine) Bonds() []Bond {
	out := make([]Bond, 0, int(e.bondsEnd-e.bondsStart))
	for i := e.bondsStart; i != e.bondsEnd; i++ {
		out = append(out, e.bonds[i])
	}
	return out
}

// BondsRange returns the occupied (start, end) cursor pair of the bond
// ring.
func (e *Engine) BondsRange() (BondIndex, BondIndex) { return e.bondsStart, e.bondsEnd }

// MinBondPrice returns the bid price floor.
func (e *Engine) MinBondPrice() fixed.Perbill { return e.minBondPrice }

// Block returns the last block number the engine saw.
func (e *Engine) Block() BlockNumber { return e.block }

// ------------------------------------------------------------
// dispatch surface

// Init initializes the stablecoin with a single founder holding the
// whole share supply and the initial coins. One-shot.
func (e *Engine) Init(founder common.Address) error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	// ↑ verify ↑
	// ↓ update ↓
	e.shares = []Shareholding{{Account: founder, Shares: ShareSupply}}
	e.dirty.shares = true
	e.ledger.Add(founder, e.cfg.InitialSupply)
	e.supply = e.cfg.InitialSupply
	e.dirty.supply = true
	e.initialized = true
	e.dirty.init = true
	e.dirty.minBondPrice = true

	e.emit(Event{Kind: EventInitialized, Account: founder})
	return e.commit()
}

// InitWithShareholders initializes the stablecoin giving one share to
// each listed account and distributing the initial supply among them.
// One-shot.
func (e *Engine) InitWithShareholders(founder common.Address, shareholders []common.Address) error {
	if e.initialized {
		return ErrAlreadyInitialized
	}
	if len(shareholders) == 0 {
		return ErrNoShareholders
	}
	shares := make([]Shareholding, len(shareholders))
	for i, a := range shareholders {
		shares[i] = Shareholding{Account: a, Shares: 1}
	}
	// ↑ verify ↑
	if err := e.handOutCoins(shares, e.cfg.InitialSupply, e.supply); err != nil {
		return err
	}
	// ↓ update ↓
	e.shares = shares
	e.dirty.shares = true
	e.initialized = true
	e.dirty.init = true
	e.dirty.minBondPrice = true

	e.emit(Event{Kind: EventInitialized, Account: founder})
	return e.commit()
}

// Transfer moves amount coins from one account to another with checked
// arithmetic on both sides.
func (e *Engine) Transfer(from, to common.Address, amount Coins) error {
	fromBal := e.ledger.Get(from)
	if fromBal < amount {
		return ErrInsufficientBalance
	}
	if from != to {
		if toBal := e.ledger.Get(to); toBal > math.MaxUint64-amount {
			return ErrBalanceOverflow
		}
	}
	// ↑ verify ↑
	// ↓ update ↓
	if from != to {
		e.ledger.Set(from, fromBal-amount)
		e.ledger.Add(to, amount)
	}

	e.emit(Event{Kind: EventTransfer, Account: from, To: to, Amount: amount})
	return e.commit()
}

// BidForBond places a bid for quantity coins at a price per bond.
//
// Price is a fraction of the desired payout quantity and quantity must be
// at least BaseUnit. Example: a bid at 80% for 5*BaseUnit offers to pay
// 4*BaseUnit coins now for a bond paying out 5*BaseUnit later.
func (e *Engine) BidForBond(who common.Address, price fixed.Perbill, quantity Coins) error {
	if price.Parts() > fixed.Accuracy {
		return ErrPriceTooHigh
	}
	if price <= e.minBondPrice {
		return ErrPriceTooLow
	}
	if quantity < e.cfg.BaseUnit {
		return ErrQuantityTooLow
	}

	bid := NewBid(who, price, quantity)
	// ↑ verify ↑
	if err := e.ledger.Remove(who, bid.Payment()); err != nil {
		return err
	}
	// ↓ update ↓
	e.addBid(bid)

	e.emit(Event{Kind: EventNewBid, Account: who, Price: price, Amount: quantity})
	return e.commit()
}

// CancelBidsAtOrBelow cancels all of who's bids priced at or below the
// given price and refunds the escrowed coins.
func (e *Engine) CancelBidsAtOrBelow(who common.Address, price fixed.Perbill) error {
	e.cancelBids(func(b Bid) bool {
		return b.Account == who && b.Price <= price
	})
	e.emit(Event{Kind: EventCancelledBidsBelow, Account: who, Price: price})
	return e.commit()
}

// CancelAllBids cancels every bid belonging to who and refunds the
// escrowed coins.
func (e *Engine) CancelAllBids(who common.Address) error {
	e.cancelBids(func(b Bid) bool {
		return b.Account == who
	})
	e.emit(Event{Kind: EventCancelledBids, Account: who})
	return e.commit()
}

// OnBlock adjusts the coin supply for block n according to the oracle
// price. Oracle or supply errors are logged, never propagated: a single
// bad price must not halt block production.
func (e *Engine) OnBlock(n BlockNumber) {
	price, err := e.price.FetchPrice()
	if err != nil {
		e.log.Errorw("could not fetch price", "block", n, "err", err)
		return
	}
	if err := e.OnBlockWithPrice(n, price); err != nil {
		e.log.Errorw("could not adjust supply", "block", n, "price", price, "err", err)
	}
}

// OnBlockWithPrice runs the supply adjustment for block n at the given
// price. Only blocks divisible by AdjustmentFrequency adjust; the rest
// are no-ops.
func (e *Engine) OnBlockWithPrice(n BlockNumber, price Coins) error {
	e.block = n
	if n%e.cfg.AdjustmentFrequency != 0 {
		return nil
	}
	return e.expandOrContractOnPrice(price)
}

// ------------------------------------------------------------
// bids

// addBid inserts into the bid book, refunding the lowest bid if the book
// overflowed.
func (e *Engine) addBid(bid Bid) {
	if evicted, ok := e.bids.Add(bid); ok {
		e.refundBid(evicted)
	}
	e.dirty.bids = true
}

// refundBid credits the coins paid for the bid back to its account.
func (e *Engine) refundBid(bid Bid) {
	e.ledger.Add(bid.Account, bid.Payment())
	e.emit(Event{Kind: EventRefundedBid, Account: bid.Account, Amount: bid.Payment()})
}

// cancelBids removes all bids the predicate matches and refunds them.
func (e *Engine) cancelBids(match func(Bid) bool) {
	for _, b := range e.bids.CancelMatching(match) {
		e.refundBid(b)
	}
	e.dirty.bids = true
}

// ------------------------------------------------------------
// bonds

// newBond creates a bond for account expiring ExpirationPeriod blocks
// from now.
func (e *Engine) newBond(account common.Address, payout Coins) Bond {
	return Bond{
		Account:    account,
		Payout:     payout,
		Expiration: e.block + e.cfg.ExpirationPeriod,
	}
}

// bondState adapts the engine's bond fields to the BondStore interface
// the ring buffer operates on.
type bondState struct{ e *Engine }

func (s bondState) GetBond(i BondIndex) Bond { return s.e.bonds[i] }

func (s bondState) PutBond(i BondIndex, b Bond) {
	s.e.bonds[i] = b
	s.e.dirty.bondPuts[i] = struct{}{}
	delete(s.e.dirty.bondDels, i)
}

func (s bondState) DeleteBond(i BondIndex) {
	delete(s.e.bonds, i)
	s.e.dirty.bondDels[i] = struct{}{}
	delete(s.e.dirty.bondPuts, i)
}

func (s bondState) BondsRange() (BondIndex, BondIndex) {
	return s.e.bondsStart, s.e.bondsEnd
}

func (s bondState) SetBondsRange(start, end BondIndex) {
	s.e.bondsStart, s.e.bondsEnd = start, end
	s.e.dirty.bondsRange = true
}

// bondsTransient opens a ring-buffer view over the persisted bond state.
func (e *Engine) bondsTransient() *RingBuffer {
	return NewRingBuffer(bondState{e})
}

// pushBonds appends several bonds to the queue.
func (e *Engine) pushBonds(bonds []Bond) {
	ring := e.bondsTransient()
	for _, b := range bonds {
		ring.Push(b)
	}
	ring.Commit()
}

// ------------------------------------------------------------
// persistence

// commit mirrors the dirty portion of the in-memory state to the store
// in one atomic batch.
func (e *Engine) commit() error {
	batch := e.store.NewBatch()
	if e.dirty.init {
		batch.SetInit(e.initialized)
	}
	if e.dirty.minBondPrice {
		batch.SetMinimumBondPrice(e.minBondPrice)
	}
	if e.dirty.shares {
		batch.SetShares(e.shares)
	}
	if e.dirty.supply {
		batch.SetSupply(e.supply)
	}
	if e.dirty.bids {
		batch.SetBids(e.bids.Bids())
	}
	for i := range e.dirty.bondPuts {
		batch.SetBond(i, e.bonds[i])
	}
	for i := range e.dirty.bondDels {
		batch.DeleteBond(i)
	}
	if e.dirty.bondsRange {
		batch.SetBondsRange(e.bondsStart, e.bondsEnd)
	}
	for _, a := range e.ledger.takeDirty() {
		batch.SetBalance(a, e.ledger.Get(a))
	}
	e.dirty.reset()

	if err := batch.Commit(); err != nil {
		e.log.Errorw("state commit failed", "err", err)
		return err
	}
	return nil
}

// Snapshot copies the full logical state, e.g. for hashing or debugging.
func (e *Engine) Snapshot() Snapshot {
	bonds := make(map[BondIndex]Bond, len(e.bonds))
	for i, b := range e.bonds {
		bonds[i] = b
	}
	return Snapshot{
		Init:             e.initialized,
		MinimumBondPrice: e.minBondPrice,
		Shares:           e.Shares(),
		Balances:         e.ledger.Balances(),
		CoinSupply:       e.supply,
		Bonds:            bonds,
		BondsStart:       e.bondsStart,
		BondsEnd:         e.bondsEnd,
		Bids:             e.bids.Bids(),
	}
}

func (e *Engine) emit(ev Event) { e.emitter.Emit(ev) }
