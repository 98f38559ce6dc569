package storage

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/pkg/coin"
	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// MemStore is an in-memory StateStore used by tests and throwaway
// devnets. Batches buffer their writes and apply them on Commit, so the
// atomicity contract matches the pebble store.
type MemStore struct {
	mu   sync.Mutex
	snap coin.Snapshot
	init bool // whether anything was ever committed
}

func NewMemStore() *MemStore {
	return &MemStore{
		snap: coin.Snapshot{
			Balances: make(map[common.Address]coin.Coins),
			Bonds:    make(map[coin.BondIndex]coin.Bond),
		},
	}
}

func (s *MemStore) NewBatch() coin.StateBatch {
	return &memBatch{store: s}
}

func (s *MemStore) Load() (*coin.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		return nil, nil
	}
	out := coin.Snapshot{
		Init:             s.snap.Init,
		MinimumBondPrice: s.snap.MinimumBondPrice,
		Shares:           append([]coin.Shareholding(nil), s.snap.Shares...),
		Balances:         make(map[common.Address]coin.Coins, len(s.snap.Balances)),
		CoinSupply:       s.snap.CoinSupply,
		Bonds:            make(map[coin.BondIndex]coin.Bond, len(s.snap.Bonds)),
		BondsStart:       s.snap.BondsStart,
		BondsEnd:         s.snap.BondsEnd,
		Bids:             append([]coin.Bid(nil), s.snap.Bids...),
	}
	for a, b := range s.snap.Balances {
		out.Balances[a] = b
	}
	for i, b := range s.snap.Bonds {
		out.Bonds[i] = b
	}
	return &out, nil
}

var _ coin.StateStore = (*MemStore)(nil)

type memBatch struct {
	store *MemStore
	ops   []func(*coin.Snapshot)
}

func (b *memBatch) stage(op func(*coin.Snapshot)) { b.ops = append(b.ops, op) }

func (b *memBatch) SetInit(v bool) {
	b.stage(func(s *coin.Snapshot) { s.Init = v })
}

func (b *memBatch) SetMinimumBondPrice(p fixed.Perbill) {
	b.stage(func(s *coin.Snapshot) { s.MinimumBondPrice = p })
}

func (b *memBatch) SetShares(shares []coin.Shareholding) {
	cp := append([]coin.Shareholding(nil), shares...)
	b.stage(func(s *coin.Snapshot) { s.Shares = cp })
}

func (b *memBatch) SetBalance(addr common.Address, amount coin.Coins) {
	b.stage(func(s *coin.Snapshot) { s.Balances[addr] = amount })
}

func (b *memBatch) SetSupply(amount coin.Coins) {
	b.stage(func(s *coin.Snapshot) { s.CoinSupply = amount })
}

func (b *memBatch) SetBond(i coin.BondIndex, bond coin.Bond) {
	b.stage(func(s *coin.Snapshot) { s.Bonds[i] = bond })
}

func (b *memBatch) DeleteBond(i coin.BondIndex) {
	b.stage(func(s *coin.Snapshot) { delete(s.Bonds, i) })
}

func (b *memBatch) SetBondsRange(start, end coin.BondIndex) {
	b.stage(func(s *coin.Snapshot) { s.BondsStart, s.BondsEnd = start, end })
}

func (b *memBatch) SetBids(bids []coin.Bid) {
	cp := append([]coin.Bid(nil), bids...)
	b.stage(func(s *coin.Snapshot) { s.Bids = cp })
}

func (b *memBatch) Commit() error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()
	for _, op := range b.ops {
		op(&b.store.snap)
	}
	if len(b.ops) > 0 {
		b.store.init = true
	}
	return nil
}
