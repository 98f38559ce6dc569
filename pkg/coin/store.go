package coin

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// Snapshot is the full logical state of the engine, in the shape it is
// persisted: the initialization flag, the share register, the balance
// map, the coin supply, the bond map with its ring bounds, and the bid
// queue.
type Snapshot struct {
	Init             bool
	MinimumBondPrice fixed.Perbill
	Shares           []Shareholding
	Balances         map[common.Address]Coins
	CoinSupply       Coins
	Bonds            map[BondIndex]Bond
	BondsStart       BondIndex
	BondsEnd         BondIndex
	Bids             []Bid
}

// StateBatch stages the storage writes of a single dispatch. Commit
// applies them atomically so a failure mid-operation cannot leave a
// half-written state on disk.
type StateBatch interface {
	SetInit(bool)
	SetMinimumBondPrice(fixed.Perbill)
	SetShares([]Shareholding)
	SetBalance(common.Address, Coins)
	SetSupply(Coins)
	SetBond(BondIndex, Bond)
	DeleteBond(BondIndex)
	SetBondsRange(start, end BondIndex)
	SetBids([]Bid)
	Commit() error
}

// StateStore is the persistence boundary of the engine. The node backs
// it with pebble; tests use an in-memory implementation.
type StateStore interface {
	NewBatch() StateBatch
	// Load returns the persisted snapshot, or nil when the store is
	// empty.
	Load() (*Snapshot, error)
}

// nopStateStore backs engines constructed without persistence.
type nopStateStore struct{}

func (nopStateStore) NewBatch() StateBatch     { return nopStateBatch{} }
func (nopStateStore) Load() (*Snapshot, error) { return nil, nil }

type nopStateBatch struct{}

func (nopStateBatch) SetInit(bool)                       {}
func (nopStateBatch) SetMinimumBondPrice(fixed.Perbill)  {}
func (nopStateBatch) SetShares([]Shareholding)           {}
func (nopStateBatch) SetBalance(common.Address, Coins)   {}
func (nopStateBatch) SetSupply(Coins)                    {}
func (nopStateBatch) SetBond(BondIndex, Bond)            {}
func (nopStateBatch) DeleteBond(BondIndex)               {}
func (nopStateBatch) SetBondsRange(BondIndex, BondIndex) {}
func (nopStateBatch) SetBids([]Bid)                      {}
func (nopStateBatch) Commit() error                      { return nil }
