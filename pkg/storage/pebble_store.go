package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/pkg/coin"
	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// PebbleStore persists the engine state in a pebble database, one key per
// logical storage entry. Each dispatch commits its writes in a single
// batch so readers observe either the pre- or post-dispatch state.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// NewBatch starts a staged write set for one dispatch.
func (s *PebbleStore) NewBatch() coin.StateBatch {
	return &pebbleBatch{batch: s.db.NewBatch()}
}

// Load reads the full persisted snapshot, or nil when the database holds
// no state yet.
func (s *PebbleStore) Load() (*coin.Snapshot, error) {
	snap := &coin.Snapshot{
		Balances: make(map[common.Address]coin.Coins),
		Bonds:    make(map[coin.BondIndex]coin.Bond),
	}

	found, err := s.get([]byte(keyInit), func(v []byte) error {
		snap.Init = len(v) == 1 && v[0] == 1
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	if _, err := s.get([]byte(keyMinPrice), func(v []byte) error {
		snap.MinimumBondPrice = fixed.FromParts(decodeUint64(v))
		return nil
	}); err != nil {
		return nil, err
	}
	if _, err := s.get([]byte(keyShares), func(v []byte) error {
		return decodeGob(v, &snap.Shares)
	}); err != nil {
		return nil, err
	}
	if _, err := s.get([]byte(keySupply), func(v []byte) error {
		snap.CoinSupply = decodeUint64(v)
		return nil
	}); err != nil {
		return nil, err
	}
	if _, err := s.get([]byte(keyBids), func(v []byte) error {
		return decodeGob(v, &snap.Bids)
	}); err != nil {
		return nil, err
	}
	if _, err := s.get([]byte(keyBondRange), func(v []byte) error {
		snap.BondsStart = binary.BigEndian.Uint16(v[0:2])
		snap.BondsEnd = binary.BigEndian.Uint16(v[2:4])
		return nil
	}); err != nil {
		return nil, err
	}

	if err := s.scan([]byte(prefixBond), func(k, v []byte) error {
		idx := binary.BigEndian.Uint16(k[len(prefixBond):])
		var b coin.Bond
		if err := decodeGob(v, &b); err != nil {
			return err
		}
		snap.Bonds[idx] = b
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.scan([]byte(prefixBalance), func(k, v []byte) error {
		var addr common.Address
		copy(addr[:], k[len(prefixBalance):])
		snap.Balances[addr] = decodeUint64(v)
		return nil
	}); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *PebbleStore) get(key []byte, fn func([]byte) error) (bool, error) {
	v, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	defer closer.Close()
	if err := fn(v); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

func (s *PebbleStore) scan(prefix []byte, fn func(k, v []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		if err := fn(iter.Key(), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

var _ coin.StateStore = (*PebbleStore)(nil)

// pebbleBatch stages writes until Commit.
type pebbleBatch struct {
	batch *pebble.Batch
	err   error
}

func (b *pebbleBatch) set(key, val []byte) {
	if b.err == nil {
		b.err = b.batch.Set(key, val, nil)
	}
}

func (b *pebbleBatch) SetInit(v bool) {
	val := []byte{0}
	if v {
		val[0] = 1
	}
	b.set([]byte(keyInit), val)
}

func (b *pebbleBatch) SetMinimumBondPrice(p fixed.Perbill) {
	b.set([]byte(keyMinPrice), encodeUint64(p.Parts()))
}

func (b *pebbleBatch) SetShares(shares []coin.Shareholding) {
	v, err := encodeGob(shares)
	if err != nil {
		b.err = err
		return
	}
	b.set([]byte(keyShares), v)
}

func (b *pebbleBatch) SetBalance(addr common.Address, amount coin.Coins) {
	b.set(balanceKey(addr), encodeUint64(amount))
}

func (b *pebbleBatch) SetSupply(amount coin.Coins) {
	b.set([]byte(keySupply), encodeUint64(amount))
}

func (b *pebbleBatch) SetBond(i coin.BondIndex, bond coin.Bond) {
	v, err := encodeGob(bond)
	if err != nil {
		b.err = err
		return
	}
	b.set(bondKey(i), v)
}

func (b *pebbleBatch) DeleteBond(i coin.BondIndex) {
	if b.err == nil {
		b.err = b.batch.Delete(bondKey(i), nil)
	}
}

func (b *pebbleBatch) SetBondsRange(start, end coin.BondIndex) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], start)
	binary.BigEndian.PutUint16(v[2:4], end)
	b.set([]byte(keyBondRange), v)
}

func (b *pebbleBatch) SetBids(bids []coin.Bid) {
	v, err := encodeGob(bids)
	if err != nil {
		b.err = err
		return
	}
	b.set([]byte(keyBids), v)
}

func (b *pebbleBatch) Commit() error {
	if b.err != nil {
		b.batch.Close()
		return b.err
	}
	return b.batch.Commit(pebble.Sync)
}
