package coin

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// StateHash computes a deterministic keccak256 commitment over the
// engine state at the given block height. Balances are folded in sorted
// address order; bids and bonds in queue order.
func (e *Engine) StateHash(height BlockNumber) [32]byte {
	h := sha3.NewLegacyKeccak256()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	h.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], e.supply)
	h.Write(buf[:])

	balances := e.ledger.Balances()
	addrs := make([]common.Address, 0, len(balances))
	for a := range balances {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	for _, a := range addrs {
		h.Write(a[:])
		binary.BigEndian.PutUint64(buf[:], balances[a])
		h.Write(buf[:])
	}

	for _, b := range e.bids.Bids() {
		h.Write(b.Account[:])
		binary.BigEndian.PutUint64(buf[:], b.Price.Parts())
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], b.Quantity)
		h.Write(buf[:])
	}

	for _, b := range e.Bonds() {
		h.Write(b.Account[:])
		binary.BigEndian.PutUint64(buf[:], b.Payout)
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], b.Expiration)
		h.Write(buf[:])
	}

	var out [32]byte
	h.Sum(out[:0])
	return out
}
