package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema for the engine state in pebble:
//
//	init           → initialization flag (1 byte)
//	mbp            → minimum bond price (8 bytes, parts per billion)
//	shares         → gob share register
//	supply         → coin supply (8 bytes)
//	bids           → gob bid queue
//	bnr            → bond ring bounds (2+2 bytes)
//	bnd:<index>    → gob bond
//	bal:<address>  → balance (8 bytes)
const (
	keyInit      = "init"
	keyMinPrice  = "mbp"
	keyShares    = "shares"
	keySupply    = "supply"
	keyBids      = "bids"
	keyBondRange = "bnr"

	prefixBond    = "bnd:"
	prefixBalance = "bal:"
)

func bondKey(i uint16) []byte {
	k := make([]byte, len(prefixBond)+2)
	copy(k, prefixBond)
	binary.BigEndian.PutUint16(k[len(prefixBond):], i)
	return k
}

func balanceKey(addr common.Address) []byte {
	k := make([]byte, len(prefixBalance)+common.AddressLength)
	copy(k, prefixBalance)
	copy(k[len(prefixBalance):], addr[:])
	return k
}

// keyUpperBound returns the smallest key greater than every key with the
// given prefix, for iterator bounds.
func keyUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff
}
