// Package coin implements a non-collateralized stablecoin monetary policy
// modeled after the Basis whitepaper. The engine maintains a target peg by
// expanding or contracting the coin supply in response to an external
// price oracle: expansion pays out bonds in FIFO order and distributes the
// residual to shareholders, contraction auctions new bonds to the highest
// bidders and burns the coins they paid.
package coin

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// Coins is the stablecoin's unit of account.
type Coins = uint64

// BlockNumber is the host chain's monotonic block counter.
type BlockNumber = uint64

// BondIndex addresses a slot in the bond ring. Sixteen bits wrap, giving
// the queue a capacity of 2^16-1 bonds.
type BondIndex = uint16

// ShareSupply is the number of share tokens handed to a single founder,
// fixed at genesis.
const ShareSupply uint64 = 100

// MinimumBondPrice is the bid price floor. The Basis whitepaper
// recommends 10% based on simulations.
var MinimumBondPrice = fixed.FromPercent(10)

// Bond represents (potential) future payout of coins.
//
// Expires at block Expiration, so it will be discarded if paid out at or
// after that block.
type Bond struct {
	Account    common.Address
	Payout     Coins
	Expiration BlockNumber
}

// Bid is an offer to buy a bond of the stablecoin at a certain price.
//
// Price is a fraction of one coin; Quantity is the amount of coins gained
// on payout of the corresponding bond.
type Bid struct {
	Account  common.Address
	Price    fixed.Perbill
	Quantity Coins
}

// NewBid creates a bid.
func NewBid(account common.Address, price fixed.Perbill, quantity Coins) Bid {
	return Bid{Account: account, Price: price, Quantity: quantity}
}

// Payment returns the amount of coins to be paid for this bid.
func (b Bid) Payment() Coins {
	return b.Price.Mul(b.Quantity)
}

// RemoveCoins removes coins worth of payment from the bid, mirroring the
// change in quantity according to the attached price. The price converts
// payout coins to payment coins, so going from payment coins back to
// payout coins uses the inverse price. Returns the removed payout
// quantity.
//
// Rounding is toward zero: the removed quantity may undercount by less
// than one unit.
func (b *Bid) RemoveCoins(coins Coins) (Coins, error) {
	removed, err := b.Price.DivToInverse(coins)
	if err != nil {
		return 0, ErrGenericOverflow
	}
	if removed > b.Quantity {
		return 0, ErrGenericUnderflow
	}
	b.Quantity -= removed
	return removed, nil
}

// Shareholding pairs an account with its share count. The share register
// is fixed at initialization.
type Shareholding struct {
	Account common.Address
	Shares  uint64
}
