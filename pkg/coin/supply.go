package coin

import (
	"math"

	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// expandOrContractOnPrice expands (price below the peg) or contracts
// (price above the peg) the coin supply.
func (e *Engine) expandOrContractOnPrice(price Coins) error {
	switch {
	case price == 0:
		e.log.Errorw("coin price is zero")
		return ErrZeroPrice
	case price > e.cfg.BaseUnit:
		// Safe from underflow because price > BaseUnit.
		fraction := fixed.FromRational(int64(price), e.cfg.BaseUnit).Sub(fixed.FromNatural(1))
		supply := e.supply
		contractBy := fraction.SaturatedMul(supply)
		if err := e.contractSupply(supply, contractBy); err != nil {
			return err
		}
	case price < e.cfg.BaseUnit:
		// Safe from underflow because price < BaseUnit.
		fraction := fixed.FromRational(int64(e.cfg.BaseUnit), price).Sub(fixed.FromNatural(1))
		supply := e.supply
		expandBy := fraction.SaturatedMul(supply)
		if err := e.expandSupply(supply, expandBy); err != nil {
			return err
		}
	default:
		e.log.Debugw("coin price is at the peg, nothing to do")
	}
	return e.commit()
}

// expandSupply expands the supply by amount, paying out bonds in FIFO
// order and handing the residual to shareholders.
func (e *Engine) expandSupply(supply, amount Coins) error {
	if supply > math.MaxUint64-amount {
		return ErrCoinSupplyOverflow
	}
	// ↑ verify ↑
	remaining := amount
	bonds := e.bondsTransient()
	// ↓ update ↓
	for remaining > 0 {
		bond, ok := bonds.Pop()
		if !ok {
			break
		}
		// Bond has expired: discard.
		if e.block >= bond.Expiration {
			e.emit(Event{Kind: EventBondExpired, Account: bond.Account, Amount: bond.Payout})
			continue
		}
		if bond.Payout <= remaining {
			// Bond does not cover the remaining amount: resolve and
			// continue.
			remaining -= bond.Payout
			e.ledger.Add(bond.Account, bond.Payout)
			e.emit(Event{Kind: EventBondFulfilled, Account: bond.Account, Amount: bond.Payout})
		} else {
			// Bond covers the remaining amount: pay what is left of the
			// expansion, requeue the rest of the bond and finish. The
			// event carries the reduced payout still owed, not the
			// amount just paid.
			payout := bond.Payout - remaining
			e.ledger.Add(bond.Account, remaining)
			bonds.PushFront(Bond{Account: bond.Account, Payout: payout, Expiration: bond.Expiration})
			e.emit(Event{Kind: EventBondPartiallyFulfilled, Account: bond.Account, Amount: payout})
			remaining = 0
		}
	}
	bonds.Commit()

	// Safe because of the overflow check in the first line, and
	// remaining never exceeds amount.
	newSupply := supply + amount - remaining
	if remaining > 0 {
		// handOutCoins writes the final supply.
		if err := e.handOutCoins(e.shares, remaining, newSupply); err != nil {
			e.log.Errorw("handout after expansion failed", "err", err)
			return err
		}
	} else {
		e.supply = newSupply
		e.dirty.supply = true
	}
	e.emit(Event{Kind: EventExpandedSupply, Amount: amount})
	return nil
}

// contractSupply contracts the supply by amount, converting the highest
// bids into bonds and burning the coins they paid.
//
// May contract by less than amount when there are not enough bids.
func (e *Engine) contractSupply(supply, amount Coins) error {
	if amount > supply || supply-amount < e.cfg.MinimumSupply {
		return ErrCoinSupplyUnderflow
	}
	// ↑ verify ↑
	remaining := amount
	var newBonds []Bond
	// ↓ update ↓
	for remaining > 0 {
		bid, ok := e.bids.PopHighest()
		if !ok {
			break
		}
		e.dirty.bids = true
		if bid.Payment() >= remaining {
			removed, err := bid.RemoveCoins(remaining)
			if err != nil {
				// Inverse-price math failed for this bid: refund it in
				// full and keep consuming others. The burned counter
				// shrinks accordingly.
				e.log.Warnw("unable to remove coins from bid, refunding",
					"account", bid.Account, "price", bid.Price.String(), "err", err)
				e.refundBid(bid)
				continue
			}
			newBonds = append(newBonds, e.newBond(bid.Account, removed))
			if bid.Quantity > 0 {
				// Re-add the bid with its reduced quantity.
				e.addBid(bid)
			}
			remaining = 0
		} else {
			payment := bid.Payment()
			newBonds = append(newBonds, e.newBond(bid.Account, bid.Quantity))
			remaining -= payment
		}
	}

	burned := amount - remaining
	e.supply = supply - burned
	e.dirty.supply = true

	for _, bond := range newBonds {
		e.emit(Event{Kind: EventNewBond, Account: bond.Account, Amount: bond.Payout, Expiration: bond.Expiration})
	}
	e.pushBonds(newBonds)
	e.emit(Event{Kind: EventContractedSupply, Amount: burned})
	return nil
}

// handOutCoins distributes amount coins to the shareholders proportional
// to their share counts, then writes the increased supply. Shareholders
// at the front of the register receive one extra coin each when the
// distribution cannot be exact, and the first shareholder receives any
// remainder the per-share flooring leaves, so exactly amount is paid.
func (e *Engine) handOutCoins(shares []Shareholding, amount, supplyBeforeHandout Coins) error {
	if supplyBeforeHandout > math.MaxUint64-amount {
		return ErrCoinSupplyOverflow
	}
	// ↑ verify ↑
	var shareSupply uint64
	for _, s := range shares {
		shareSupply += s.Shares
	}
	n := uint64(len(shares))
	// No point in handing out less than one coin per share.
	coinsPerShare := amount / shareSupply
	if coinsPerShare < 1 {
		coinsPerShare = 1
	}
	payExtra := coinsPerShare <= math.MaxUint64/n && coinsPerShare*n < amount
	var amountPaid Coins
	// ↓ update ↓
	for i, sh := range shares {
		if amountPaid >= amount {
			break
		}
		maxPayout := amount - amountPaid
		var extra Coins
		if payExtra && uint64(i) < amount%n {
			extra = 1
		}
		payout := saturatingShare(sh.Shares, coinsPerShare, extra)
		if payout > maxPayout {
			payout = maxPayout
		}
		e.ledger.Add(sh.Account, payout)
		amountPaid += payout
	}
	// Flooring coinsPerShare can leave part of amount unpaid when share
	// counts are uneven; the first shareholder receives that remainder so
	// the payouts sum to amount.
	if amountPaid < amount {
		e.ledger.Add(shares[0].Account, amount-amountPaid)
	}

	e.supply = supplyBeforeHandout + amount
	e.dirty.supply = true
	return nil
}

// saturatingShare computes shares*coinsPerShare+extra saturating at the
// uint64 bound; the caller clamps against the remaining amount anyway.
func saturatingShare(shares, coinsPerShare, extra Coins) Coins {
	if shares != 0 && coinsPerShare > math.MaxUint64/shares {
		return math.MaxUint64
	}
	base := shares * coinsPerShare
	if base > math.MaxUint64-extra {
		return math.MaxUint64
	}
	return base + extra
}
