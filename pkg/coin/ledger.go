package coin

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger maps accounts to coin balances. A missing key reads as zero.
// Mutations mark the account dirty so the engine can persist only what a
// dispatch touched.
type Ledger struct {
	balances map[common.Address]Coins
	dirty    map[common.Address]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]Coins),
		dirty:    make(map[common.Address]struct{}),
	}
}

// Get returns the balance of account.
func (l *Ledger) Get(account common.Address) Coins {
	return l.balances[account]
}

// Set overwrites the balance of account. Used when restoring state and
// by Transfer to write the debited balance.
func (l *Ledger) Set(account common.Address, amount Coins) {
	l.balances[account] = amount
	l.dirty[account] = struct{}{}
}

// Add credits amount to account, saturating at the uint64 bound. The
// callers that credit (bond payouts, refunds, handouts) have already
// proven the total supply fits, so saturation is unreachable in practice.
func (l *Ledger) Add(account common.Address, amount Coins) {
	b := l.balances[account]
	if b > math.MaxUint64-amount {
		b = math.MaxUint64
	} else {
		b += amount
	}
	l.balances[account] = b
	l.dirty[account] = struct{}{}
}

// CheckedAdd credits amount to account, failing with ErrBalanceOverflow
// instead of saturating.
func (l *Ledger) CheckedAdd(account common.Address, amount Coins) error {
	b := l.balances[account]
	if b > math.MaxUint64-amount {
		return ErrBalanceOverflow
	}
	l.balances[account] = b + amount
	l.dirty[account] = struct{}{}
	return nil
}

// Remove debits amount from account, failing with ErrInsufficientBalance
// if the balance cannot cover it.
func (l *Ledger) Remove(account common.Address, amount Coins) error {
	b := l.balances[account]
	if b < amount {
		return ErrInsufficientBalance
	}
	l.balances[account] = b - amount
	l.dirty[account] = struct{}{}
	return nil
}

// Total sums all balances. Escrowed bid payments are not in the ledger,
// so the total can be below the coin supply while bids are open.
func (l *Ledger) Total() Coins {
	var sum Coins
	for _, b := range l.balances {
		sum += b
	}
	return sum
}

// Balances returns a copy of the full balance map.
func (l *Ledger) Balances() map[common.Address]Coins {
	out := make(map[common.Address]Coins, len(l.balances))
	for a, b := range l.balances {
		out[a] = b
	}
	return out
}

// takeDirty drains the set of accounts touched since the last call.
func (l *Ledger) takeDirty() []common.Address {
	if len(l.dirty) == 0 {
		return nil
	}
	out := make([]common.Address, 0, len(l.dirty))
	for a := range l.dirty {
		out = append(out, a)
	}
	l.dirty = make(map[common.Address]struct{})
	return out
}
