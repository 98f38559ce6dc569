package coin

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// acct builds a deterministic test address from a small id, mirroring
// the numeric accounts used throughout the engine tests.
func acct(n byte) common.Address {
	var a common.Address
	a[common.AddressLength-1] = n
	return a
}

func pct(p uint32) fixed.Perbill { return fixed.FromPercent(p) }

func TestBidBookSortedLowestToHighest(t *testing.T) {
	bb := NewBidBook(10)
	bb.Add(NewBid(acct(1), pct(25), 5000))
	bb.Add(NewBid(acct(1), pct(33), 5000))
	bb.Add(NewBid(acct(1), pct(50), 5000))

	var prices []uint64
	for _, b := range bb.Bids() {
		prices = append(prices, b.Price.Parts())
	}
	want := []uint64{pct(25).Parts(), pct(33).Parts(), pct(50).Parts()}
	for i := range want {
		if prices[i] != want[i] {
			t.Fatalf("prices = %v, want %v", prices, want)
		}
	}
}

func TestBidBookInsertKeepsOrder(t *testing.T) {
	bb := NewBidBook(10)
	bb.Add(NewBid(acct(1), pct(50), 5000))
	bb.Add(NewBid(acct(2), pct(25), 5000))
	bb.Add(NewBid(acct(3), pct(33), 5000))

	bids := bb.Bids()
	if bids[0].Account != acct(2) || bids[1].Account != acct(3) || bids[2].Account != acct(1) {
		t.Errorf("unexpected order: %v", bids)
	}
}

func TestBidBookEqualPricesOldestFirst(t *testing.T) {
	bb := NewBidBook(10)
	bb.Add(NewBid(acct(1), pct(25), 1000))
	bb.Add(NewBid(acct(2), pct(25), 2000))
	bb.Add(NewBid(acct(3), pct(25), 3000))

	bids := bb.Bids()
	// Newer equal-price bids sit after older ones.
	if bids[0].Account != acct(1) || bids[2].Account != acct(3) {
		t.Errorf("equal-price bids not in insertion order: %v", bids)
	}
}

func TestBidBookEvictsLowest(t *testing.T) {
	bb := NewBidBook(2)
	bb.Add(NewBid(acct(1), pct(30), 1000))
	bb.Add(NewBid(acct(2), pct(40), 1000))

	evicted, ok := bb.Add(NewBid(acct(3), pct(50), 1000))
	if !ok {
		t.Fatal("expected an eviction")
	}
	if evicted.Account != acct(1) || evicted.Price != pct(30) {
		t.Errorf("evicted %v, want account 1 at 30%%", evicted)
	}
	if bb.Len() != 2 {
		t.Errorf("len = %d, want 2", bb.Len())
	}
}

func TestBidBookEvictsOldestAmongEqual(t *testing.T) {
	bb := NewBidBook(2)
	bb.Add(NewBid(acct(1), pct(25), 1000))
	bb.Add(NewBid(acct(2), pct(25), 2000))

	evicted, ok := bb.Add(NewBid(acct(3), pct(25), 3000))
	if !ok {
		t.Fatal("expected an eviction")
	}
	if evicted.Account != acct(1) {
		t.Errorf("evicted account %v, want the oldest (1)", evicted.Account)
	}
}

func TestBidBookCancelMatching(t *testing.T) {
	bb := NewBidBook(10)
	bb.Add(NewBid(acct(1), pct(25), 5000))
	bb.Add(NewBid(acct(2), pct(33), 5000))
	bb.Add(NewBid(acct(1), pct(45), 5000))
	bb.Add(NewBid(acct(1), pct(50), 5000))
	bb.Add(NewBid(acct(3), pct(55), 5000))

	removed := bb.CancelMatching(func(b Bid) bool {
		return b.Account == acct(1) && b.Price <= pct(45)
	})
	if len(removed) != 2 {
		t.Fatalf("removed %d bids, want 2", len(removed))
	}

	bids := bb.Bids()
	if len(bids) != 3 {
		t.Fatalf("remaining %d bids, want 3", len(bids))
	}
	wantOrder := []struct {
		account common.Address
		price   fixed.Perbill
	}{
		{acct(2), pct(33)},
		{acct(1), pct(50)},
		{acct(3), pct(55)},
	}
	for i, w := range wantOrder {
		if bids[i].Account != w.account || bids[i].Price != w.price {
			t.Errorf("bids[%d] = %v, want %v@%s", i, bids[i], w.account, w.price)
		}
	}
}

func TestBidBookPopHighest(t *testing.T) {
	bb := NewBidBook(10)
	if _, ok := bb.PopHighest(); ok {
		t.Error("pop on empty book should fail")
	}

	bb.Add(NewBid(acct(1), pct(25), 1000))
	bb.Add(NewBid(acct(2), pct(75), 1000))

	b, ok := bb.PopHighest()
	if !ok || b.Price != pct(75) {
		t.Errorf("popped %v, want the 75%% bid", b)
	}
	if bb.Len() != 1 {
		t.Errorf("len = %d, want 1", bb.Len())
	}
}

func TestBidPayment(t *testing.T) {
	b := NewBid(acct(1), pct(80), 1250)
	if got := b.Payment(); got != 1000 {
		t.Errorf("payment = %d, want 1000", got)
	}
}

func TestBidRemoveCoins(t *testing.T) {
	b := NewBid(acct(2), pct(75), 2000)
	removed, err := b.RemoveCoins(1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 1333 {
		t.Errorf("removed = %d, want 1333", removed)
	}
	if b.Quantity != 667 {
		t.Errorf("quantity = %d, want 667", b.Quantity)
	}

	// Removing more than the bid's quantity is an underflow.
	small := NewBid(acct(3), pct(100), 10)
	if _, err := small.RemoveCoins(100); err != ErrGenericUnderflow {
		t.Errorf("err = %v, want ErrGenericUnderflow", err)
	}
}
