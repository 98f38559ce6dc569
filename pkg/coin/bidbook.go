package coin

import "sort"

// BidBook holds the pending bids sorted ascending by price so the highest
// bid sits at the tail, ready to pop. Length is bounded by the maximum
// passed at construction; overflow evicts the lowest bid.
//
// The book is a pure data structure: eviction and cancellation return the
// removed bids and the engine refunds them, keeping balance changes in
// one place.
type BidBook struct {
	bids []Bid
	max  int
}

func NewBidBook(max int) *BidBook {
	return &BidBook{max: max}
}

// Add inserts the bid at its binary-search position and returns the
// evicted lowest bid, if the book overflowed.
//
// Equal-price bids are inserted after existing ones, so among equals the
// oldest sits closest to the head and is evicted first.
//
// Note: an attacker repeatedly submitting at the current minimum price
// can evict honest bids. Known concern, unmitigated here.
func (bb *BidBook) Add(b Bid) (evicted Bid, wasEvicted bool) {
	i := sort.Search(len(bb.bids), func(i int) bool {
		return bb.bids[i].Price > b.Price
	})
	bb.bids = append(bb.bids, Bid{})
	copy(bb.bids[i+1:], bb.bids[i:])
	bb.bids[i] = b

	if len(bb.bids) > bb.max {
		evicted = bb.bids[0]
		bb.bids = bb.bids[1:]
		return evicted, true
	}
	return Bid{}, false
}

// CancelMatching removes every bid the predicate matches, preserving the
// order of the rest, and returns the removed bids for refunding.
func (bb *BidBook) CancelMatching(match func(Bid) bool) []Bid {
	var removed []Bid
	kept := bb.bids[:0]
	for _, b := range bb.bids {
		if match(b) {
			removed = append(removed, b)
			continue
		}
		kept = append(kept, b)
	}
	bb.bids = kept
	return removed
}

// PopHighest removes and returns the tail bid, or false when empty.
func (bb *BidBook) PopHighest() (Bid, bool) {
	if len(bb.bids) == 0 {
		return Bid{}, false
	}
	b := bb.bids[len(bb.bids)-1]
	bb.bids = bb.bids[:len(bb.bids)-1]
	return b, true
}

// Len returns the number of pending bids.
func (bb *BidBook) Len() int { return len(bb.bids) }

// Bids returns a copy of the book from lowest to highest price.
func (bb *BidBook) Bids() []Bid {
	out := make([]Bid, len(bb.bids))
	copy(out, bb.bids)
	return out
}

// setBids replaces the book contents. Used when restoring state.
func (bb *BidBook) setBids(bids []Bid) {
	bb.bids = append(bb.bids[:0], bids...)
}
