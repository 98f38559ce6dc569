package coin

// BondStore is the backing state a RingBuffer operates on: a keyed map of
// index to bond plus the persisted (start, end) bounds pair.
type BondStore interface {
	GetBond(BondIndex) Bond
	PutBond(BondIndex, Bond)
	DeleteBond(BondIndex)
	BondsRange() (start, end BondIndex)
	SetBondsRange(start, end BondIndex)
}

// RingBuffer is a transient FIFO view over a BondStore. The cursors are
// staged on the struct while elements are written through immediately;
// Commit flushes the cursors back to the bounds store so readers observe
// either the pre- or post-commit state, never a half-applied one.
//
// The occupied range is [start, end) modulo 2^16. Empty iff start == end,
// full iff end+1 == start, so capacity is 2^16-1.
type RingBuffer struct {
	store BondStore
	start BondIndex
	end   BondIndex
}

// NewRingBuffer loads the cursors from the store and returns a buffer
// ready for staged mutation.
func NewRingBuffer(store BondStore) *RingBuffer {
	start, end := store.BondsRange()
	return &RingBuffer{store: store, start: start, end: end}
}

// Len returns the number of occupied slots. Wrapping uint16 subtraction
// handles end < start.
func (r *RingBuffer) Len() int {
	return int(r.end - r.start)
}

// Push appends at the tail. If the buffer is full the oldest element is
// silently overwritten; the bond queue never relies on this because its
// capacity is large, but the wraparound keeps the cursors coherent.
func (r *RingBuffer) Push(b Bond) {
	r.store.PutBond(r.end, b)
	r.end++
	if r.end == r.start {
		r.start++
	}
}

// PushFront prepends at the head. Used to reinsert a partially filled
// bond so the next expansion resumes from it.
func (r *RingBuffer) PushFront(b Bond) {
	r.start--
	r.store.PutBond(r.start, b)
	if r.end == r.start {
		r.end--
	}
}

// Pop removes and returns the head element, or false when empty.
func (r *RingBuffer) Pop() (Bond, bool) {
	if r.start == r.end {
		return Bond{}, false
	}
	b := r.store.GetBond(r.start)
	r.store.DeleteBond(r.start)
	r.start++
	return b, true
}

// Commit flushes the staged cursors back to the bounds store.
func (r *RingBuffer) Commit() {
	r.store.SetBondsRange(r.start, r.end)
}
