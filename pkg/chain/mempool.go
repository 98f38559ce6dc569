package chain

import (
	"encoding/json"
	"sync"
)

// TxType classifies transactions into the buckets the block producer
// drains in order.
type TxType int

const (
	TxTransfer TxType = iota
	TxCancel
	TxBid
)

// ClassifyRaw classifies a raw transaction by parsing its JSON envelope.
//
//	{"type": "transfer", ...} -> TxTransfer
//	{"type": "cancel", ...}   -> TxCancel
//	{"type": "bid", ...}      -> TxBid
//
// Malformed transactions classify as TxBid and are rejected when applied.
func ClassifyRaw(b []byte) TxType {
	if len(b) == 0 || b[0] != '{' {
		return TxBid
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return TxBid
	}
	switch envelope.Type {
	case "transfer":
		return TxTransfer
	case "cancel":
		return TxCancel
	default:
		return TxBid
	}
}

// Mempool maintains three FIFO queues, one per transaction type.
// Transfers apply first, then cancels, then bids; within each bucket
// admission order is preserved.
type Mempool struct {
	mu        sync.Mutex
	transfers [][]byte
	cancels   [][]byte
	bids      [][]byte
}

func NewMempool() *Mempool {
	return &Mempool{}
}

// PushRaw classifies and enqueues a tx.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	switch ClassifyRaw(b) {
	case TxTransfer:
		m.transfers = append(m.transfers, cp)
	case TxCancel:
		m.cancels = append(m.cancels, cp)
	default:
		m.bids = append(m.bids, cp)
	}
}

// SelectForBlock removes and returns up to max transactions in apply
// order.
func (m *Mempool) SelectForBlock(max int) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	pull := func(q *[][]byte) {
		for len(*q) > 0 && len(out) < max {
			out = append(out, (*q)[0])
			*q = (*q)[1:]
		}
	}
	pull(&m.transfers)
	pull(&m.cancels)
	pull(&m.bids)
	return out
}

// Len returns the total number of queued transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers) + len(m.cancels) + len(m.bids)
}
