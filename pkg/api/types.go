package api

import "github.com/basislabs/basisd/pkg/coin"

// StatusInfo describes the node state.
type StatusInfo struct {
	Height      uint64 `json:"height"`
	Initialized bool   `json:"initialized"`
	CoinSupply  uint64 `json:"coinSupply"`
	BidCount    int    `json:"bidCount"`
	BondCount   int    `json:"bondCount"`
	MempoolSize int    `json:"mempoolSize"`
	AppHash     string `json:"appHash"`
}

// AccountInfo is the balance view of one account.
type AccountInfo struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// BidInfo is one pending bid. Price is in parts per billion.
type BidInfo struct {
	Account    string `json:"account"`
	PriceParts uint64 `json:"priceParts"`
	Quantity   uint64 `json:"quantity"`
	Payment    uint64 `json:"payment"`
}

// BondInfo is one outstanding bond in FIFO order.
type BondInfo struct {
	Account    string `json:"account"`
	Payout     uint64 `json:"payout"`
	Expiration uint64 `json:"expiration"`
}

// ShareInfo is one entry of the share register.
type ShareInfo struct {
	Account string `json:"account"`
	Shares  uint64 `json:"shares"`
}

// SubmitTxResponse acknowledges a queued transaction.
type SubmitTxResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the error envelope for failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WSSubscribeRequest narrows a websocket subscriber's event stream.
// An empty kinds list clears the filter.
type WSSubscribeRequest struct {
	Op    string   `json:"op"` // "filter"
	Kinds []string `json:"kinds,omitempty"`
}

// EventMessage wraps an engine event for the websocket stream.
type EventMessage struct {
	Type   string     `json:"type"` // "event"
	Height uint64     `json:"height"`
	Event  coin.Event `json:"event"`
}
