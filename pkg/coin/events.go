package coin

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// EventKind names an observable state transition of the engine.
type EventKind string

const (
	EventInitialized            EventKind = "Initialized"
	EventTransfer               EventKind = "Transfer"
	EventNewBid                 EventKind = "NewBid"
	EventRefundedBid            EventKind = "RefundedBid"
	EventNewBond                EventKind = "NewBond"
	EventBondFulfilled          EventKind = "BondFulfilled"
	EventBondPartiallyFulfilled EventKind = "BondPartiallyFulfilled"
	EventBondExpired            EventKind = "BondExpired"
	EventCancelledBidsBelow     EventKind = "CancelledBidsBelow"
	EventCancelledBids          EventKind = "CancelledBids"
	EventExpandedSupply         EventKind = "ExpandedSupply"
	EventContractedSupply       EventKind = "ContractedSupply"
)

// Event is the flat payload emitted at the engine's observable boundary.
// Fields not used by a given kind are zero.
type Event struct {
	Kind       EventKind      `json:"kind"`
	Account    common.Address `json:"account,omitempty"`
	To         common.Address `json:"to,omitempty"`
	Amount     Coins          `json:"amount,omitempty"`
	Price      fixed.Perbill  `json:"price,omitempty"`
	Expiration BlockNumber    `json:"expiration,omitempty"`
}

// Emitter receives engine events. The node tees them to the log and the
// websocket hub; tests collect them.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) { f(ev) }

// NopEmitter drops all events.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}
