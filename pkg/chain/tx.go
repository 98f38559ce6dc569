package chain

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/basislabs/basisd/pkg/coin/fixed"
)

// TransferTx moves coins between accounts.
type TransferTx struct {
	Type   string `json:"type"` // "transfer"
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// BidTx places a bond bid. Price is in parts per billion of one coin.
type BidTx struct {
	Type       string `json:"type"` // "bid"
	Account    string `json:"account"`
	PriceParts uint64 `json:"price_parts"`
	Quantity   uint64 `json:"quantity"`
}

// CancelTx cancels bids. With AtOrBelowParts set, only bids at or below
// that price are cancelled; otherwise all of the account's bids are.
type CancelTx struct {
	Type           string  `json:"type"` // "cancel"
	Account        string  `json:"account"`
	AtOrBelowParts *uint64 `json:"at_or_below_parts,omitempty"`
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// applyTx decodes and dispatches one raw transaction against the engine.
// The caller holds the engine lock.
func (p *Producer) applyTx(raw []byte) error {
	switch ClassifyRaw(raw) {
	case TxTransfer:
		var tx TransferTx
		if err := json.Unmarshal(raw, &tx); err != nil {
			return fmt.Errorf("bad transfer tx: %w", err)
		}
		from, err := parseAddress(tx.From)
		if err != nil {
			return err
		}
		to, err := parseAddress(tx.To)
		if err != nil {
			return err
		}
		return p.engine.Transfer(from, to, tx.Amount)

	case TxCancel:
		var tx CancelTx
		if err := json.Unmarshal(raw, &tx); err != nil {
			return fmt.Errorf("bad cancel tx: %w", err)
		}
		who, err := parseAddress(tx.Account)
		if err != nil {
			return err
		}
		if tx.AtOrBelowParts != nil {
			return p.engine.CancelBidsAtOrBelow(who, fixed.FromParts(*tx.AtOrBelowParts))
		}
		return p.engine.CancelAllBids(who)

	default:
		var tx BidTx
		if err := json.Unmarshal(raw, &tx); err != nil {
			return fmt.Errorf("bad bid tx: %w", err)
		}
		if tx.Type != "bid" {
			return fmt.Errorf("unknown tx type %q", tx.Type)
		}
		who, err := parseAddress(tx.Account)
		if err != nil {
			return err
		}
		return p.engine.BidForBond(who, fixed.FromParts(tx.PriceParts), tx.Quantity)
	}
}
