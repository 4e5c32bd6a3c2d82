// Package bridge defines the message protocol between the connector and
// the trade servers: per-account envelopes outbound, order commands
// inbound, and the channel naming convention on top of the bus.
package bridge

import (
	"encoding/json"
	"fmt"

	"stockgate/internal/dbf"
)

// Prefix tags the envelope payload kind.
type Prefix string

const (
	PrefixAsset          Prefix = "Asset"
	PrefixOrderUpdate    Prefix = "OrderUpdate"
	PrefixActiveOrders   Prefix = "ActOrd"
	PrefixOptionFund     Prefix = "OptionFund"
	PrefixOptionPosition Prefix = "OptionPosition"
)

// Kind is the closed set an envelope decodes to. Anything off the wire
// that is not a known prefix becomes KindUnknown and is dropped by the
// receiver.
type Kind int

const (
	KindUnknown Kind = iota
	KindAsset
	KindOrderUpdate
	KindActiveOrders
	KindOptionFund
	KindOptionPosition
)

// Envelope is one connector-to-trade-server message. Asset envelopes
// carry the three snapshot sources together; all other kinds use Data.
type Envelope struct {
	Prefix  Prefix    `json:"prefix"`
	Asset   []dbf.Row `json:"asset,omitempty"`
	Compact []dbf.Row `json:"compact,omitempty"`
	Loan    []dbf.Row `json:"rq,omitempty"`
	Data    []dbf.Row `json:"data,omitempty"`
}

func (e Envelope) Kind() Kind {
	switch e.Prefix {
	case PrefixAsset:
		return KindAsset
	case PrefixOrderUpdate:
		return KindOrderUpdate
	case PrefixActiveOrders:
		return KindActiveOrders
	case PrefixOptionFund:
		return KindOptionFund
	case PrefixOptionPosition:
		return KindOptionPosition
	default:
		return KindUnknown
	}
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func DecodeEnvelope(payload []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(payload, &e); err != nil {
		return Envelope{}, fmt.Errorf("decoding envelope failed: %w", err)
	}
	return e, nil
}

// Channel names the per-account channel the connector publishes to.
func Channel(pubBase, accountID string) string {
	return pubBase + "|" + accountID
}
