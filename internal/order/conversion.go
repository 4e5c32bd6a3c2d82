package order

import (
	"fmt"
	"time"
)

type ConversionAction int

const (
	ConversionCreate ConversionAction = iota
	ConversionRedeem
)

func (a ConversionAction) String() string {
	if a == ConversionRedeem {
		return "redeem"
	}
	return "create"
}

// Conversion is an ETF create/redeem request. Conversions share the
// correlation-id namespace with orders but are disjoint entities; a full
// fill report on a registered conversion completes it instead of an
// order.
type Conversion struct {
	CustID          string
	Ticker          string
	Action          ConversionAction
	Quantity        int64
	MinExchangeUnit int64

	Done        bool
	CompletedAt time.Time
}

// Shares returns the share quantity submitted to the broker.
func (c *Conversion) Shares() int64 {
	unit := c.MinExchangeUnit
	if unit <= 0 {
		unit = 1
	}
	return c.Quantity * unit
}

// ConversionBook tracks in-flight ETF conversions by correlation id.
type ConversionBook struct {
	byCust map[string]*Conversion
}

func NewConversionBook() *ConversionBook {
	return &ConversionBook{byCust: make(map[string]*Conversion)}
}

func (b *ConversionBook) Register(c *Conversion) error {
	if c == nil || c.CustID == "" {
		return fmt.Errorf("conversion requires a cust id")
	}
	if _, ok := b.byCust[c.CustID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, c.CustID)
	}
	b.byCust[c.CustID] = c
	return nil
}

// Pending returns the conversion for a correlation id when one exists
// and is not yet completed.
func (b *ConversionBook) Pending(custID string) (*Conversion, bool) {
	c, ok := b.byCust[custID]
	if !ok || c.Done {
		return nil, false
	}
	return c, true
}

// Complete marks a pending conversion done. Completing twice is a no-op.
func (b *ConversionBook) Complete(custID string, at time.Time) (*Conversion, bool) {
	c, ok := b.Pending(custID)
	if !ok {
		return nil, false
	}
	c.Done = true
	c.CompletedAt = at
	return c, true
}
