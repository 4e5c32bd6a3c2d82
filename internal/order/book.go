package order

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("order not found")
	ErrDuplicate   = errors.New("order already registered")
	ErrOverfill    = errors.New("fill exceeds remaining quantity")
	ErrUnknownCode = errors.New("unknown broker status code")
)

// Book tracks every order the server placed this session, keyed by the
// client-assigned correlation id. Updates are applied through the
// lifecycle transition table; re-delivered reports that would re-enter
// the terminal state the order already holds are no-ops, so a replayed
// stream cannot double-count executions.
type Book struct {
	byCust     map[string]*Order
	byExchange map[string]string
}

func NewBook() *Book {
	return &Book{
		byCust:     make(map[string]*Order),
		byExchange: make(map[string]string),
	}
}

// Register adds a locally created order and marks it submitted.
func (b *Book) Register(o *Order) error {
	if o == nil || o.CustID == "" {
		return fmt.Errorf("order requires a cust id")
	}
	if _, ok := b.byCust[o.CustID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, o.CustID)
	}
	if o.State == StateCreated {
		o.State = StateSubmitted
	}
	b.byCust[o.CustID] = o
	return nil
}

func (b *Book) Get(custID string) (*Order, bool) {
	o, ok := b.byCust[custID]
	return o, ok
}

func (b *Book) ByExchangeID(exchangeID string) (*Order, bool) {
	custID, ok := b.byExchange[exchangeID]
	if !ok {
		return nil, false
	}
	return b.Get(custID)
}

// All returns every order registered this session.
func (b *Book) All() []*Order {
	out := make([]*Order, 0, len(b.byCust))
	for _, o := range b.byCust {
		out = append(out, o)
	}
	return out
}

// Active returns the orders not yet in a terminal state.
func (b *Book) Active() []*Order {
	out := make([]*Order, 0, len(b.byCust))
	for _, o := range b.byCust {
		if !o.State.Terminal() {
			out = append(out, o)
		}
	}
	return out
}

// Apply runs one broker report through the transition table and returns
// the touched order. ErrNotFound means the report raced ahead of local
// registration; callers log and drop it.
func (b *Book) Apply(u Update) (*Order, error) {
	o, ok := b.byCust[u.CustID]
	if !ok {
		return nil, fmt.Errorf("%w: cust id %s", ErrNotFound, u.CustID)
	}

	switch u.Status {
	case StatusAccepted:
		// Acceptance is only meaningful once; a duplicate ack after the
		// order advanced is dropped.
		if o.State != StateSubmitted {
			return o, nil
		}
		o.State = StateAccepted
		o.ExchangeID = u.ExchangeID
		o.AcceptedAt = u.Time
		if u.ExchangeID != "" {
			b.byExchange[u.ExchangeID] = o.CustID
		}

	case StatusPartialFill:
		if o.State.Terminal() {
			return o, nil
		}
		if u.FillQty <= 0 {
			return o, fmt.Errorf("partial fill with quantity %d for %s", u.FillQty, o.CustID)
		}
		if u.FillQty > o.Remaining() {
			return o, fmt.Errorf("%w: %s fill=%d remaining=%d", ErrOverfill, o.CustID, u.FillQty, o.Remaining())
		}
		o.Executions = append(o.Executions, Execution{Price: u.FillPrice, Quantity: u.FillQty, Time: u.Time})
		o.State = StatePartiallyFilled

	case StatusFullFill:
		if o.State.Terminal() {
			return o, nil
		}
		if rem := o.Remaining(); rem > 0 {
			o.Executions = append(o.Executions, Execution{Price: u.FillPrice, Quantity: rem, Time: u.Time})
		}
		o.State = StateFilled

	case StatusPartialCancel:
		if o.State.Terminal() {
			return o, nil
		}
		o.State = StatePartiallyCanceled
		o.CanceledAt = u.Time

	case StatusFullCancel:
		if o.State.Terminal() {
			return o, nil
		}
		o.State = StateCanceled
		o.CanceledAt = u.Time

	case StatusRejected, StatusError:
		if o.State.Terminal() {
			return o, nil
		}
		o.State = StateRejected
		o.BrokerMessage = u.Message

	default:
		return o, fmt.Errorf("%w: %q", ErrUnknownCode, u.Status)
	}

	return o, nil
}
