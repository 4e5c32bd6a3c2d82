// Package order holds the trade server's view of its own orders and the
// state machine that applies broker status reports to them.
package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stockgate/internal/dbf"
)

type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

type AccountType int

const (
	AccountCash AccountType = iota
	AccountMargin
	AccountOption
)

func (t AccountType) String() string {
	switch t {
	case AccountMargin:
		return "margin"
	case AccountOption:
		return "option"
	default:
		return "cash"
	}
}

// ParseAccountType maps a config string to an account type.
func ParseAccountType(s string) (AccountType, error) {
	switch s {
	case "cash", "stock", "":
		return AccountCash, nil
	case "margin", "credit":
		return AccountMargin, nil
	case "option":
		return AccountOption, nil
	default:
		return AccountCash, fmt.Errorf("unknown account type %q", s)
	}
}

type State int

const (
	StateCreated State = iota
	StateSubmitted
	StateAccepted
	StatePartiallyFilled
	StateFilled
	StateCanceled
	StatePartiallyCanceled
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubmitted:
		return "submitted"
	case StateAccepted:
		return "accepted"
	case StatePartiallyFilled:
		return "partially_filled"
	case StateFilled:
		return "filled"
	case StateCanceled:
		return "canceled"
	case StatePartiallyCanceled:
		return "partially_canceled"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further broker report can move the order.
func (s State) Terminal() bool {
	switch s {
	case StateFilled, StateCanceled, StatePartiallyCanceled, StateRejected:
		return true
	default:
		return false
	}
}

// Execution is one fill applied to an order.
type Execution struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Time     time.Time       `json:"time"`
}

// Order is owned by exactly one trade server. ExchangeID stays empty
// until the broker acknowledges the order.
type Order struct {
	CustID     string          `json:"cust_id"`
	ExchangeID string          `json:"exchange_id,omitempty"`
	Ticker     string          `json:"ticker"`
	Side       Side            `json:"side"`
	Quantity   int64           `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Kind       string          `json:"kind"`

	State         State       `json:"state"`
	Executions    []Execution `json:"executions,omitempty"`
	AcceptedAt    time.Time   `json:"accepted_at,omitzero"`
	CanceledAt    time.Time   `json:"canceled_at,omitzero"`
	BrokerMessage string      `json:"broker_message,omitempty"`
}

func (o *Order) IsBuy() bool {
	return o.Side == SideBuy
}

// Filled returns the summed execution quantity.
func (o *Order) Filled() int64 {
	var total int64
	for _, e := range o.Executions {
		total += e.Quantity
	}
	return total
}

// Remaining returns the unfilled quantity, never negative.
func (o *Order) Remaining() int64 {
	r := o.Quantity - o.Filled()
	if r < 0 {
		return 0
	}
	return r
}

// Broker status codes carried in order-update rows.
const (
	StatusAccepted      = "0"
	StatusPartialFill   = "1"
	StatusFullFill      = "2"
	StatusPartialCancel = "3"
	StatusFullCancel    = "4"
	StatusRejected      = "5"
	StatusError         = "6"
)

// Update is one decoded order-update row.
type Update struct {
	AccountID  string
	CustID     string
	ExchangeID string
	Ticker     string
	Status     string
	FillPrice  decimal.Decimal
	FillQty    int64
	Time       time.Time
	Message    string
}

// Broker timestamps are exchange-local wall clock.
const brokerTimeLayout = "2006-01-02 15:04:05"

// ParseBrokerTime parses an ORD_TIME value in loc and normalizes to UTC.
func ParseBrokerTime(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(brokerTimeLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing broker time %q failed: %w", raw, err)
	}
	return t.UTC(), nil
}

// UpdateFromRow decodes one order-update table row.
func UpdateFromRow(row dbf.Row, loc *time.Location) (Update, error) {
	u := Update{
		AccountID:  row.Field(dbf.ColAccount),
		CustID:     row.Field(dbf.ColClientID),
		ExchangeID: row.Field(dbf.ColOrderNo),
		Ticker:     row.Field(dbf.ColSymbol),
		Status:     row.Field(dbf.ColOrderStatus),
		Message:    row.Field(dbf.ColErrMsg),
	}
	if u.Status == "" {
		return Update{}, fmt.Errorf("order update row without status")
	}
	t, err := ParseBrokerTime(row.Field(dbf.ColOrderTime), loc)
	if err != nil {
		return Update{}, err
	}
	u.Time = t

	if raw := row.Field(dbf.ColAvgPrice); raw != "" {
		px, err := decimal.NewFromString(raw)
		if err != nil {
			return Update{}, fmt.Errorf("fill price %q is not numeric: %w", raw, err)
		}
		u.FillPrice = px
	}
	if raw := row.Field(dbf.ColFilledQty); raw != "" {
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return Update{}, fmt.Errorf("fill quantity %q is not numeric: %w", raw, err)
		}
		u.FillQty = qty.IntPart()
	}
	return u, nil
}
