package routing

import (
	"strconv"

	"stockgate/internal/bridge"
	"stockgate/internal/order"
)

// InsertTuple renders one order as an instruction-file insert record.
// The fifth slot is a broker-reserved field and stays empty.
func InsertTuple(p Policy, accountID string, o *order.Order, code string) []string {
	return []string{
		bridge.RecordInsert,
		o.CustID,
		p.CounterType(),
		accountID,
		"",
		o.Ticker,
		code,
		strconv.FormatInt(o.Quantity, 10),
		o.LimitPrice.String(),
		o.Kind,
	}
}

// CancelTuple renders a cancel record for an exchange-acknowledged
// order. The correlation-id slot is empty on cancels; the broker keys
// them by exchange order number alone.
func CancelTuple(p Policy, accountID, exchangeID string) []string {
	return []string{
		bridge.RecordCancel,
		"",
		p.CounterType(),
		accountID,
		exchangeID,
	}
}

// ConversionTuple renders an ETF create/redeem request. Conversions go
// through the cash counter at the share quantity implied by the minimum
// exchange unit, priced at zero with the default order kind.
func ConversionTuple(accountID string, c *order.Conversion) []string {
	code := codeEtfCreate
	if c.Action == order.ConversionRedeem {
		code = codeEtfRedeem
	}
	return []string{
		bridge.RecordInsert,
		c.CustID,
		CounterCash,
		accountID,
		"",
		c.Ticker,
		code,
		strconv.FormatInt(c.Shares(), 10),
		"0",
		"0",
	}
}
