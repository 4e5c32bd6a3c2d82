// Package routing picks the broker action code for an order. The broker
// needs distinct instruction codes for opening versus closing a
// position, so the decision consults the current reconciled holding, not
// just the requested side.
package routing

import (
	"github.com/shopspring/decimal"

	"stockgate/internal/account"
	"stockgate/internal/order"
)

// Counter types select the broker-side instruction file target. They
// carry no reconciliation meaning.
const (
	CounterCash   = "0"
	CounterMargin = "C"
	CounterOption = "0B"
)

// Broker action codes.
const (
	codeCashBuy  = "1"
	codeCashSell = "2"

	codeMarginBuy      = "A" // open a new margin loan
	codeMarginSell     = "B" // short sale against borrowed stock
	codeBuyToCover     = "C" // buy back to close an existing stock loan
	codeBuyCollateral  = "1" // plain buy into the collateral account
	codeSellCollateral = "2" // sell held collateral

	codeOpenLong   = "FA"
	codeOpenShort  = "FB"
	codeCloseShort = "FC"
	codeCloseLong  = "FD"

	codeEtfCreate = "F"
	codeEtfRedeem = "G"
)

// DefaultOptionCloseThreshold is the margin-utilization ratio above
// which an option account prefers closing existing positions. The
// covered-option variant runs at 0.7.
const DefaultOptionCloseThreshold = 0.5

// Policy maps a desired order plus the reconciled account view onto a
// broker action code. Implementations are pure: identical inputs always
// yield the same code.
type Policy interface {
	ActionCode(o *order.Order, bal account.Balance, h account.Holding) string
	CounterType() string
}

// ForAccountType returns the policy variant for an account type.
func ForAccountType(t order.AccountType, optionCloseThreshold float64) Policy {
	switch t {
	case order.AccountMargin:
		return MarginPolicy{}
	case order.AccountOption:
		if optionCloseThreshold <= 0 {
			optionCloseThreshold = DefaultOptionCloseThreshold
		}
		return OptionPolicy{CloseThreshold: decimal.NewFromFloat(optionCloseThreshold)}
	default:
		return CashPolicy{}
	}
}

// CashPolicy has no holding-dependent branching.
type CashPolicy struct{}

func (CashPolicy) CounterType() string { return CounterCash }

func (CashPolicy) ActionCode(o *order.Order, _ account.Balance, _ account.Holding) string {
	if o.IsBuy() {
		return codeCashBuy
	}
	return codeCashSell
}

// MarginPolicy prefers closing an existing loan before opening a new
// one, and plain collateral trades when cash covers the order.
type MarginPolicy struct{}

func (MarginPolicy) CounterType() string { return CounterMargin }

func (MarginPolicy) ActionCode(o *order.Order, bal account.Balance, h account.Holding) string {
	if o.IsBuy() {
		if h.ShortAvailable >= o.Quantity {
			return codeBuyToCover
		}
		notional := o.LimitPrice.Mul(decimal.NewFromInt(o.Quantity))
		if notional.LessThan(bal.CashAvailable) {
			return codeBuyCollateral
		}
		return codeMarginBuy
	}
	if h.LongAvailable >= o.Quantity {
		return codeSellCollateral
	}
	return codeMarginSell
}

// OptionPolicy opens new positions while margin utilization is low and
// switches to closing the opposite side once it crosses the threshold.
type OptionPolicy struct {
	CloseThreshold decimal.Decimal
}

func (OptionPolicy) CounterType() string { return CounterOption }

func (p OptionPolicy) ActionCode(o *order.Order, bal account.Balance, h account.Holding) string {
	if o.IsBuy() {
		if bal.MarginRatio.LessThan(p.CloseThreshold) || h.ShortAvailable < o.Quantity {
			return codeOpenLong
		}
		return codeCloseShort
	}
	if bal.MarginRatio.LessThan(p.CloseThreshold) || h.LongAvailable < o.Quantity {
		return codeOpenShort
	}
	return codeCloseLong
}
