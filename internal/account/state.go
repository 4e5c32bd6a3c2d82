// Package account models the per-account balance and holding view and
// rebuilds it from broker snapshot sources.
package account

import "github.com/shopspring/decimal"

// Balance is the per-currency account balance. It is replaced wholesale
// on every reconciliation cycle.
type Balance struct {
	Total         decimal.Decimal `json:"total"`
	Cash          decimal.Decimal `json:"cash"`
	CashAvailable decimal.Decimal `json:"cash_available"`
	MarginRatio   decimal.Decimal `json:"margin_ratio"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

// Holding is the per-ticker position view. Quantities are share counts
// and never negative; a side with no position holds zeros.
type Holding struct {
	LongHolding     int64           `json:"long_holding"`
	LongAvailable   int64           `json:"long_available"`
	LongAvgCost     decimal.Decimal `json:"long_avg_cost"`
	LongMarketValue decimal.Decimal `json:"long_market_value"`

	ShortHolding     int64           `json:"short_holding"`
	ShortAvailable   int64           `json:"short_available"`
	ShortAvgCost     decimal.Decimal `json:"short_avg_cost"`
	ShortMarketValue decimal.Decimal `json:"short_market_value"`

	// MarginSellAvailable is the broker's short-sell quota for the ticker.
	MarginSellAvailable int64 `json:"margin_sell_available"`
}

// State is the reconciled account view: balances by currency, holdings by
// ticker.
type State struct {
	Balances map[string]Balance `json:"balances"`
	Holdings map[string]Holding `json:"holdings"`
}

func NewState() *State {
	return &State{
		Balances: make(map[string]Balance),
		Holdings: make(map[string]Holding),
	}
}

// Balance returns the balance for a currency, zero-valued when absent.
func (s *State) Balance(currency string) Balance {
	if s == nil {
		return Balance{}
	}
	return s.Balances[currency]
}

// Clone returns an independent copy for readers outside the owning loop.
func (s *State) Clone() *State {
	out := NewState()
	if s == nil {
		return out
	}
	for k, v := range s.Balances {
		out.Balances[k] = v
	}
	for k, v := range s.Holdings {
		out.Holdings[k] = v
	}
	return out
}

// Holding returns the holding for a ticker and whether it exists.
func (s *State) Holding(ticker string) (Holding, bool) {
	if s == nil {
		return Holding{}, false
	}
	h, ok := s.Holdings[ticker]
	return h, ok
}
