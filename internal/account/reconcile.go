package account

import (
	"fmt"

	"github.com/shopspring/decimal"

	"stockgate/internal/dbf"
)

// Currency of all stock and margin accounts handled by this gateway.
const CurrencyCNY = "CNY"

// Asset table direction markers.
const (
	directionLong  = "0"
	directionShort = "1"
)

// CMPTYPE value of stock-loan contracts in the credit compact table.
// Other contract kinds (cash loans) do not contribute borrowed shares.
const compactTypeStockLoan = "1"

// Rebuild merges the latest asset, margin-contract and stock-loan
// snapshots of one account into a full replacement State. Every ticker
// seen in any source appears exactly once; fields a source does not
// mention are zero.
func Rebuild(accountID string, asset, compact, loan []dbf.Row) (*State, error) {
	state := NewState()

	asset = filterAccount(asset, accountID)
	if len(asset) > 0 {
		bal, err := balanceFromAsset(asset)
		if err != nil {
			return nil, err
		}
		state.Balances[CurrencyCNY] = bal

		holdings, err := holdingsFromAsset(asset[1:])
		if err != nil {
			return nil, err
		}
		state.Holdings = holdings
	}

	borrowed, err := borrowedByTicker(filterAccount(compact, accountID))
	if err != nil {
		return nil, err
	}
	quota, err := loanQuotaByTicker(filterAccount(loan, accountID))
	if err != nil {
		return nil, err
	}

	// Outer join of borrowed and quota, then overlay onto the position
	// table. A ticker only present on the loan side still gets a holding
	// with a zero long side.
	for ticker := range quota {
		if _, ok := borrowed[ticker]; !ok {
			borrowed[ticker] = 0
		}
	}
	for ticker, shares := range borrowed {
		h := state.Holdings[ticker]
		h.ShortHolding = shares
		h.ShortAvailable = shares
		h.ShortAvgCost = decimal.Zero
		h.MarginSellAvailable = quota[ticker]
		state.Holdings[ticker] = h
	}

	return state, nil
}

// RebuildOption builds the state of an option account from its fund and
// position snapshots. Option sides carry no sign ambiguity: side 0 is
// bought, side 1 is written.
func RebuildOption(accountID string, fund, positions []dbf.Row) (*State, error) {
	state := NewState()

	fund = filterAccount(fund, accountID)
	if len(fund) > 0 {
		row := fund[0]
		total, err := parseDecimalField(row, "BALANCE")
		if err != nil {
			return nil, err
		}
		avail, err := parseDecimalField(row, "AVAILABLE")
		if err != nil {
			return nil, err
		}
		ratio, err := parseDecimalField(row, "MARGIN_RATIO")
		if err != nil {
			return nil, err
		}
		state.Balances[CurrencyCNY] = Balance{
			Total:         total,
			Cash:          total,
			CashAvailable: avail,
			MarginRatio:   ratio,
		}
	}

	for _, row := range filterAccount(positions, accountID) {
		ticker := row.Field(dbf.ColSymbol)
		if ticker == "" {
			return nil, fmt.Errorf("option position row without symbol")
		}
		qty, err := parseQtyField(row, "QTY")
		if err != nil {
			return nil, err
		}
		avail, err := parseQtyField(row, "AVAIL_QTY")
		if err != nil {
			return nil, err
		}
		cost, err := parseDecimalField(row, "AVG_COST")
		if err != nil {
			return nil, err
		}
		value, err := parseDecimalField(row, "MKT_VALUE")
		if err != nil {
			return nil, err
		}

		h := state.Holdings[ticker]
		switch row.Field("SIDE") {
		case directionLong:
			h.LongHolding = qty
			h.LongAvailable = avail
			h.LongAvgCost = cost
			h.LongMarketValue = value
		case directionShort:
			h.ShortHolding = qty
			h.ShortAvailable = avail
			h.ShortAvgCost = cost
			h.ShortMarketValue = value
		default:
			return nil, fmt.Errorf("option position %s has unknown side %q", ticker, row.Field("SIDE"))
		}
		state.Holdings[ticker] = h
	}

	return state, nil
}

// balanceFromAsset sums S3 across all rows for the total and reads the
// cash fields from the leading balance row.
func balanceFromAsset(rows []dbf.Row) (Balance, error) {
	total := decimal.Zero
	for _, row := range rows {
		v, err := parseDecimalField(row, "S3")
		if err != nil {
			return Balance{}, err
		}
		total = total.Add(v)
	}
	cash, err := parseDecimalField(rows[0], "S3")
	if err != nil {
		return Balance{}, err
	}
	cashAvail, err := parseDecimalField(rows[0], "S4")
	if err != nil {
		return Balance{}, err
	}
	return Balance{Total: total, Cash: cash, CashAvailable: cashAvail}, nil
}

// holdingsFromAsset splits position rows by the S5 direction marker and
// keys them by ticker.
func holdingsFromAsset(rows []dbf.Row) (map[string]Holding, error) {
	holdings := make(map[string]Holding)
	for _, row := range rows {
		ticker := row.Field("S1")
		if ticker == "" {
			return nil, fmt.Errorf("position row without ticker")
		}
		qty, err := parseQtyField(row, "S2")
		if err != nil {
			return nil, err
		}
		avail, err := parseQtyField(row, "S3")
		if err != nil {
			return nil, err
		}
		cost, err := parseDecimalField(row, "S4")
		if err != nil {
			return nil, err
		}
		value, err := parseDecimalField(row, "S8")
		if err != nil {
			return nil, err
		}

		h := holdings[ticker]
		switch row.Field("S5") {
		case directionLong:
			h.LongHolding = qty
			h.LongAvailable = avail
			h.LongAvgCost = cost
			h.LongMarketValue = value
		case directionShort:
			h.ShortHolding = qty
			h.ShortAvailable = avail
			h.ShortAvgCost = cost
			h.ShortMarketValue = value
		default:
			return nil, fmt.Errorf("position row %s has unknown direction %q", ticker, row.Field("S5"))
		}
		holdings[ticker] = h
	}
	return holdings, nil
}

// borrowedByTicker sums outstanding borrowed shares of stock-loan
// contracts by ticker.
func borrowedByTicker(rows []dbf.Row) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, row := range rows {
		if row.Field("CMPTYPE") != compactTypeStockLoan {
			continue
		}
		ticker := row.Field("STOCKCODE")
		if ticker == "" {
			return nil, fmt.Errorf("margin contract row without stock code")
		}
		amount, err := parseQtyField(row, "RCMAMOUNT")
		if err != nil {
			return nil, err
		}
		out[ticker] += amount
	}
	return out, nil
}

func loanQuotaByTicker(rows []dbf.Row) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, row := range rows {
		ticker := row.Field(dbf.ColSymbol)
		if ticker == "" {
			return nil, fmt.Errorf("loan quota row without symbol")
		}
		qty, err := parseQtyField(row, "QTY")
		if err != nil {
			return nil, err
		}
		out[ticker] = qty
	}
	return out, nil
}

func filterAccount(rows []dbf.Row, accountID string) []dbf.Row {
	if accountID == "" {
		return rows
	}
	out := rows[:0:0]
	for _, row := range rows {
		if row.Field(dbf.ColAccount) == accountID {
			out = append(out, row)
		}
	}
	return out
}

func parseDecimalField(row dbf.Row, name string) (decimal.Decimal, error) {
	raw := row.Field(name)
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("field %s=%q is not numeric: %w", name, raw, err)
	}
	return v, nil
}

func parseQtyField(row dbf.Row, name string) (int64, error) {
	v, err := parseDecimalField(row, name)
	if err != nil {
		return 0, err
	}
	qty := v.IntPart()
	if qty < 0 {
		return 0, fmt.Errorf("field %s=%q is negative", name, row.Field(name))
	}
	return qty, nil
}
