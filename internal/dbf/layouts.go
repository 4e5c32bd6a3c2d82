package dbf

// Shared column names used across tables.
const (
	ColAccount     = "ACCT"
	ColClientID    = "CLIENT_ID"
	ColOrderNo     = "ORD_NO"
	ColOrderStatus = "ORD_STATUS"
	ColOrderTime   = "ORD_TIME"
	ColAvgPrice    = "AVG_PX"
	ColFilledQty   = "FILLED_QTY"
	ColErrMsg      = "ERR_MSG"
	ColSymbol      = "SYMBOL"
)

// Asset holds the cash balance row followed by one row per position side.
// S1 ticker, S2 holding, S3 balance or holding qty, S4 available or avg
// cost, S5 direction marker (0 long, 1 short), S8 market value.
var Asset = Layout{
	Name: "asset",
	Columns: []Column{
		{ColAccount, 32},
		{"S1", 16},
		{"S2", 16},
		{"S3", 16},
		{"S4", 16},
		{"S5", 4},
		{"S8", 16},
		{"WRITE_TIME", 32},
	},
}

// OrderUpdates is the append-only order/trade report table.
var OrderUpdates = Layout{
	Name: "order_updates",
	Columns: []Column{
		{ColAccount, 32},
		{ColClientID, 32},
		{ColOrderNo, 32},
		{ColSymbol, 16},
		{ColOrderStatus, 4},
		{"ORD_QTY", 16},
		{ColFilledQty, 16},
		{ColAvgPrice, 16},
		{ColOrderTime, 24},
		{ColErrMsg, 64},
	},
}

// CreditCompact lists outstanding margin contracts, one row per contract.
var CreditCompact = Layout{
	Name: "creditcompact",
	Columns: []Column{
		{ColAccount, 32},
		{"ACCTTYPE", 16},
		{"OPENDATE", 8},
		{"COMPACTID", 64},
		{"CLIENTID", 32},
		{"FUNDACCT", 32},
		{"MONEYTYPE", 4},
		{"STOCKACCT", 32},
		{"STOCKCODE", 16},
		{"CRDTRATIO", 16},
		{"ETRSTNO", 16},
		{"ETRSTPRICE", 16},
		{"ETRSTAMT", 16},
		{"BIZAMOUNT", 16},
		{"BIZBALANCE", 16},
		{"BIZFARE", 16},
		{"CMPTYPE", 4},
		{"CMPSTATUS", 4},
		{"RCMBALANCE", 16},
		{"RCMAMOUNT", 16},
		{"RCMFARE", 16},
		{"RCINTEREST", 16},
		{"RPINTEREST", 16},
		{"RPAMOUNT", 16},
		{"RPBALANCE", 16},
		{"CMINTEREST", 16},
		{"UBBALANCE", 16},
		{"YEARRATE", 16},
		{"ENDDATE", 8},
		{"CLEARDATE", 8},
		{"WRITE_TIME", 32},
	},
}

// LoanQuota lists per-ticker shares available for short selling.
var LoanQuota = Layout{
	Name: "creditenslosecuqty",
	Columns: []Column{
		{ColAccount, 32},
		{"ACCTTYPE", 16},
		{ColSymbol, 16},
		{"QTY", 16},
		{"WRITE_TIME", 32},
	},
}

// OptionFund carries option account balance and margin utilization.
var OptionFund = Layout{
	Name: "OptionFund",
	Columns: []Column{
		{ColAccount, 32},
		{"ACCTTYPE", 16},
		{"BALANCE", 16},
		{"AVAILABLE", 16},
		{"MARGIN_RATIO", 16},
		{"WRITE_TIME", 32},
	},
}

// OptionPosition carries option positions, one row per contract and side.
var OptionPosition = Layout{
	Name: "OptionPosition",
	Columns: []Column{
		{ColAccount, 32},
		{ColSymbol, 16},
		{"SIDE", 4},
		{"QTY", 16},
		{"AVAIL_QTY", 16},
		{"AVG_COST", 16},
		{"MKT_VALUE", 16},
		{"WRITE_TIME", 32},
	},
}

// Instructions is the append-only table scanned by the broker terminal.
// Insert records fill all ten fields, cancel records the first five.
var Instructions = Layout{
	Name: "instructions",
	Columns: []Column{
		{"REC_TYPE", 4},
		{ColClientID, 32},
		{"ACCT_TYPE", 8},
		{ColAccount, 32},
		{ColOrderNo, 32},
		{ColSymbol, 16},
		{"ACTION", 4},
		{"QTY", 16},
		{"PRICE", 16},
		{"ORD_KIND", 4},
	},
}
