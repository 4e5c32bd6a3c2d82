// Package config loads the gateway's layered YAML configuration. A file
// may name further files under `include`; included files merge in order
// and the including file wins on conflicts.
package config

import "strings"

// Config is the top-level carrier shared by the connector and the trade
// server binaries. Each binary reads the sections it needs.
type Config struct {
	App       AppConfig       `toml:"app"`
	Broker    BrokerConfig    `toml:"broker"`
	Bus       BusConfig       `toml:"bus"`
	Store     StoreConfig     `toml:"store"`
	Connector ConnectorConfig `toml:"connector"`
	Server    ServerConfig    `toml:"server"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
	Timezone string `toml:"timezone"`
}

// BrokerConfig points at the terminal's export tables and the
// instruction files the gateway appends to.
type BrokerConfig struct {
	AssetPath          string `toml:"asset_path"`
	OrderUpdatesPath   string `toml:"order_updates_path"`
	CreditCompactPath  string `toml:"credit_compact_path"`
	LoanQuotaPath      string `toml:"loan_quota_path"`
	OptionFundPath     string `toml:"option_fund_path"`
	OptionPositionPath string `toml:"option_position_path"`
	InstructionDir     string `toml:"instruction_dir"`

	AssetIntervalSeconds  int `toml:"asset_interval_seconds"`
	OrderPollMillis       int `toml:"order_poll_millis"`
	OptionIntervalSeconds int `toml:"option_interval_seconds"`
}

type BusConfig struct {
	Mode     string `toml:"mode"` // "memory" or "websocket"
	HubAddr  string `toml:"hub_addr"`
	URL      string `toml:"url"`
	PubBase  string `toml:"pub_base"`
	CmdBase  string `toml:"cmd_base"`
}

type StoreConfig struct {
	Path         string `toml:"path"`
	AuditEnabled bool   `toml:"audit_enabled"`
}

// AccountConfig describes one broker account the connector serves.
type AccountConfig struct {
	ID   string `toml:"id"`
	Type string `toml:"type"` // cash | margin | option
}

type ConnectorConfig struct {
	Accounts          []AccountConfig `toml:"accounts"`
	CommandsPerSecond float64         `toml:"commands_per_second"`
	AutoStopHour      int             `toml:"auto_stop_hour"` // exchange-local hour to stop after
	WatchOrderUpdates bool            `toml:"watch_order_updates"`
}

type ServerConfig struct {
	AccountID            string  `toml:"account_id"`
	SessionURL           string  `toml:"session_url"`
	SessionToken         string  `toml:"session_token"`
	OptionCloseThreshold float64 `toml:"option_close_threshold"`
	CancelDelaySeconds   int     `toml:"cancel_delay_seconds"`
	StartupCancelReports int     `toml:"startup_cancel_reports"`

	ETFUnits map[string]int64 `toml:"etf_units"` // ticker -> min exchange unit
}

// keySet tracks the field paths explicitly present in the files, so
// defaults never clobber a deliberate zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	_, ok := k[path]
	return ok
}
