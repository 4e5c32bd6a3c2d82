package config

import (
	"fmt"
	"strings"
	"time"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Bus.validate(); err != nil {
		return err
	}
	if err := c.Connector.validate(); err != nil {
		return err
	}
	if err := c.Server.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	if _, err := time.LoadLocation(a.Timezone); err != nil {
		return fmt.Errorf("app.timezone %q is not a known location: %w", a.Timezone, err)
	}
	return nil
}

// Location returns the broker's wall-clock zone. Call validate first.
func (a *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (b *BusConfig) validate() error {
	switch b.Mode {
	case "memory":
	case "websocket":
		if strings.TrimSpace(b.URL) == "" && strings.TrimSpace(b.HubAddr) == "" {
			return fmt.Errorf("bus.mode websocket requires bus.url or bus.hub_addr")
		}
	default:
		return fmt.Errorf("bus.mode must be memory or websocket, got %q", b.Mode)
	}
	return nil
}

func (c *ConnectorConfig) validate() error {
	seen := make(map[string]bool, len(c.Accounts))
	for i, acct := range c.Accounts {
		if strings.TrimSpace(acct.ID) == "" {
			return fmt.Errorf("connector.accounts[%d] missing id", i)
		}
		if seen[acct.ID] {
			return fmt.Errorf("connector.accounts contains duplicate id %s", acct.ID)
		}
		seen[acct.ID] = true
	}
	if c.AutoStopHour < 0 || c.AutoStopHour > 23 {
		return fmt.Errorf("connector.auto_stop_hour must be within [0, 23]")
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if s.OptionCloseThreshold < 0 || s.OptionCloseThreshold > 1 {
		return fmt.Errorf("server.option_close_threshold must be within [0, 1]")
	}
	for ticker, unit := range s.ETFUnits {
		if unit <= 0 {
			return fmt.Errorf("server.etf_units.%s must be positive", ticker)
		}
	}
	return nil
}
