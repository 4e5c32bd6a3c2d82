package config

import "strings"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppLogPath  = "/data/logs/stockgate.log"
	defaultAppHTTPAddr = ":9980"
	defaultAppTimezone = "Asia/Shanghai"

	defaultAssetIntervalSeconds  = 10
	defaultOrderPollMillis       = 10
	defaultOptionIntervalSeconds = 10

	defaultBusMode = "memory"
	defaultPubBase = "stockgate.snapshots"
	defaultCmdBase = "stockgate.commands"

	defaultStorePath = "/data/db/stockgate.db"

	defaultCommandsPerSecond = 20.0
	defaultAutoStopHour      = 21 // exchange-local, past the after-hours session

	defaultCancelDelaySeconds   = 3
	defaultStartupCancelReports = 3
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Broker.applyDefaults(keys)
	c.Bus.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Connector.applyDefaults(keys)
	c.Server.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.timezone", &a.Timezone, defaultAppTimezone),
	)
}

func (b *BrokerConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "broker.asset_interval_seconds",
			need:  func() bool { return b.AssetIntervalSeconds <= 0 },
			apply: func() { b.AssetIntervalSeconds = defaultAssetIntervalSeconds },
		},
		fieldDefault{
			key:   "broker.order_poll_millis",
			need:  func() bool { return b.OrderPollMillis <= 0 },
			apply: func() { b.OrderPollMillis = defaultOrderPollMillis },
		},
		fieldDefault{
			key:   "broker.option_interval_seconds",
			need:  func() bool { return b.OptionIntervalSeconds <= 0 },
			apply: func() { b.OptionIntervalSeconds = defaultOptionIntervalSeconds },
		},
	)
}

func (b *BusConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("bus.mode", &b.Mode, defaultBusMode),
		stringFieldDefault("bus.pub_base", &b.PubBase, defaultPubBase),
		stringFieldDefault("bus.cmd_base", &b.CmdBase, defaultCmdBase),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func (c *ConnectorConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "connector.commands_per_second",
			need:  func() bool { return c.CommandsPerSecond <= 0 },
			apply: func() { c.CommandsPerSecond = defaultCommandsPerSecond },
		},
		fieldDefault{
			key:   "connector.auto_stop_hour",
			need:  func() bool { return c.AutoStopHour <= 0 },
			apply: func() { c.AutoStopHour = defaultAutoStopHour },
		},
	)
}

func (s *ServerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "server.cancel_delay_seconds",
			need:  func() bool { return s.CancelDelaySeconds <= 0 },
			apply: func() { s.CancelDelaySeconds = defaultCancelDelaySeconds },
		},
		fieldDefault{
			key:   "server.startup_cancel_reports",
			need:  func() bool { return s.StartupCancelReports <= 0 },
			apply: func() { s.StartupCancelReports = defaultStartupCancelReports },
		},
	)
}

// Helper functions

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
