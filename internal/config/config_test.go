package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadWithIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.yaml", `
app:
  log_level: debug
bus:
  mode: memory
  pub_base: base.snapshots
`)
	main := writeFile(t, dir, "connector.yaml", `
include:
  - common.yaml
app:
  env: prod
connector:
  accounts:
    - id: "100001"
      type: cash
`)

	cfg, err := Load(main)
	require.NoError(t, err)

	t.Run("included values merge", func(t *testing.T) {
		assert.Equal(t, "debug", cfg.App.LogLevel)
		assert.Equal(t, "base.snapshots", cfg.Bus.PubBase)
	})
	t.Run("including file wins", func(t *testing.T) {
		assert.Equal(t, "prod", cfg.App.Env)
	})
	t.Run("defaults fill the rest", func(t *testing.T) {
		assert.Equal(t, defaultAppTimezone, cfg.App.Timezone)
		assert.Equal(t, defaultAssetIntervalSeconds, cfg.Broker.AssetIntervalSeconds)
		assert.Equal(t, defaultOrderPollMillis, cfg.Broker.OrderPollMillis)
		assert.Equal(t, defaultCancelDelaySeconds, cfg.Server.CancelDelaySeconds)
		assert.InDelta(t, defaultCommandsPerSecond, cfg.Connector.CommandsPerSecond, 0.001)
	})
	t.Run("accounts parsed", func(t *testing.T) {
		require.Len(t, cfg.Connector.Accounts, 1)
		assert.Equal(t, "100001", cfg.Connector.Accounts[0].ID)
	})
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestValidation(t *testing.T) {
	dir := t.TempDir()

	t.Run("bad timezone", func(t *testing.T) {
		path := writeFile(t, dir, "tz.yaml", "app:\n  timezone: Mars/Olympus\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("websocket mode needs an endpoint", func(t *testing.T) {
		path := writeFile(t, dir, "ws.yaml", "bus:\n  mode: websocket\n")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("duplicate account ids", func(t *testing.T) {
		path := writeFile(t, dir, "dup.yaml", `
connector:
  accounts:
    - id: "1"
    - id: "1"
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		path := writeFile(t, dir, "thr.yaml", "server:\n  option_close_threshold: 1.5\n")
		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestExplicitZeroSurvivesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "zero.yaml", "store:\n  audit_enabled: false\n  path: \"\"\n")

	// Keys present in the file are never overwritten by defaults, even
	// when set to a zero value.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Store.AuditEnabled)
	assert.Empty(t, cfg.Store.Path)
}

func TestDumpMasksSecrets(t *testing.T) {
	cfg := &Config{Server: ServerConfig{SessionToken: "hunter2"}}
	out, err := Dump(cfg)
	require.NoError(t, err)
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "******")
}
