package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Dump renders the effective configuration, after include merging and
// defaults, as YAML. Secrets are masked.
func Dump(c *Config) (string, error) {
	cp := *c
	if cp.Server.SessionToken != "" {
		cp.Server.SessionToken = "******"
	}
	out, err := yaml.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("rendering config failed: %w", err)
	}
	return string(out), nil
}
