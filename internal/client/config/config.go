// Package config handles configuration for the client component,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the ClipSync client agent.
//
// Fields:
//   - ServerEndpointAddr: base URL of the sync server (http://host:port).
//   - DeviceName / DeviceType: device identity sent in the auth handshake.
//   - DatabaseDSN: SQLite DSN for the local clip cache and outbox.
//   - MasterKey: 64 hex chars of cipher key material. Empty selects the
//     development fallback key, which is fatal when Production is set.
//   - Production: enables strict configuration checks.
//   - ConnectTimeout: bound on one connection attempt; hitting it counts as
//     a failed attempt and enters the backoff path.
type Config struct {
	ServerEndpointAddr string
	DeviceName         string
	DeviceType         string
	DatabaseDSN        string
	MasterKey          string
	Production         bool
	ConnectTimeout     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.DeviceName = "unnamed-device"
	c.DeviceType = "desktop"
	c.DatabaseDSN = "clipsync.db"
	c.MasterKey = ""
	c.Production = false
	c.ConnectTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
