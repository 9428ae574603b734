package config

import "time"

// Config holds runtime settings for the pain tracker client.
//
// Fields:
//   - DatabaseDSN: path of the local SQLite database file.
//   - RemoteEndpointAddr: base URL of the sync endpoint.
//   - RequestTimeout: per-request HTTP timeout.
//   - OnlineCheckInterval: how often the client probes endpoint reachability.
//   - DrainInterval: how often the queue re-checks for due items while online.
//   - AttemptTimeout: bound on a single sync attempt.
//   - KDFIterations: PBKDF2 iteration count used at key derivation.
//   - BackoffBase, BackoffCap, BackoffJitterPercent: retry backoff shape.
//   - ManifestPath: build-produced asset manifest consumed at startup.
type Config struct {
	DatabaseDSN          string
	RemoteEndpointAddr   string
	RequestTimeout       time.Duration
	OnlineCheckInterval  time.Duration
	DrainInterval        time.Duration
	AttemptTimeout       time.Duration
	KDFIterations        int
	BackoffBase          time.Duration
	BackoffCap           time.Duration
	BackoffJitterPercent uint64
	ManifestPath         string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "paintracker.db"
	c.RemoteEndpointAddr = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
	c.OnlineCheckInterval = 3 * time.Second
	c.DrainInterval = 30 * time.Second
	c.AttemptTimeout = 15 * time.Second
	c.KDFIterations = 200_000
	c.BackoffBase = 2 * time.Second
	c.BackoffCap = 5 * time.Minute
	c.BackoffJitterPercent = 10
	c.ManifestPath = "manifest.json"
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
