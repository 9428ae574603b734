package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/flagx"
	"github.com/CrisisCore-Systems/pain-tracker-sub013/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling.
// It relies on timex.Duration so JSON can specify intervals either as
// strings like "3s" or as integer nanoseconds. After parsing, values
// are copied into the runtime Config (which uses time.Duration).
type JsonConfig struct {
	DatabaseDSN          string         `json:"database_dsn"`
	RemoteEndpointAddr   string         `json:"remote_endpoint_addr"`
	RequestTimeout       timex.Duration `json:"request_timeout"`
	OnlineCheckInterval  timex.Duration `json:"online_check_interval"`
	DrainInterval        timex.Duration `json:"drain_interval"`
	AttemptTimeout       timex.Duration `json:"attempt_timeout"`
	KDFIterations        int            `json:"kdf_iterations"`
	BackoffBase          timex.Duration `json:"backoff_base"`
	BackoffCap           timex.Duration `json:"backoff_cap"`
	BackoffJitterPercent uint64         `json:"backoff_jitter_percent"`
	ManifestPath         string         `json:"manifest_path"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Behavior:
//   - Reads and unmarshals the JSON into JsonConfig.
//   - Copies set fields into the provided Config; zero values are skipped so
//     a partial file only overrides what it names.
//   - Panics on read or unmarshal errors (caller should recover if desired).
//
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.RemoteEndpointAddr != "" {
		cfg.RemoteEndpointAddr = jc.RemoteEndpointAddr
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.DrainInterval.Duration != 0 {
		cfg.DrainInterval = time.Duration(jc.DrainInterval.Duration)
	}
	if jc.AttemptTimeout.Duration != 0 {
		cfg.AttemptTimeout = time.Duration(jc.AttemptTimeout.Duration)
	}
	if jc.KDFIterations != 0 {
		cfg.KDFIterations = jc.KDFIterations
	}
	if jc.BackoffBase.Duration != 0 {
		cfg.BackoffBase = time.Duration(jc.BackoffBase.Duration)
	}
	if jc.BackoffCap.Duration != 0 {
		cfg.BackoffCap = time.Duration(jc.BackoffCap.Duration)
	}
	if jc.BackoffJitterPercent != 0 {
		cfg.BackoffJitterPercent = jc.BackoffJitterPercent
	}
	if jc.ManifestPath != "" {
		cfg.ManifestPath = jc.ManifestPath
	}
}
