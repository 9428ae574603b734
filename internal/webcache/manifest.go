// Package webcache intercepts outbound HTTP requests for static assets and
// the app shell, answering from a versioned local cache so the application
// keeps rendering without a network. Assets are cache-first and immutable for
// the lifetime of a manifest version; the entry document is network-first
// with a cached copy as fallback and an embedded offline page as the last
// resort. Mutating requests are never cached.
package webcache

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Manifest describes one complete generation of cacheable static assets.
// It is produced by the build and consumed at startup; Version tags every
// cache entry so a new activation can sweep the previous generation in one
// pass.
type Manifest struct {
	Version string   `json:"version"`
	Assets  []string `json:"assets"`
}

// LoadManifest reads a build-produced manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if m.Version == "" {
		return fmt.Errorf("manifest has no version")
	}
	for _, a := range m.Assets {
		if !strings.HasPrefix(a, "/") {
			return fmt.Errorf("asset path %q is not absolute", a)
		}
	}
	return nil
}

func (m *Manifest) assetSet() map[string]struct{} {
	set := make(map[string]struct{}, len(m.Assets))
	for _, a := range m.Assets {
		set[a] = struct{}{}
	}
	return set
}
