// Package config loads the connection core's own JSON configuration:
// the listen-port sets, timeouts and helper paths. Application-domain
// configuration (menus, doors, message networks) lives outside the core
// and is not this package's concern.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ListenConfig is the connection core's runtime configuration. It is
// hot-reloadable: SetupPorts is expected to diff a previous ListenConfig
// against a freshly loaded one and converge the live listener set.
type ListenConfig struct {
	// PlainPorts are TCP ports accepting unencrypted Telnet connections.
	PlainPorts []int `json:"plain_ports"`
	// TLSPorts are TCP ports requiring a TLS handshake before Telnet
	// negotiation begins.
	TLSPorts []int `json:"tls_ports"`

	// IdleTimeout disconnects a descriptor after this long without input,
	// subject to the idle-eligibility policy of an external collaborator.
	IdleTimeout time.Duration `json:"idle_timeout"`

	// OutputCapBytes bounds a descriptor's output chain; bytes queued
	// beyond the cap are dropped and counted in OutputLost. Zero means
	// unbounded (not recommended in production).
	OutputCapBytes int `json:"output_cap_bytes"`

	// LineMax bounds a single input line (raw_input), mirroring LBUF
	// minus header overhead in the legacy design.
	LineMax int `json:"line_max"`

	// SBufMax bounds a Telnet sub-option payload.
	SBufMax int `json:"sbuf_max"`

	// ResolverHelperPath is the path to the reverse-DNS/ident helper
	// binary (bin/slave in the legacy layout).
	ResolverHelperPath string `json:"resolver_helper_path"`

	// StubHelperPath is the path to the generic module RPC helper binary
	// (bin/stubslave in the legacy layout).
	StubHelperPath string `json:"stub_helper_path"`

	// UseResolver enables the reverse-DNS/ident helper for new
	// connections.
	UseResolver bool `json:"use_resolver"`

	// TLSCertFile / TLSKeyFile configure the TLS listener set and the
	// STARTTLS upgrade path.
	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`
}

// DefaultListenConfig returns conservative defaults matching the legacy
// design's constants (LBUF-derived LINE_MAX, a generous SBUF_MAX).
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		PlainPorts:     []int{4201},
		TLSPorts:       nil,
		IdleTimeout:    60 * time.Minute,
		OutputCapBytes: 1 << 20, // 1 MiB
		LineMax:        8000 - 100,
		SBufMax:        4096,
		UseResolver:    false,
	}
}

// LoadListenConfig reads ports.json (or the given path) from a config
// directory. A missing file is not an error: defaults are returned so a
// fresh checkout can start without any config present.
func LoadListenConfig(path string) (ListenConfig, error) {
	cfg := DefaultListenConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config back to disk as indented JSON, creating the
// parent directory if needed.
func (c ListenConfig) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
