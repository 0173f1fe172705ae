package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadListenConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadListenConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := DefaultListenConfig()
	if len(cfg.PlainPorts) != len(want.PlainPorts) || cfg.PlainPorts[0] != want.PlainPorts[0] {
		t.Fatalf("expected default plain ports, got %v", cfg.PlainPorts)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ports.json")
	cfg := ListenConfig{
		PlainPorts:     []int{2323, 4201},
		TLSPorts:       []int{4202},
		IdleTimeout:    5 * time.Minute,
		OutputCapBytes: 4096,
		LineMax:        7900,
		SBufMax:        2048,
	}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := LoadListenConfig(path)
	if err != nil {
		t.Fatalf("LoadListenConfig: %v", err)
	}
	if len(got.PlainPorts) != 2 || got.PlainPorts[0] != 2323 || got.PlainPorts[1] != 4201 {
		t.Fatalf("plain ports mismatch: %v", got.PlainPorts)
	}
	if len(got.TLSPorts) != 1 || got.TLSPorts[0] != 4202 {
		t.Fatalf("tls ports mismatch: %v", got.TLSPorts)
	}
	if got.IdleTimeout != 5*time.Minute {
		t.Fatalf("idle timeout mismatch: %v", got.IdleTimeout)
	}
}
