package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cache.MaxPacketsPerChannel != DefaultConfig().Cache.MaxPacketsPerChannel {
		t.Fatalf("expected default cache config when file is missing")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Cache.MaxPacketsPerChannel = 250
	cfg.Cache.ChannelBlacklist = []string{"LOG", "ACE"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Cache.MaxPacketsPerChannel != 250 {
		t.Fatalf("MaxPacketsPerChannel = %d, want 250", loaded.Cache.MaxPacketsPerChannel)
	}
	if len(loaded.Cache.ChannelBlacklist) != 2 {
		t.Fatalf("ChannelBlacklist = %v, want 2 entries", loaded.Cache.ChannelBlacklist)
	}
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("URTSCACHE_TEST_ADDRESS", "tcp://10.0.0.5:9000")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "service:\n  address: \"${URTSCACHE_TEST_ADDRESS}\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Service.Address != "tcp://10.0.0.5:9000" {
		t.Fatalf("Address = %q, want expanded env var", cfg.Service.Address)
	}
}

func TestValidateRejectsNonPositiveCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.MaxPacketsPerChannel = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero capacity")
	}
}
