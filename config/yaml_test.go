package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "transcoder.yaml")

	yaml := `
input: /data/in.rpv
output: /data/out.rpv
chunk_frames: 60
workers: 4
mode: verify
verify:
  packets_per_segment: 25
  repair: false
strict_mode: false
quiet: true
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if cfg.Input != "/data/in.rpv" {
		t.Errorf("Expected input '/data/in.rpv', got '%s'", cfg.Input)
	}
	if cfg.ChunkFrames != 60 {
		t.Errorf("Expected chunk_frames 60, got %d", cfg.ChunkFrames)
	}
	if cfg.Workers != 4 {
		t.Errorf("Expected workers 4, got %d", cfg.Workers)
	}
	if cfg.Mode != "verify" {
		t.Errorf("Expected mode 'verify', got '%s'", cfg.Mode)
	}
	if cfg.Verify.PacketsPerSegment != 25 {
		t.Errorf("Expected packets_per_segment 25, got %d", cfg.Verify.PacketsPerSegment)
	}
	if cfg.Verify.Repair {
		t.Error("Expected repair false from file")
	}
	if cfg.StrictMode {
		t.Error("Expected strict_mode false from file")
	}
	if !cfg.Quiet {
		t.Error("Expected quiet true from file")
	}

	// Fields absent from the file keep their defaults.
	if cfg.CleanupChunks != DefaultConfig().CleanupChunks {
		t.Error("Expected cleanup_chunks to keep its default")
	}
}

func TestLoadConfigFileMissing(t *testing.T) {
	if _, err := LoadConfigFile("/nonexistent/transcoder.yaml"); err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}

func TestLoadConfigFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("input: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := LoadConfigFile(path); err == nil {
		t.Error("Expected error for invalid YAML, got nil")
	}
}

func TestSaveConfigFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "transcoder.yaml")

	cfg := DefaultConfig()
	cfg.Input = "/data/in.rpv"
	cfg.Output = "/data/out.rpv"
	cfg.Workers = 8

	if err := SaveConfigFile(cfg, path); err != nil {
		t.Fatalf("SaveConfigFile failed: %v", err)
	}

	loaded, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}
	if loaded.Input != cfg.Input || loaded.Workers != cfg.Workers {
		t.Errorf("Round trip mismatch: got input=%s workers=%d", loaded.Input, loaded.Workers)
	}
}
