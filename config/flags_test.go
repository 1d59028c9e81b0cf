package config

import (
	"os"
	"testing"
)

// withArgs swaps os.Args for the duration of one flag-merge call.
func withArgs(t *testing.T, args ...string) {
	t.Helper()
	old := os.Args
	os.Args = append([]string{"transcoder"}, args...)
	t.Cleanup(func() { os.Args = old })
}

func TestMergeFromFlagsOverrides(t *testing.T) {
	withArgs(t,
		"-input", "/data/in.rpv",
		"-output", "/data/out.rpv",
		"-workers", "3",
		"-chunk-frames", "40",
		"-work-dir", "/tmp/chunks",
		"--no-strict",
		"--no-cleanup",
		"--verbose",
		"--quiet",
	)

	cfg := DefaultConfig()
	if err := cfg.MergeFromFlags(); err != nil {
		t.Fatalf("MergeFromFlags failed: %v", err)
	}

	if cfg.Input != "/data/in.rpv" {
		t.Errorf("Expected input '/data/in.rpv', got '%s'", cfg.Input)
	}
	if cfg.Output != "/data/out.rpv" {
		t.Errorf("Expected output '/data/out.rpv', got '%s'", cfg.Output)
	}
	if cfg.Workers != 3 {
		t.Errorf("Expected workers 3, got %d", cfg.Workers)
	}
	if cfg.ChunkFrames != 40 {
		t.Errorf("Expected chunk frames 40, got %d", cfg.ChunkFrames)
	}
	if cfg.WorkDir != "/tmp/chunks" {
		t.Errorf("Expected work dir '/tmp/chunks', got '%s'", cfg.WorkDir)
	}
	if cfg.StrictMode {
		t.Error("Expected --no-strict to disable strict mode")
	}
	if cfg.CleanupChunks {
		t.Error("Expected --no-cleanup to disable cleanup")
	}
	if !cfg.Verbose {
		t.Error("Expected --verbose to enable verbose")
	}
	if !cfg.Quiet {
		t.Error("Expected --quiet to enable quiet")
	}
}

func TestMergeFromFlagsVerifyShortcut(t *testing.T) {
	withArgs(t, "--verify", "-segment-packets", "30", "--no-repair")

	cfg := DefaultConfig()
	if err := cfg.MergeFromFlags(); err != nil {
		t.Fatalf("MergeFromFlags failed: %v", err)
	}

	if cfg.Mode != "verify" {
		t.Errorf("Expected mode 'verify', got '%s'", cfg.Mode)
	}
	if cfg.Verify.PacketsPerSegment != 30 {
		t.Errorf("Expected packets per segment 30, got %d", cfg.Verify.PacketsPerSegment)
	}
	if cfg.Verify.Repair {
		t.Error("Expected --no-repair to disable repair")
	}
}

func TestMergeFromFlagsDefaultsUntouched(t *testing.T) {
	withArgs(t)

	cfg := DefaultConfig()
	if err := cfg.MergeFromFlags(); err != nil {
		t.Fatalf("MergeFromFlags failed: %v", err)
	}

	def := DefaultConfig()
	if cfg.Mode != def.Mode || cfg.ChunkFrames != def.ChunkFrames || cfg.Workers != def.Workers {
		t.Errorf("Flags without arguments changed defaults: %+v", cfg)
	}
	if cfg.StrictMode != def.StrictMode || cfg.CleanupChunks != def.CleanupChunks {
		t.Errorf("Boolean defaults changed without flags: %+v", cfg)
	}
}
