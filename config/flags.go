package config

import (
	"flag"
	"fmt"
	"os"
)

// MergeFromFlags parses command-line flags and overrides config values
func (c *Config) MergeFromFlags() error {
	// Define flags
	fs := flag.NewFlagSet("transcoder", flag.ContinueOnError)
	fs.Usage = printUsage

	// Required fields
	input := fs.String("input", "", "Input video file path (required)")
	output := fs.String("output", "", "Output file path (required)")

	// Config file override (handled by LoadConfig before this function is called)
	_ = fs.String("config", "", "Path to config file (default: search standard locations)")

	// Mode shortcuts
	verify := fs.Bool("verify", false, "Run segment integrity verification instead of transcoding")

	// Execution settings
	workers := fs.Int("workers", -1, "Number of parallel workers (0 = auto-detect, default: from config)")
	chunkFrames := fs.Int("chunk-frames", -1, "Frames per chunk (default: from config)")
	workDir := fs.String("work-dir", "", "Directory for intermediate chunk files (default: from config)")
	mode := fs.String("mode", "", "Run mode: transcode, verify (default: from config)")

	// Verify settings
	segmentPackets := fs.Int("segment-packets", -1, "Packets per segment in verify mode (default: from config)")
	repair := fs.Bool("repair", false, "Splice broken segments after analysis")
	noRepair := fs.Bool("no-repair", false, "Report broken segments without repairing")

	// Behavioral flags
	strict := fs.Bool("strict", false, "Enable strict mode (refuse gaps in chunk sequence)")
	noStrict := fs.Bool("no-strict", false, "Disable strict mode (concatenate whatever chunks exist)")
	cleanup := fs.Bool("cleanup", false, "Clean up temporary chunk files after joining")
	noCleanup := fs.Bool("no-cleanup", false, "Keep temporary chunk files after joining")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	quiet := fs.Bool("quiet", false, "Suppress the live progress line")
	dryRun := fs.Bool("dry-run", false, "Show configuration without transcoding")

	// Parse flags
	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	// Note: Config file loading is handled by LoadConfig() before this function
	// is called. The -config flag is only used to specify which file to load.

	// Override with flag values (only if explicitly set)
	if *input != "" {
		c.Input = *input
	}
	if *output != "" {
		c.Output = *output
	}

	// Handle mode shortcuts
	if *verify {
		c.Mode = "verify"
	} else if *mode != "" {
		c.Mode = *mode
	}

	// Execution settings (only override if explicitly set, -1 means not set)
	if *workers >= 0 {
		c.Workers = *workers
	}
	if *chunkFrames > 0 {
		c.ChunkFrames = *chunkFrames
	}
	if *workDir != "" {
		c.WorkDir = *workDir
	}

	// Verify settings
	if *segmentPackets > 0 {
		c.Verify.PacketsPerSegment = *segmentPackets
	}
	if *repair {
		c.Verify.Repair = true
	}
	if *noRepair {
		c.Verify.Repair = false
	}

	// Behavioral flags
	if *strict {
		c.StrictMode = true
	}
	if *noStrict {
		c.StrictMode = false
	}
	if *cleanup {
		c.CleanupChunks = true
	}
	if *noCleanup {
		c.CleanupChunks = false
	}
	if *verbose {
		c.Verbose = true
	}
	if *quiet {
		c.Quiet = true
	}
	if *dryRun {
		c.DryRun = true
	}

	return nil
}

// printUsage prints help text
func printUsage() {
	fmt.Fprintf(os.Stderr, `transcoder - Chunked parallel video transcoding

USAGE:
  transcoder -input FILE -output FILE [OPTIONS]

REQUIRED FLAGS:
  -input string
        Input video file path (required)
  -output string
        Output file path (required; in verify mode, the directory for segments)

CONFIGURATION:
  -config string
        Path to config file (default: search ./transcoder.yaml, ~/.transcoder/config.yaml, /etc/transcoder/config.yaml)

RUN MODE:
  --verify
        Split the input into segments, analyze their integrity, and
        repair broken segments by splicing
  -mode string
        Run mode: transcode, verify

EXECUTION SETTINGS:
  -workers int
        Number of parallel workers (0 = auto-detect CPU count) (default: 0)
  -chunk-frames int
        Frames per chunk (default: 120)
  -work-dir string
        Directory for intermediate chunk files (default: created next to output)

VERIFY SETTINGS:
  -segment-packets int
        Packets per segment in verify mode (default: 50)
  --repair
        Splice broken segments onto their predecessor (default: true)
  --no-repair
        Report broken segments without repairing

BEHAVIORAL FLAGS:
  --strict
        Enable strict mode: refuse gaps in the chunk sequence (default: true)
  --no-strict
        Disable strict mode: concatenate whatever chunks exist
  --cleanup
        Clean up temporary chunk files after joining (default: true)
  --no-cleanup
        Keep temporary chunk files after joining
  --verbose
        Enable verbose logging
  --quiet
        Suppress the live progress line
  --dry-run
        Show effective configuration without transcoding

EXAMPLES:
  # Basic usage (uses defaults from config file)
  transcoder -input movie.rpv -output joined.rpv

  # 8 workers, 60-frame chunks
  transcoder -input movie.rpv -output joined.rpv -workers 8 -chunk-frames 60

  # Verify segment integrity, repairing broken segments
  transcoder -input movie.rpv -output segments/ --verify

  # Show effective configuration
  transcoder -input movie.rpv -output joined.rpv --dry-run

  # Use custom config file
  transcoder -config custom.yaml -input movie.rpv -output joined.rpv

CONFIGURATION FILES:
  Config files are searched in order:
    1. ./transcoder.yaml
    2. ~/.transcoder/config.yaml
    3. /etc/transcoder/config.yaml

  Priority: CLI flags > Config file > Defaults

`)
}

// PrintConfig prints the effective configuration
func (c *Config) PrintConfig() {
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("                 Effective Configuration                  ")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("Input:          %s\n", c.Input)
	fmt.Printf("Output:         %s\n", c.Output)
	fmt.Printf("Mode:           %s\n", c.Mode)
	fmt.Printf("Workers:        %d\n", c.Workers)
	fmt.Printf("Chunk Frames:   %d\n", c.ChunkFrames)
	if c.WorkDir != "" {
		fmt.Printf("Work Dir:       %s\n", c.WorkDir)
	}

	if c.Mode == "verify" {
		fmt.Println("\nVerify Settings:")
		fmt.Printf("  Segment Size:  %d packets\n", c.Verify.PacketsPerSegment)
		fmt.Printf("  Repair:        %v\n", c.Verify.Repair)
	}

	fmt.Println("\nBehavioral Flags:")
	fmt.Printf("  Strict Mode:   %v\n", c.StrictMode)
	fmt.Printf("  Cleanup:       %v\n", c.CleanupChunks)
	fmt.Printf("  Verbose:       %v\n", c.Verbose)
	fmt.Printf("  Quiet:         %v\n", c.Quiet)
	fmt.Println("═══════════════════════════════════════════════════════════")
}
