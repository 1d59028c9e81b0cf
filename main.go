package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"transcoder/codec/rawpkt"
	"transcoder/concatenator"
	"transcoder/config"
	"transcoder/decode"
	"transcoder/pipeline"
	"transcoder/segment"
)

func main() {
	// A crash in a worker must not die silently: print one diagnostic line
	// and exit non-zero so callers can tell a crash from a clean failure.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n❌ Internal error: %v\n", r)
			os.Exit(2)
		}
	}()

	// Step 1: Load configuration (CLI flags > config file > defaults)
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Step 2: Handle dry-run mode
	if cfg.DryRun {
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("                      DRY RUN MODE")
		fmt.Println("═══════════════════════════════════════════════════════════")
		cfg.PrintConfig()
		fmt.Println("\n✓ Configuration is valid. No transcoding will be performed.")
		return
	}

	logger := newLogger(cfg)

	// Step 3: Set up context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 4: Register signal handlers (Ctrl+C, SIGTERM)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\n⚠️  Interrupt received, cleaning up...")
		cancel()
	}()

	// Step 5: Run the selected workflow
	engine := rawpkt.NewEngine()
	switch cfg.Mode {
	case "verify":
		err = runVerify(ctx, cfg, engine, logger)
	default:
		err = runTranscode(ctx, cfg, engine, logger)
	}
	if err != nil {
		// Check if it was a cancellation
		if ctx.Err() == context.Canceled {
			fmt.Println("\n⚠️  Run cancelled by user")
			os.Exit(130) // Standard exit code for SIGINT
		}
		fmt.Fprintf(os.Stderr, "\n❌ Pipeline error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Completed successfully!")
}

// newLogger builds the process logger. Verbose enables debug-level output;
// quiet drops everything below warnings so only the final result is shown.
func newLogger(cfg *config.Config) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	if cfg.Quiet {
		level = zerolog.WarnLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// runTranscode executes the chunked parallel transcode workflow
func runTranscode(ctx context.Context, cfg *config.Config, engine *rawpkt.Engine, logger zerolog.Logger) error {
	startTime := time.Now()

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                 TRANSCODER - PIPELINE START                    ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Printf("Input:  %s\n", cfg.Input)
	fmt.Printf("Output: %s\n", cfg.Output)
	fmt.Printf("Mode:   %s\n", cfg.Mode)
	fmt.Println()

	// Create working directory for intermediate chunk files
	workDir := cfg.WorkDir
	if workDir == "" {
		tempDir, err := os.MkdirTemp("", "transcoder-*")
		if err != nil {
			return fmt.Errorf("failed to create temp directory: %w", err)
		}
		workDir = tempDir
	} else if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer func() {
		if cfg.CleanupChunks {
			os.RemoveAll(workDir)
		}
	}()

	// PHASE 1: Source Analysis
	fmt.Println("📊 Phase 1: Source Analysis")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	slotCount := cfg.Workers * cfg.ChunkFrames
	source, err := decode.Open(engine, cfg.Input, slotCount)
	if err != nil {
		return fmt.Errorf("source analysis failed: %w", err)
	}

	stream := source.Stream()
	fmt.Printf("  Codec:       %s\n", stream.CodecName)
	fmt.Printf("  Resolution:  %dx%d\n", stream.Width, stream.Height)
	fmt.Printf("  Pixel Fmt:   %s\n", stream.PixelFormat)
	if stream.FrameRate > 0 {
		fmt.Printf("  Frame Rate:  %d fps\n", stream.FrameRate)
	}
	fmt.Println()

	// PHASE 2: Parallel Transcode
	fmt.Println("🎬 Phase 2: Parallel Transcode")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Workers:     %d\n", cfg.Workers)
	fmt.Printf("  Chunk Size:  %d frames\n", cfg.ChunkFrames)
	fmt.Println()

	pool, err := pipeline.NewPool(engine, source, logger, pipeline.Config{
		Workers:     cfg.Workers,
		ChunkFrames: cfg.ChunkFrames,
		WorkDir:     workDir,
		Quiet:       cfg.Quiet,
	})
	if err != nil {
		source.Close()
		return fmt.Errorf("failed to build worker pool: %w", err)
	}

	results, err := pool.Run(ctx)
	if err != nil {
		return fmt.Errorf("transcode failed: %w", err)
	}
	fmt.Println()

	// PHASE 3: Concatenation
	fmt.Println("🔗 Phase 3: Concatenation")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Joining %d chunks...", len(results))

	concat := concatenator.NewConcatenator(cfg.StrictMode)
	if err := concat.Concatenate(results, cfg.Output); err != nil {
		fmt.Println()
		return fmt.Errorf("concatenation failed: %w", err)
	}
	fmt.Printf("\r  ✓ Joined %d chunks into %s      \n", len(results), cfg.Output)
	fmt.Println()

	// PHASE 4: Final Report
	elapsed := time.Since(startTime)
	framesCompleted := pool.FramesCompleted()

	outputInfo, err := os.Stat(cfg.Output)
	outputSize := int64(0)
	if err == nil {
		outputSize = outputInfo.Size()
	}

	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Println("                     ✅ SUCCESS!")
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Output:      %s\n", cfg.Output)
	fmt.Printf("  Size:        %.2f MB\n", float64(outputSize)/(1024*1024))
	fmt.Printf("  Frames:      %d\n", framesCompleted)
	fmt.Printf("  Chunks:      %d\n", pool.ChunkCount())
	fmt.Printf("  Total time:  %.2fs\n", elapsed.Seconds())
	if elapsed.Seconds() > 0 {
		fmt.Printf("  Throughput:  %.1f fps\n", float64(framesCompleted)/elapsed.Seconds())
	}
	fmt.Println("═══════════════════════════════════════════════════════════")

	return nil
}

// runVerify executes the segment integrity workflow: split the input into
// fixed-size segments, validate the timestamp table, analyze each segment
// for discarded packets, and splice broken segments onto their predecessor.
// Cancellation is honored between phases.
func runVerify(ctx context.Context, cfg *config.Config, engine *rawpkt.Engine, logger zerolog.Logger) error {
	startTime := time.Now()

	fmt.Println("╔════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                 TRANSCODER - SEGMENT VERIFY                    ║")
	fmt.Println("╚════════════════════════════════════════════════════════════════╝")
	fmt.Printf("Input:    %s\n", cfg.Input)
	fmt.Printf("Segments: %s\n", cfg.Output)
	fmt.Println()

	if err := os.MkdirAll(cfg.Output, 0755); err != nil {
		return fmt.Errorf("failed to create segment directory: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// PHASE 1: Splitting
	fmt.Println("✂️  Phase 1: Splitting")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	split, err := segment.Split(engine, cfg.Input, cfg.Output, cfg.Verify.PacketsPerSegment)
	if err != nil {
		return fmt.Errorf("splitting failed: %w", err)
	}
	fmt.Printf("  Created:    %d segments (%d packets each)\n", len(split.SegmentPaths), cfg.Verify.PacketsPerSegment)
	fmt.Printf("  Packets:    %d total\n", len(split.Timestamps))
	fmt.Println()

	// PHASE 2: Timestamp Validation
	fmt.Println("🕑 Phase 2: Timestamp Validation")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	if err := segment.ValidateTimestamps(split.Timestamps); err != nil {
		return fmt.Errorf("timestamp validation failed: %w", err)
	}
	fmt.Println("  ✓ Decode timestamps are monotonic")
	fmt.Println()
	if err := ctx.Err(); err != nil {
		return err
	}

	// PHASE 3: Integrity Analysis
	fmt.Println("🔍 Phase 3: Integrity Analysis")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	report, err := segment.Analyze(engine, split.SegmentPaths, logger)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	fmt.Printf("  Segments:   %d analyzed\n", len(report.Descriptors))
	fmt.Printf("  Frames:     %d decodable\n", report.TotalFrames())
	fmt.Printf("  Broken:     %d\n", len(report.BrokenIndices))
	fmt.Println()

	// PHASE 4: Repair
	repaired := 0
	if len(report.BrokenIndices) > 0 && cfg.Verify.Repair {
		fmt.Println("🔧 Phase 4: Repair")
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		plans, err := segment.PlanRepairs(report, cfg.Output)
		if err != nil {
			return fmt.Errorf("repair planning failed: %w", err)
		}
		for _, plan := range plans {
			if err := ctx.Err(); err != nil {
				return err
			}
			desc, err := segment.Execute(engine, plan, logger)
			if err != nil {
				return fmt.Errorf("splice %d-%d failed: %w", plan.Start, plan.End, err)
			}
			fmt.Printf("  ✓ Spliced segments %d-%d (%d frames) -> %s\n",
				plan.Start, plan.End, desc.Frames, filepath.Base(plan.OutputPath))
			repaired += plan.End - plan.Start
		}
		fmt.Println()
	}

	// Final Report
	elapsed := time.Since(startTime)
	fmt.Println("═══════════════════════════════════════════════════════════")
	if len(report.BrokenIndices) == 0 {
		fmt.Println("                ✅ ALL SEGMENTS INTACT")
	} else if cfg.Verify.Repair {
		fmt.Println("                ✅ BROKEN SEGMENTS REPAIRED")
	} else {
		fmt.Println("                ⚠️  BROKEN SEGMENTS FOUND")
	}
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Segments:    %d\n", len(report.Descriptors))
	fmt.Printf("  Broken:      %d\n", len(report.BrokenIndices))
	if repaired > 0 {
		fmt.Printf("  Repaired:    %d\n", repaired)
	}
	fmt.Printf("  Total time:  %.2fs\n", elapsed.Seconds())
	fmt.Println("═══════════════════════════════════════════════════════════")

	if len(report.BrokenIndices) > 0 && !cfg.Verify.Repair {
		return fmt.Errorf("%d broken segments found (run with --repair to splice)", len(report.BrokenIndices))
	}
	return nil
}
