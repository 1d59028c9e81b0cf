package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"transcoder/codec"
	"transcoder/codec/rawpkt"
	"transcoder/decode"
	"transcoder/models"
)

func testStream() codec.StreamInfo {
	return codec.StreamInfo{
		Index:       0,
		Type:        codec.MediaTypeVideo,
		CodecName:   "rawpkt",
		Width:       32,
		Height:      24,
		PixelFormat: "gray8",
		FrameRate:   25,
	}
}

// writeStream encodes n synthetic frames into a rawpkt file.
func writeStream(t *testing.T, engine *rawpkt.Engine, path string, n int) {
	t.Helper()

	stream := testStream()
	enc, err := engine.NewEncoder(codec.EncoderParams{
		CodecName:   stream.CodecName,
		Width:       stream.Width,
		Height:      stream.Height,
		PixelFormat: stream.PixelFormat,
		FrameRate:   stream.FrameRate,
	})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	defer enc.Close()

	mux, err := engine.OpenMuxer(path, stream)
	if err != nil {
		t.Fatalf("OpenMuxer failed: %v", err)
	}

	drain := func() {
		for {
			pkt, err := enc.ReceivePacket()
			if errors.Is(err, codec.ErrAgain) || errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				t.Fatalf("ReceivePacket failed: %v", err)
			}
			if err := mux.WritePacket(pkt); err != nil {
				t.Fatalf("WritePacket failed: %v", err)
			}
		}
	}

	for i := 0; i < n; i++ {
		frame := &codec.Frame{
			Width:       stream.Width,
			Height:      stream.Height,
			PixelFormat: stream.PixelFormat,
			PTS:         int64(i),
			Data:        []byte(fmt.Sprintf("frame-%06d", i)),
		}
		if err := enc.SendFrame(frame); err != nil {
			t.Fatalf("SendFrame %d failed: %v", i, err)
		}
		drain()
	}
	if err := enc.SendFrame(nil); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	drain()

	if err := mux.Close(); err != nil {
		t.Fatalf("Muxer close failed: %v", err)
	}
}

func newTestPool(t *testing.T, engine *rawpkt.Engine, input, workDir string, workers, chunkFrames int) *Pool {
	t.Helper()
	source, err := decode.Open(engine, input, workers*chunkFrames)
	if err != nil {
		t.Fatalf("decode.Open failed: %v", err)
	}

	pool, err := NewPool(engine, source, zerolog.Nop(), Config{
		Workers:     workers,
		ChunkFrames: chunkFrames,
		WorkDir:     workDir,
		Interval:    10 * time.Millisecond,
		Quiet:       true,
	})
	if err != nil {
		source.Close()
		t.Fatalf("NewPool failed: %v", err)
	}
	return pool
}

func TestNewPoolValidation(t *testing.T) {
	engine := rawpkt.NewEngine()
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	writeStream(t, engine, input, 10)

	source, err := decode.Open(engine, input, 100)
	if err != nil {
		t.Fatalf("decode.Open failed: %v", err)
	}
	defer source.Close()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"Zero workers", Config{Workers: 0, ChunkFrames: 25}},
		{"Zero chunk frames", Config{Workers: 4, ChunkFrames: 0}},
		{"Slot pool mismatch", Config{Workers: 4, ChunkFrames: 30}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPool(engine, source, zerolog.Nop(), tt.cfg); err == nil {
				t.Error("Expected error but got nil")
			}
		})
	}
}

func TestPoolTranscodesAllChunks(t *testing.T) {
	const (
		totalFrames = 200
		chunkFrames = 25
		workers     = 4
		wantChunks  = 8
	)

	engine := rawpkt.NewEngine(rawpkt.WithGroupSize(5))
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	workDir := filepath.Join(dir, "work")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	writeStream(t, engine, input, totalFrames)

	pool := newTestPool(t, engine, input, workDir, workers, chunkFrames)
	results, err := pool.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != wantChunks {
		t.Fatalf("Got %d chunk results; want %d", len(results), wantChunks)
	}
	if pool.ChunkCount() != wantChunks {
		t.Errorf("ChunkCount = %d; want %d", pool.ChunkCount(), wantChunks)
	}
	if pool.FramesCompleted() != totalFrames {
		t.Errorf("FramesCompleted = %d; want %d", pool.FramesCompleted(), totalFrames)
	}

	// Chunk ids must be the contiguous range [0, wantChunks), each result
	// successful with a full chunk of frames.
	for i, result := range results {
		if result.ChunkID != uint(i) {
			t.Errorf("Result %d has chunk id %d; want %d", i, result.ChunkID, i)
		}
		if !result.Success {
			t.Errorf("Chunk %d failed: %v", result.ChunkID, result.Error)
		}
		if result.FrameCount != chunkFrames {
			t.Errorf("Chunk %d has %d frames; want %d", result.ChunkID, result.FrameCount, chunkFrames)
		}
		if _, err := os.Stat(result.OutputPath); err != nil {
			t.Errorf("Chunk %d output missing: %v", result.ChunkID, err)
		}
		if result.Chunk == nil {
			t.Errorf("Chunk %d result carries no chunk record", result.ChunkID)
			continue
		}
		if err := result.Chunk.Validate(); err != nil {
			t.Errorf("Chunk %d record invalid: %v", result.ChunkID, err)
		}
		if result.Chunk.ChunkID != result.ChunkID ||
			result.Chunk.OutputPath != result.OutputPath ||
			result.Chunk.FrameCount != result.FrameCount {
			t.Errorf("Chunk %d record = %+v; does not match result", result.ChunkID, result.Chunk)
		}
	}
}

func TestPoolOutputTimestampsMonotonic(t *testing.T) {
	// Chunk outputs read back-to-back in chunk-id order must carry globally
	// non-decreasing timestamps, so a transcoded file can be fed straight
	// into the segment verify workflow.
	const (
		totalFrames = 75
		chunkFrames = 15
		workers     = 5
	)

	engine := rawpkt.NewEngine(rawpkt.WithGroupSize(5))
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	writeStream(t, engine, input, totalFrames)

	pool := newTestPool(t, engine, input, dir, workers, chunkFrames)
	results, err := pool.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	lastDTS := int64(-1)
	packets := 0
	for _, result := range results {
		demux, err := engine.OpenDemuxer(result.OutputPath)
		if err != nil {
			t.Fatalf("Opening chunk %d failed: %v", result.ChunkID, err)
		}
		var pkt codec.Packet
		for {
			err := demux.ReadPacket(&pkt)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("Reading chunk %d failed: %v", result.ChunkID, err)
			}
			if pkt.DTS <= lastDTS {
				t.Fatalf("Chunk %d packet %d has dts %d after %d; timestamps must increase across chunks",
					result.ChunkID, packets, pkt.DTS, lastDTS)
			}
			lastDTS = pkt.DTS
			packets++
		}
		demux.Close()
	}
	if packets != totalFrames {
		t.Errorf("Read %d packets across chunks; want %d", packets, totalFrames)
	}
}

func TestPoolOutputPreservesFrameOrder(t *testing.T) {
	// Decoding the chunk outputs in chunk-id order must reproduce the
	// original frame sequence, regardless of which worker wrote which chunk.
	const (
		totalFrames = 60
		chunkFrames = 10
		workers     = 3
	)

	engine := rawpkt.NewEngine(rawpkt.WithGroupSize(5))
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	writeStream(t, engine, input, totalFrames)

	pool := newTestPool(t, engine, input, dir, workers, chunkFrames)
	results, err := pool.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	next := 0
	for _, result := range results {
		src, err := decode.Open(engine, result.OutputPath, chunkFrames)
		if err != nil {
			t.Fatalf("Opening chunk %d failed: %v", result.ChunkID, err)
		}
		for {
			n, err := src.DecodeInto(0, chunkFrames)
			if err != nil {
				t.Fatalf("Decoding chunk %d failed: %v", result.ChunkID, err)
			}
			if n == 0 {
				break
			}
			for i := 0; i < n; i++ {
				want := fmt.Sprintf("frame-%06d", next)
				if got := string(src.Frame(i).Data); got != want {
					t.Fatalf("Frame %d = %q; want %q", next, got, want)
				}
				next++
			}
		}
		src.Close()
	}
	if next != totalFrames {
		t.Errorf("Decoded %d frames across chunks; want %d", next, totalFrames)
	}
}

func TestPoolShortFinalChunk(t *testing.T) {
	// 53 frames with 10-frame chunks: five full chunks plus a 3-frame tail.
	engine := rawpkt.NewEngine(rawpkt.WithGroupSize(5))
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	writeStream(t, engine, input, 53)

	pool := newTestPool(t, engine, input, dir, 2, 10)
	results, err := pool.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(results) != 6 {
		t.Fatalf("Got %d chunks; want 6", len(results))
	}
	if last := results[len(results)-1]; last.FrameCount != 3 {
		t.Errorf("Final chunk has %d frames; want 3", last.FrameCount)
	}
	if pool.FramesCompleted() != 53 {
		t.Errorf("FramesCompleted = %d; want 53", pool.FramesCompleted())
	}
}

func TestPoolPoisonedOnDecodeError(t *testing.T) {
	// A corrupt record mid-stream fails the demuxer read; the pipeline must
	// stop assigning chunk ids and surface the error.
	engine := rawpkt.NewEngine(rawpkt.WithGroupSize(5))
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	writeStream(t, engine, input, 20)

	f, err := os.OpenFile(input, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if _, err := f.Write([]byte("GARBAGE RECORD")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	f.Close()

	pool := newTestPool(t, engine, input, dir, 2, 10)
	results, err := pool.Run(context.Background())
	if err == nil {
		t.Fatal("Expected decode error, got nil")
	}

	// Whatever chunks completed before the poison are still valid and
	// contiguous from 0.
	for i, result := range results {
		if result.ChunkID != uint(i) {
			t.Errorf("Result %d has chunk id %d; want %d", i, result.ChunkID, i)
		}
	}
}

func TestPoolCancelledContext(t *testing.T) {
	engine := rawpkt.NewEngine(rawpkt.WithGroupSize(5))
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	writeStream(t, engine, input, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := newTestPool(t, engine, input, dir, 2, 10)
	if _, err := pool.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestChunkFileNaming(t *testing.T) {
	engine := rawpkt.NewEngine(rawpkt.WithGroupSize(5))
	dir := t.TempDir()
	input := filepath.Join(dir, "input.rpv")
	writeStream(t, engine, input, 20)

	pool := newTestPool(t, engine, input, dir, 2, 10)
	results, err := pool.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, result := range results {
		want := filepath.Join(dir, models.ChunkFileName(result.ChunkID))
		if result.OutputPath != want {
			t.Errorf("Chunk %d path = %s; want %s", result.ChunkID, result.OutputPath, want)
		}
	}
}
