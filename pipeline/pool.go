// Package pipeline implements the chunked parallel transcode scheduler: a
// fixed pool of workers sharing one decode source under a single decode-turn
// lock, encoding their chunks concurrently, and a progress monitor observing
// throughput from the side.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"transcoder/codec"
	"transcoder/decode"
	"transcoder/models"
)

// Config holds the knobs for one pipeline run.
type Config struct {
	Workers     int           // fixed worker count, no dynamic spawning
	ChunkFrames int           // frames per chunk
	WorkDir     string        // directory receiving chunk-<id>.rpv outputs
	Interval    time.Duration // monitor wake cadence; default one second
	Quiet       bool          // suppress the in-place status line
}

// Pool owns all shared mutable state of one run. Nothing here is a package
// global; the pool is created per run and handed to workers and the
// monitor by reference.
type Pool struct {
	cfg    Config
	engine codec.MuxEngine
	source *decode.Source
	params codec.EncoderParams
	logger zerolog.Logger

	// decodeMu is the decode-turn lock: it guards the decode source, the
	// chunk-id counter and the poisoned flag. It is held for one
	// DecodeInto call plus id assignment, never across encoding.
	decodeMu    sync.Mutex
	nextChunkID uint
	poisoned    bool

	framesCompleted atomic.Int64
	finished        []atomic.Bool
	wake            chan struct{} // monitor early-wake signal, capacity 1

	resultsMu sync.Mutex
	results   []*models.EncoderResult

	start time.Time
}

// NewPool validates the configuration against the source's slot pool and
// builds the shared state for one run.
//
// The slot pool must hold exactly ChunkFrames×Workers frames: worker w owns
// slots [w·ChunkFrames, (w+1)·ChunkFrames) for the whole run, so no two
// workers ever touch the same slot.
func NewPool(engine codec.MuxEngine, source *decode.Source, logger zerolog.Logger, cfg Config) (*Pool, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.Workers)
	}
	if cfg.ChunkFrames <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d frames", cfg.ChunkFrames)
	}
	if want := cfg.Workers * cfg.ChunkFrames; source.SlotCount() != want {
		return nil, fmt.Errorf("slot pool holds %d frames, need %d (chunk size × workers)", source.SlotCount(), want)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	stream := source.Stream()
	return &Pool{
		cfg:    cfg,
		engine: engine,
		source: source,
		logger: logger,
		params: codec.EncoderParams{
			CodecName:   stream.CodecName,
			Width:       stream.Width,
			Height:      stream.Height,
			PixelFormat: stream.PixelFormat,
			FrameRate:   stream.FrameRate,
		},
		finished: make([]atomic.Bool, cfg.Workers),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Run blocks until every worker has finished and the monitor has observed
// the drained pool, then returns the per-chunk results sorted by chunk id.
//
// A decode error from any worker is pipeline-fatal: no further chunk ids
// are assigned, though encodes already dispatched are allowed to finish.
// Encode errors terminate their worker and surface here.
func (p *Pool) Run(ctx context.Context) ([]*models.EncoderResult, error) {
	p.start = time.Now()
	p.logger.Info().
		Int("workers", p.cfg.Workers).
		Int("chunk_frames", p.cfg.ChunkFrames).
		Msg("starting worker pool")

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		p.monitor()
	}()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < p.cfg.Workers; w++ {
		w := w
		g.Go(func() error {
			return p.worker(ctx, w)
		})
	}

	err := g.Wait()
	<-monitorDone

	if cerr := p.source.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to release decode source: %w", cerr)
	}

	p.resultsMu.Lock()
	results := make([]*models.EncoderResult, len(p.results))
	copy(results, p.results)
	p.resultsMu.Unlock()
	sort.Slice(results, func(i, j int) bool {
		return results[i].ChunkID < results[j].ChunkID
	})

	if err != nil {
		return results, err
	}
	return results, nil
}

// ChunkCount returns how many chunk ids were assigned. Because ids are
// handed out under the decode lock in decode order, the assigned ids are
// always the contiguous range [0, ChunkCount).
func (p *Pool) ChunkCount() uint {
	p.decodeMu.Lock()
	defer p.decodeMu.Unlock()
	return p.nextChunkID
}

// FramesCompleted returns the current value of the shared counter.
func (p *Pool) FramesCompleted() int64 {
	return p.framesCompleted.Load()
}

// worker is one scheduler loop: claim the decode turn, decode a chunk into
// this worker's slot range, release the turn, encode without the lock.
func (p *Pool) worker(ctx context.Context, id int) error {
	offset := id * p.cfg.ChunkFrames

	for {
		p.decodeMu.Lock()

		if p.poisoned || ctx.Err() != nil {
			// Either a sibling hit a decode error (ids would gap) or the
			// run was cancelled. No new chunks in both cases.
			p.markFinished(id)
			p.decodeMu.Unlock()
			return ctx.Err()
		}

		frames, err := p.source.DecodeInto(offset, p.cfg.ChunkFrames)
		if err != nil {
			p.poisoned = true
			p.markFinished(id)
			p.decodeMu.Unlock()
			p.logger.Error().Err(err).Int("worker", id).Msg("decode error, pipeline poisoned")
			return fmt.Errorf("worker %d: %w", id, err)
		}
		if frames == 0 {
			p.markFinished(id)
			p.decodeMu.Unlock()
			p.logger.Debug().Int("worker", id).Msg("decode source exhausted")
			return nil
		}

		chunkID := p.nextChunkID
		p.nextChunkID++
		p.decodeMu.Unlock()

		// Encoding runs without any lock: the slot range is exclusively
		// this worker's, and program order guarantees it is not re-decoded
		// into before this encode finishes.
		result, err := p.encodeChunk(chunkID, offset, frames)
		if err != nil {
			failure, _ := models.NewEncoderResultFailure(chunkID, err)
			p.appendResult(failure)
			p.markFinished(id)
			p.logger.Error().Err(err).Int("worker", id).Uint("chunk", chunkID).Msg("encode error")
			return fmt.Errorf("worker %d: chunk %d: %w", id, chunkID, err)
		}
		p.appendResult(result)
	}
}

// markFinished sets this worker's flag (its single writer) and wakes the
// monitor so termination is noticed before the next tick.
func (p *Pool) markFinished(id int) {
	p.finished[id].Store(true)
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) appendResult(r *models.EncoderResult) {
	p.resultsMu.Lock()
	p.results = append(p.results, r)
	p.resultsMu.Unlock()
}

// encodeChunk encodes frames slots [offset, offset+frames) into the chunk
// output named by the chunk id, bumping the shared frame counter once per
// frame written.
func (p *Pool) encodeChunk(chunkID uint, offset, frames int) (*models.EncoderResult, error) {
	outPath := filepath.Join(p.cfg.WorkDir, models.ChunkFileName(chunkID))

	enc, err := p.engine.NewEncoder(p.params)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	defer enc.Close()

	mux, err := p.engine.OpenMuxer(outPath, p.source.Stream())
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk output: %w", err)
	}

	for i := 0; i < frames; i++ {
		if err := enc.SendFrame(p.source.Frame(offset + i)); err != nil {
			mux.Close()
			return nil, fmt.Errorf("encoder rejected frame %d: %w", i, err)
		}
		if err := drainPackets(enc, mux); err != nil {
			mux.Close()
			return nil, err
		}
		p.framesCompleted.Add(1)
	}

	// Flush frame, then drain whatever the encoder still buffers.
	if err := enc.SendFrame(nil); err != nil {
		mux.Close()
		return nil, fmt.Errorf("encoder flush failed: %w", err)
	}
	if err := drainPackets(enc, mux); err != nil {
		mux.Close()
		return nil, err
	}

	if err := mux.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize chunk output: %w", err)
	}

	return models.NewEncoderResultSuccess(chunkID, outPath, frames)
}

// drainPackets moves every currently available packet from the encoder to
// the chunk output. ErrAgain and io.EOF both end the drain: the former
// means "feed more frames", the latter that the flush is complete.
func drainPackets(enc codec.Encoder, mux codec.Muxer) error {
	for {
		pkt, err := enc.ReceivePacket()
		if err != nil {
			if errors.Is(err, codec.ErrAgain) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("encoder drain failed: %w", err)
		}
		if err := mux.WritePacket(pkt); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	}
}

// allFinished reports whether every worker flag is set.
func (p *Pool) allFinished() bool {
	for i := range p.finished {
		if !p.finished[i].Load() {
			return false
		}
	}
	return true
}
