// Package decode owns the shared decode source: one demuxer/decoder pair,
// a reusable packet buffer, and the fixed pool of frame slots that workers
// decode into. The source itself is not goroutine-safe; the pipeline
// serializes access with the decode-turn lock.
package decode

import (
	"errors"
	"fmt"
	"io"

	"transcoder/codec"
)

// CreationErrorKind classifies why a decode source could not be opened.
type CreationErrorKind int

const (
	// AllocationFailure means the frame-slot pool could not be set up.
	AllocationFailure CreationErrorKind = iota
	// NoVideoStream means the container holds no video stream to decode.
	NoVideoStream
	// NoDecoderAvailable means the engine has no decoder for the stream.
	NoDecoderAvailable
	// AVError wraps an engine failure, preserving its numeric code.
	AVError
)

func (k CreationErrorKind) String() string {
	switch k {
	case AllocationFailure:
		return "allocation failure"
	case NoVideoStream:
		return "no video stream"
	case NoDecoderAvailable:
		return "no decoder available"
	case AVError:
		return "engine error"
	default:
		return fmt.Sprintf("unknown kind %d", int(k))
	}
}

// CreationError is the typed, fatal-to-startup error returned by Open.
type CreationError struct {
	Kind  CreationErrorKind
	Code  int // engine error code, set for AVError
	cause error
}

func (e *CreationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("failed to initialize decoder: %s: %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("failed to initialize decoder: %s", e.Kind)
}

func (e *CreationError) Unwrap() error {
	return e.cause
}

// Source bundles the demuxer cursor, the selected video stream, the
// decoder state, one reusable compressed-packet buffer and the frame-slot
// pool. It is opened once before pool startup and closed after the pool
// has fully drained.
type Source struct {
	demuxer codec.Demuxer
	decoder codec.Decoder
	stream  codec.StreamInfo

	pkt   codec.Packet // reused across ReadPacket calls
	slots []*codec.Frame

	eof bool // demuxer exhausted and flush already sent

	packetsRead   int64
	framesDecoded int64
}

// Open opens path with the given engine and allocates slotCount frame
// slots. On failure the returned error is always a *CreationError.
func Open(engine codec.Engine, path string, slotCount int) (*Source, error) {
	if slotCount <= 0 {
		return nil, &CreationError{
			Kind:  AllocationFailure,
			cause: fmt.Errorf("slot count must be positive, got %d", slotCount),
		}
	}

	demuxer, err := engine.OpenDemuxer(path)
	if err != nil {
		return nil, &CreationError{Kind: AVError, Code: engineCode(err), cause: err}
	}

	stream, ok := demuxer.BestVideoStream()
	if !ok {
		demuxer.Close()
		return nil, &CreationError{Kind: NoVideoStream}
	}

	decoder, err := engine.NewDecoder(stream)
	if err != nil {
		demuxer.Close()
		return nil, &CreationError{Kind: NoDecoderAvailable, Code: engineCode(err), cause: err}
	}

	return &Source{
		demuxer: demuxer,
		decoder: decoder,
		stream:  stream,
		slots:   make([]*codec.Frame, slotCount),
	}, nil
}

// engineCode extracts the engine's numeric error code, if any.
func engineCode(err error) int {
	var ce *codec.Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return 0
}

// Stream returns the selected video stream's description, used to derive
// uniform encoder parameters for every chunk.
func (s *Source) Stream() codec.StreamInfo {
	return s.stream
}

// SlotCount returns the size of the frame-slot pool.
func (s *Source) SlotCount() int {
	return len(s.slots)
}

// Frame returns the decoded frame held in slot i. Valid only for slots the
// caller's last DecodeInto reported as filled.
func (s *Source) Frame(i int) *codec.Frame {
	return s.slots[i]
}

// PacketsRead returns how many packets of the selected stream have been
// fed to the decoder so far.
func (s *Source) PacketsRead() int64 {
	return s.packetsRead
}

// FramesDecoded returns how many frames have been produced so far.
func (s *Source) FramesDecoded() int64 {
	return s.framesDecoded
}

// DecodeInto decodes up to max frames into slots [offset, offset+max),
// returning the number of frames produced. Packets not belonging to the
// selected stream are skipped. On upstream end-of-stream it flushes the
// decoder once and drains the remaining buffered frames.
//
// A return value less than max happens only on the final drain; 0 means
// no more chunks. Slots beyond the returned count hold no valid frame.
func (s *Source) DecodeInto(offset, max int) (int, error) {
	if offset < 0 || max < 0 || offset+max > len(s.slots) {
		return 0, fmt.Errorf("decode range [%d, %d) out of slot pool bounds [0, %d)", offset, offset+max, len(s.slots))
	}

	n := 0
	for n < max {
		frame, err := s.decoder.ReceiveFrame()
		switch {
		case err == nil:
			s.slots[offset+n] = frame
			n++
			s.framesDecoded++
		case err == io.EOF:
			// Decoder fully drained after flush.
			return n, nil
		case errors.Is(err, codec.ErrAgain):
			if s.eof {
				// Flushed already; nothing more can come out.
				return n, nil
			}
			if err := s.pump(); err != nil {
				return n, err
			}
		default:
			return n, fmt.Errorf("decode failed: %w", err)
		}
	}
	return n, nil
}

// pump feeds the decoder the next packet of the selected stream, or the
// flush packet on demuxer end-of-stream.
func (s *Source) pump() error {
	for {
		err := s.demuxer.ReadPacket(&s.pkt)
		if err == io.EOF {
			s.eof = true
			if ferr := s.decoder.SendPacket(nil); ferr != nil {
				return fmt.Errorf("decoder flush failed: %w", ferr)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("demuxer read failed: %w", err)
		}
		if s.pkt.StreamIndex != s.stream.Index {
			continue
		}
		s.packetsRead++
		if err := s.decoder.SendPacket(&s.pkt); err != nil {
			return fmt.Errorf("decoder rejected packet: %w", err)
		}
		return nil
	}
}

// Close releases the decoder and demuxer. Call only after all decoding is
// done; the pipeline does this once the worker pool has drained.
func (s *Source) Close() error {
	derr := s.decoder.Close()
	merr := s.demuxer.Close()
	if derr != nil {
		return derr
	}
	return merr
}
