package segment

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"transcoder/codec"
	"transcoder/decode"
)

// ErrFirstSegmentBroken reports that segment 0 has discarded packets. There
// is no prior boundary that could have split a frame, so this means the
// split itself is inconsistent; the offset table cannot be trusted and the
// analyzer refuses to silently correct it.
var ErrFirstSegmentBroken = errors.New("segment: first segment is broken, offset table would be inconsistent")

// analyzeSlots is the slot-pool size used for the sequential re-decode
// passes. Analysis is I/O bound across many small files, so a modest pool
// is plenty.
const analyzeSlots = 64

// Report is the analyzer's output: one descriptor per segment plus the
// indices of broken segments, in order.
type Report struct {
	Descriptors   []Descriptor
	BrokenIndices []int
}

// TotalFrames sums decodable frames across all segments.
func (r *Report) TotalFrames() int64 {
	var total int64
	for i := range r.Descriptors {
		total += r.Descriptors[i].Frames
	}
	return total
}

// Analyze re-decodes each segment in order, counting decodable frames
// against total packets and accumulating packet offsets. Broken segments
// (Discarded > 0) are expected, data-dependent findings, not errors; the
// only error conditions are I/O or engine failures and a broken first
// segment.
func Analyze(engine codec.Engine, paths []string, logger zerolog.Logger) (*Report, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no segments to analyze")
	}

	report := &Report{Descriptors: make([]Descriptor, 0, len(paths))}
	var offset int64

	for i, path := range paths {
		frames, packets, err := decodeCount(engine, path)
		if err != nil {
			return nil, fmt.Errorf("segment %d (%s): %w", i, path, err)
		}

		desc := Descriptor{
			Index:        i,
			Path:         path,
			Frames:       frames,
			Packets:      packets,
			Discarded:    packets - frames,
			PacketOffset: offset,
		}
		offset += packets
		report.Descriptors = append(report.Descriptors, desc)

		if desc.Broken() {
			if i == 0 {
				return nil, ErrFirstSegmentBroken
			}
			report.BrokenIndices = append(report.BrokenIndices, i)
			logger.Warn().
				Int("segment", i).
				Int64("packets", packets).
				Int64("frames", frames).
				Int64("discarded", desc.Discarded).
				Msg("broken segment detected")
		} else {
			logger.Debug().
				Int("segment", i).
				Int64("packets", packets).
				Int64("frames", frames).
				Msg("segment intact")
		}
	}

	return report, nil
}

// decodeCount opens path with a fresh decode source and decodes it to
// exhaustion, returning decodable frames and total packets.
func decodeCount(engine codec.Engine, path string) (frames, packets int64, err error) {
	src, err := decode.Open(engine, path, analyzeSlots)
	if err != nil {
		return 0, 0, err
	}
	defer src.Close()

	for {
		n, err := src.DecodeInto(0, analyzeSlots)
		if err != nil {
			return src.FramesDecoded(), src.PacketsRead(), err
		}
		if n == 0 {
			return src.FramesDecoded(), src.PacketsRead(), nil
		}
	}
}
