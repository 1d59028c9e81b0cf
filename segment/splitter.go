package segment

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"transcoder/codec"
	"transcoder/models"
)

// SplitResult holds what the splitter produced: the segment files in order
// and the global timestamp table, one entry per packet written.
type SplitResult struct {
	SegmentPaths []string
	Timestamps   []Timestamp
}

// Split copies src into fixed-size segments of packetsPerSegment packets
// each, named by the segment naming contract under dir.
//
// Splitting is deliberately blind to frame-group boundaries: a cut inside
// a group leaves the later segment with delta packets whose reference sits
// before the cut, which is the condition the analyzer detects and the
// repairer fixes.
func Split(engine codec.MuxEngine, src, dir string, packetsPerSegment int) (*SplitResult, error) {
	if packetsPerSegment <= 0 {
		return nil, fmt.Errorf("packets per segment must be positive, got %d", packetsPerSegment)
	}

	demuxer, err := engine.OpenDemuxer(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer demuxer.Close()

	stream, ok := demuxer.BestVideoStream()
	if !ok {
		return nil, fmt.Errorf("source has no video stream")
	}

	result := &SplitResult{}
	var (
		mux       codec.Muxer
		inSegment int // packets written into the current segment
		pkt       codec.Packet
	)
	closeMux := func() error {
		if mux == nil {
			return nil
		}
		err := mux.Close()
		mux = nil
		return err
	}

	for {
		err := demuxer.ReadPacket(&pkt)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			closeMux()
			return nil, fmt.Errorf("failed to read packet: %w", err)
		}
		if pkt.StreamIndex != stream.Index {
			continue
		}

		if mux == nil || inSegment == packetsPerSegment {
			if err := closeMux(); err != nil {
				return nil, fmt.Errorf("failed to finalize segment: %w", err)
			}
			path := filepath.Join(dir, models.SegmentFileName(len(result.SegmentPaths)))
			mux, err = engine.OpenMuxer(path, stream)
			if err != nil {
				return nil, fmt.Errorf("failed to open segment %d: %w", len(result.SegmentPaths), err)
			}
			result.SegmentPaths = append(result.SegmentPaths, path)
			inSegment = 0
		}

		if err := mux.WritePacket(&pkt); err != nil {
			closeMux()
			return nil, fmt.Errorf("failed to write packet: %w", err)
		}
		inSegment++
		result.Timestamps = append(result.Timestamps, Timestamp{DTS: pkt.DTS, PTS: pkt.PTS})
	}

	if err := closeMux(); err != nil {
		return nil, fmt.Errorf("failed to finalize last segment: %w", err)
	}

	if len(result.SegmentPaths) == 0 {
		return nil, fmt.Errorf("source produced no packets to split")
	}

	return result, nil
}

// ValidateTimestamps checks that the table's decode timestamps never move
// backwards. A violation after a splice means packets were reordered.
func ValidateTimestamps(table []Timestamp) error {
	for i := 1; i < len(table); i++ {
		if table[i].DTS < table[i-1].DTS {
			return fmt.Errorf("timestamp table out of order at packet %d: dts %d after %d", i, table[i].DTS, table[i-1].DTS)
		}
	}
	return nil
}
