// Package models provides core data structures for the transcoder system.
package models

import (
	"fmt"
	"strings"
)

// Chunk represents one fixed-size run of consecutive decoded frames that a
// worker encoded independently.
//
// Chunk ids are assigned in decode order, so iterating ids 0..K always
// yields the original stream order no matter which worker produced which
// chunk or how long its encode took. Every successful EncoderResult carries
// the validated Chunk it encoded.
//
// Use NewChunk to create a validated Chunk instance.
type Chunk struct {
	ChunkID    uint   `json:"chunk_id"`
	FrameCount int    `json:"frame_count"`
	OutputPath string `json:"output_path"`
}

// NewChunk creates a new Chunk with validation.
//
// Returns an error if the chunk parameters are invalid:
//   - FrameCount must be greater than 0
//   - OutputPath cannot be empty or whitespace-only
//
// Example:
//
//	chunk, err := models.NewChunk(0, 25, "/tmp/work/chunk-0.rpv")
//	if err != nil {
//	    log.Fatal(err)
//	}
func NewChunk(id uint, frameCount int, outputPath string) (*Chunk, error) {
	c := &Chunk{
		ChunkID:    id,
		FrameCount: frameCount,
		OutputPath: outputPath,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunk: %w", err)
	}
	return c, nil
}

// Validate checks if the Chunk has valid data.
//
// Returns an error if:
//   - FrameCount is zero or negative
//   - OutputPath is empty or whitespace-only
func (c *Chunk) Validate() error {
	if c.FrameCount <= 0 {
		return fmt.Errorf("frame_count must be greater than 0")
	}

	if strings.TrimSpace(c.OutputPath) == "" {
		return fmt.Errorf("output_path cannot be empty")
	}

	return nil
}

// ChunkFileName returns the deterministic output name for a chunk id.
// The concatenator and the workers both rely on this contract.
func ChunkFileName(id uint) string {
	return fmt.Sprintf("chunk-%d.rpv", id)
}

// SegmentFileName returns the deterministic name for a segment index,
// shared by the splitter, analyzer and repairer.
func SegmentFileName(index int) string {
	return fmt.Sprintf("segment-%d.rpv", index)
}
