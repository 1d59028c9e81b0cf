// Package concatenator merges encoded chunk outputs into a single stream.
//
// Chunks are appended byte-for-byte in chunk-id order. This only yields a
// structurally valid stream when every chunk was encoded with identical
// parameters (dimensions, pixel format, frame rate); that precondition is
// the caller's to enforce, it is not checked here.
package concatenator

import (
	"fmt"
	"io"
	"os"
	"sort"

	"transcoder/models"
)

// Concatenator handles merging encoded chunks into a final output file.
type Concatenator struct {
	strictMode bool // If true, fail if any chunks are missing. If false, skip missing chunks.
}

// NewConcatenator creates a new concatenator.
func NewConcatenator(strictMode bool) *Concatenator {
	return &Concatenator{
		strictMode: strictMode,
	}
}

// Concatenate appends each chunk's raw encoded bytes, in increasing
// chunk-id order, to a single output file.
func (c *Concatenator) Concatenate(results []*models.EncoderResult, finalOutputPath string) error {
	successful, failed, err := c.validateResults(results)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if len(failed) > 0 {
		if c.strictMode {
			return fmt.Errorf("strict mode: %d chunks failed encoding", len(failed))
		}
		fmt.Printf("Warning: %d chunks failed, proceeding with %d successful chunks\n", len(failed), len(successful))
	}

	if len(successful) == 0 {
		return fmt.Errorf("no successful chunks to concatenate")
	}

	if err := c.checkForGaps(successful); err != nil {
		if c.strictMode {
			return fmt.Errorf("strict mode: %w", err)
		}
		fmt.Printf("Warning: %v\n", err)
	}

	if err := c.appendChunks(successful, finalOutputPath); err != nil {
		return fmt.Errorf("concatenation failed: %w", err)
	}

	return nil
}

// validateResults separates successful and failed results and sorts the
// successful ones by chunk id so output order matches stream order.
func (c *Concatenator) validateResults(results []*models.EncoderResult) (successful, failed []*models.EncoderResult, err error) {
	if len(results) == 0 {
		return nil, nil, fmt.Errorf("no results provided")
	}

	for _, result := range results {
		if result.Success && result.OutputPath != "" {
			// Verify file exists
			if _, err := os.Stat(result.OutputPath); err != nil {
				failed = append(failed, result)
			} else {
				successful = append(successful, result)
			}
		} else {
			failed = append(failed, result)
		}
	}

	sort.Slice(successful, func(i, j int) bool {
		return successful[i].ChunkID < successful[j].ChunkID
	})

	return successful, failed, nil
}

// checkForGaps detects missing chunks in the id sequence. Ids are assigned
// contiguously from 0 by the pipeline, so any hole means a lost chunk.
func (c *Concatenator) checkForGaps(successful []*models.EncoderResult) error {
	if len(successful) == 0 {
		return nil
	}

	gaps := []uint{}
	if first := successful[0].ChunkID; first != 0 {
		for id := uint(0); id < first; id++ {
			gaps = append(gaps, id)
		}
	}
	for i := 0; i < len(successful)-1; i++ {
		currentID := successful[i].ChunkID
		nextID := successful[i+1].ChunkID

		if nextID != currentID+1 {
			for id := currentID + 1; id < nextID; id++ {
				gaps = append(gaps, id)
			}
		}
	}

	if len(gaps) > 0 {
		return fmt.Errorf("missing chunks: %v", gaps)
	}

	return nil
}

// appendChunks copies each chunk file into the output in order.
func (c *Concatenator) appendChunks(successful []*models.EncoderResult, outputPath string) error {
	dst, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer dst.Close()

	for _, result := range successful {
		src, err := os.Open(result.OutputPath)
		if err != nil {
			return fmt.Errorf("failed to open chunk %d: %w", result.ChunkID, err)
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			return fmt.Errorf("failed to append chunk %d: %w", result.ChunkID, err)
		}
		src.Close()
	}

	if err := dst.Sync(); err != nil {
		return fmt.Errorf("failed to sync output file: %w", err)
	}

	return nil
}

// ConcatenateSimple is a convenience function for basic concatenation of
// chunk files already in id order (index i holds chunk id i).
func ConcatenateSimple(chunkPaths []string, outputPath string) error {
	results := make([]*models.EncoderResult, len(chunkPaths))
	for i, path := range chunkPaths {
		results[i] = &models.EncoderResult{
			ChunkID:    uint(i),
			OutputPath: path,
			FrameCount: 1, // actual count unknown at this layer
			Success:    true,
			Error:      nil,
		}
	}

	concat := NewConcatenator(true) // strict mode
	return concat.Concatenate(results, outputPath)
}
