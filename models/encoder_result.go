package models

import (
	"fmt"
	"strings"
)

// EncoderResult represents the outcome of encoding a single chunk.
//
// It enforces logical consistency: successful results must carry an output
// path, a positive frame count and no error, while failed results must
// carry an error and no output path. The concatenator consumes these to
// decide what can be stitched together.
//
// Use NewEncoderResultSuccess or NewEncoderResultFailure to create
// validated instances.
type EncoderResult struct {
	ChunkID    uint   `json:"chunk_id"`
	OutputPath string `json:"output_path"`
	FrameCount int    `json:"frame_count"`
	Success    bool   `json:"success"`
	Error      error  `json:"error"`
	Chunk      *Chunk `json:"chunk,omitempty"` // validated chunk record, set on success
}

// NewEncoderResultSuccess creates a successful EncoderResult with validation.
// The chunk record is built and validated first, so every successful result
// carries a consistent Chunk.
//
// Returns an error if outputPath is empty or frameCount is not positive.
func NewEncoderResultSuccess(chunkID uint, outputPath string, frameCount int) (*EncoderResult, error) {
	chunk, err := NewChunk(chunkID, frameCount, outputPath)
	if err != nil {
		return nil, fmt.Errorf("invalid encoder result: %w", err)
	}
	er := &EncoderResult{
		ChunkID:    chunkID,
		OutputPath: outputPath,
		FrameCount: frameCount,
		Success:    true,
		Error:      nil,
		Chunk:      chunk,
	}
	if err := er.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder result: %w", err)
	}
	return er, nil
}

// NewEncoderResultFailure creates a failed EncoderResult.
//
// The error parameter must not be nil.
func NewEncoderResultFailure(chunkID uint, encError error) (*EncoderResult, error) {
	if encError == nil {
		return nil, fmt.Errorf("invalid encoder result: error cannot be nil for failed result")
	}
	return &EncoderResult{
		ChunkID: chunkID,
		Success: false,
		Error:   encError,
	}, nil
}

// Validate checks if the EncoderResult has consistent state.
//
// Returns an error if:
//   - Success is true but Error is not nil
//   - Success is false but Error is nil
//   - Success is true but OutputPath is empty or FrameCount is not positive
//   - Success is false but OutputPath is set
func (er *EncoderResult) Validate() error {
	if er.Success && er.Error != nil {
		return fmt.Errorf("inconsistent state: Success is true but Error is not nil")
	}

	if !er.Success && er.Error == nil {
		return fmt.Errorf("failed result must have an error")
	}

	if er.Success {
		if strings.TrimSpace(er.OutputPath) == "" {
			return fmt.Errorf("output_path cannot be empty for successful result")
		}
		if er.FrameCount <= 0 {
			return fmt.Errorf("frame_count must be positive for successful result")
		}
	}

	if !er.Success && strings.TrimSpace(er.OutputPath) != "" {
		return fmt.Errorf("failed result should not have output_path")
	}

	if er.Chunk != nil {
		if err := er.Chunk.Validate(); err != nil {
			return fmt.Errorf("invalid chunk record: %w", err)
		}
		if er.Chunk.ChunkID != er.ChunkID || er.Chunk.OutputPath != er.OutputPath || er.Chunk.FrameCount != er.FrameCount {
			return fmt.Errorf("chunk record does not match result fields")
		}
	}

	return nil
}
