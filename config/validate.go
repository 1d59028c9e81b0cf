package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	// Required fields
	if c.Input == "" {
		errors = append(errors, "input file is required")
	} else {
		// Check if input file exists
		if _, err := os.Stat(c.Input); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("input file does not exist: %s", c.Input))
		}
	}

	if c.Output == "" {
		errors = append(errors, "output path is required")
	}

	// Validate mode
	if !IsValidMode(c.Mode) {
		errors = append(errors, fmt.Sprintf("invalid mode '%s', must be one of: %s",
			c.Mode, strings.Join(ModeValues(), ", ")))
	}

	// Validate chunk size
	if c.ChunkFrames <= 0 {
		errors = append(errors, "chunk frames must be positive")
	}

	// Validate workers (0 is valid, means auto-detect)
	if c.Workers < 0 {
		errors = append(errors, "workers cannot be negative (use 0 for auto-detect)")
	}

	// Validate verify config when it applies
	if c.Mode == "verify" {
		if err := c.Verify.Validate(); err != nil {
			errors = append(errors, fmt.Sprintf("verify config: %v", err))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// Validate checks if verify configuration is valid
func (vc *VerifyConfig) Validate() error {
	var errors []string

	if vc.PacketsPerSegment <= 0 {
		errors = append(errors, "packets per segment must be positive")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, ", "))
	}

	return nil
}
