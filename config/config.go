package config

// Config holds all transcoder configuration options
type Config struct {
	// Required fields
	Input  string `yaml:"input"`
	Output string `yaml:"output"`

	// Execution settings
	ChunkFrames int    `yaml:"chunk_frames"` // frames per chunk
	Workers     int    `yaml:"workers"`      // 0 = auto-detect
	Mode        string `yaml:"mode"`         // "transcode", "verify"
	WorkDir     string `yaml:"work_dir"`     // directory for chunk/segment files ("" = temp dir)

	// Verify settings
	Verify VerifyConfig `yaml:"verify"`

	// Behavioral flags
	StrictMode    bool `yaml:"strict_mode"`    // Fail on any chunk gap during concatenation
	CleanupChunks bool `yaml:"cleanup_chunks"` // Remove chunk files after concatenation
	Verbose       bool `yaml:"verbose"`        // Show detailed logs
	Quiet         bool `yaml:"quiet"`          // Suppress the live progress line
	DryRun        bool `yaml:"dry_run"`        // Show config without transcoding
}

// VerifyConfig holds segment integrity verification settings
type VerifyConfig struct {
	PacketsPerSegment int  `yaml:"packets_per_segment"` // packets per split segment
	Repair            bool `yaml:"repair"`              // splice broken segments after analysis
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		// Required - must be provided by user
		Input:  "",
		Output: "",

		// Execution settings
		ChunkFrames: 120,         // ~4-5 seconds of video per chunk
		Workers:     0,           // Auto-detect CPU count
		Mode:        "transcode", // Chunked parallel transcode
		WorkDir:     "",          // Temp dir next to output

		// Verify defaults
		Verify: VerifyConfig{
			PacketsPerSegment: 50,
			Repair:            true,
		},

		// Behavioral defaults
		StrictMode:    true,  // Refuse to concatenate over missing chunks
		CleanupChunks: true,  // Remove chunk files after joining
		Verbose:       false, // Info-level logging
		Quiet:         false, // Show the progress line
		DryRun:        false, // Actually transcode
	}
}

// Copy creates a deep copy of the config
func (c *Config) Copy() *Config {
	copy := *c
	copy.Verify = c.Verify
	return &copy
}

// ModeValues returns valid mode values
func ModeValues() []string {
	return []string{"transcode", "verify"}
}

// IsValidMode checks if mode is valid
func IsValidMode(mode string) bool {
	for _, valid := range ModeValues() {
		if mode == valid {
			return true
		}
	}
	return false
}
