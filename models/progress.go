package models

import (
	"fmt"
	"math"
	"time"
)

// PipelineProgress is one sample of transcoding throughput, taken by the
// progress monitor from the shared completed-frame counter.
//
// InstantFPS is computed over the measured interval since the previous
// sample, not the nominal wake cadence, because a worker signal can wake
// the monitor early. AverageFPS covers the whole run.
type PipelineProgress struct {
	FramesCompleted int64         // total frames written so far
	InstantFPS      float64       // throughput over the last sample interval
	AverageFPS      float64       // throughput since pipeline start
	Elapsed         time.Duration // time since pipeline start
}

// ComputeFPS converts a frame delta over a measured duration into frames
// per second. A non-positive duration yields +Inf, mirroring a delta
// observed over an unmeasurably short interval.
func ComputeFPS(frames int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return math.Inf(1)
	}
	return float64(frames) / elapsed.Seconds()
}

// StatusLine renders the single human-readable line the monitor overwrites
// in place on every wake.
func (p *PipelineProgress) StatusLine() string {
	return fmt.Sprintf("frame=%d  (%.0f fps curr, %.1f fps avg)", p.FramesCompleted, p.InstantFPS, p.AverageFPS)
}
