package pipeline

import (
	"fmt"
	"os"
	"time"

	"transcoder/internal/timeutil"
	"transcoder/models"
)

// monitor is the single observer loop. It wakes at least once per
// configured interval, or earlier when a worker signals the wake channel,
// samples the shared frame counter without taking any lock, and prints one
// status line overwritten in place. It exits once every worker-finished
// flag is set, at which point the workers are joinable.
func (p *Pool) monitor() {
	if !p.cfg.Quiet {
		fmt.Println("frame= 0  (0 fps)")
	}

	lastWake := p.start
	var lastFrames int64

	for {
		select {
		case <-time.After(p.cfg.Interval):
		case <-p.wake:
		}

		now := time.Now()
		frames := p.framesCompleted.Load()
		delta := frames - lastFrames
		lastFrames = frames

		// A signal can fire before the full interval elapses, so the
		// instantaneous rate is computed over the measured window, never
		// the nominal one.
		window := now.Sub(lastWake)
		lastWake = now

		progress := &models.PipelineProgress{
			FramesCompleted: frames,
			InstantFPS:      models.ComputeFPS(delta, window),
			AverageFPS:      models.ComputeFPS(frames, now.Sub(p.start)),
			Elapsed:         now.Sub(p.start),
		}

		if !p.cfg.Quiet {
			// Erase the previous line and rewrite it in place.
			fmt.Fprintf(os.Stdout, "\x1b[1A\x1b[2K%s\n", progress.StatusLine())
		}

		if p.allFinished() {
			p.logger.Info().
				Int64("frames", frames).
				Str("elapsed", timeutil.FormatSeconds(progress.Elapsed.Seconds())).
				Float64("avg_fps", progress.AverageFPS).
				Msg("worker pool drained")
			return
		}
	}
}
