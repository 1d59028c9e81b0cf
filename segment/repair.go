package segment

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"transcoder/codec"
)

// SplicePlan describes one repair: the segments [Start, End] are
// concatenated into a single replacement so no coded frame is split across
// a boundary inside that range. Start is always the intact predecessor of
// the first broken segment in the range.
type SplicePlan struct {
	Start        int      // first segment index in the splice (intact predecessor)
	End          int      // last segment index in the splice (broken)
	Supersedes   []string // original segment files replaced by the splice
	OutputPath   string   // replacement file
	PacketOffset int64    // packet offset of segment Start in the original split
}

// PlanRepairs builds splice plans for every broken segment in the report.
//
// Broken segments are resolved with their predecessor. A run of
// consecutive broken segments chains transitively into a single splice
// covering the predecessor and the whole run, since repairing them
// pairwise would leave the intermediate boundaries cut.
func PlanRepairs(report *Report, dir string) ([]SplicePlan, error) {
	if len(report.BrokenIndices) == 0 {
		return nil, nil
	}

	var plans []SplicePlan
	for i := 0; i < len(report.BrokenIndices); {
		first := report.BrokenIndices[i]
		last := first
		for i++; i < len(report.BrokenIndices) && report.BrokenIndices[i] == last+1; i++ {
			last = report.BrokenIndices[i]
		}

		start := first - 1
		if start < 0 {
			// Analyze already rejects a broken first segment; this guards
			// hand-built reports.
			return nil, ErrFirstSegmentBroken
		}

		plan := SplicePlan{
			Start:        start,
			End:          last,
			OutputPath:   filepath.Join(dir, fmt.Sprintf("splice-%d-%d.rpv", start, last)),
			PacketOffset: report.Descriptors[start].PacketOffset,
		}
		for idx := start; idx <= last; idx++ {
			plan.Supersedes = append(plan.Supersedes, report.Descriptors[idx].Path)
		}
		plans = append(plans, plan)
	}

	return plans, nil
}

// Execute performs the splice: the superseded segments are concatenated
// byte-for-byte, in order, into the replacement file, which is then
// re-analyzed to confirm the repair eliminated every discarded packet.
func Execute(engine codec.Engine, plan SplicePlan, logger zerolog.Logger) (*Descriptor, error) {
	if err := spliceFiles(plan.Supersedes, plan.OutputPath); err != nil {
		return nil, err
	}

	frames, packets, err := decodeCount(engine, plan.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("splice verification failed: %w", err)
	}

	desc := &Descriptor{
		Index:        plan.Start,
		Path:         plan.OutputPath,
		Frames:       frames,
		Packets:      packets,
		Discarded:    packets - frames,
		PacketOffset: plan.PacketOffset,
	}
	if desc.Broken() {
		return desc, fmt.Errorf("splice %s still has %d discarded packets", plan.OutputPath, desc.Discarded)
	}

	logger.Info().
		Int("start", plan.Start).
		Int("end", plan.End).
		Int64("frames", frames).
		Str("output", plan.OutputPath).
		Msg("segments spliced")
	return desc, nil
}

// spliceFiles concatenates the sources into dst in order.
func spliceFiles(sources []string, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create splice output: %w", err)
	}
	defer out.Close()

	for _, path := range sources {
		in, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		if _, err := io.Copy(out, in); err != nil {
			in.Close()
			return fmt.Errorf("failed to append %s: %w", path, err)
		}
		in.Close()
	}

	return out.Sync()
}
