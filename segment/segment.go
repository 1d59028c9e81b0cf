// Package segment verifies and repairs a video that was previously split
// into fixed-size segments. A segment cut inside a frame group starts with
// delta packets whose reference sits before the boundary; those packets
// consume decoder input without producing frames, so the segment decodes to
// fewer frames than it holds packets. Such segments are "broken" and get
// repaired by splicing them with their predecessor.
package segment

// Descriptor records what the integrity analyzer learned about one segment.
type Descriptor struct {
	Index        int    // position in the original split order
	Path         string // segment file
	Frames       int64  // decodable frame count
	Packets      int64  // total packets observed by the demuxer
	Discarded    int64  // Packets - Frames; > 0 marks the segment broken
	PacketOffset int64  // sum of all prior segments' packet counts
}

// Broken reports whether this segment lost frames to its leading boundary.
func (d *Descriptor) Broken() bool {
	return d.Discarded > 0
}

// Timestamp is one packet's decode/presentation timestamp pair. The table
// holds one entry per packet across all segments in original order.
type Timestamp struct {
	DTS int64
	PTS int64
}
