package rawpkt

import (
	"fmt"
	"io"
	"os"

	"transcoder/codec"
)

// DefaultGroupSize is the default sync-point interval: every Nth frame is
// independently decodable, the frames between depend on their predecessor.
const DefaultGroupSize = 12

// Engine implements codec.MuxEngine on top of the rawpkt container.
type Engine struct {
	groupSize int
}

// Option configures an Engine.
type Option func(*Engine)

// WithGroupSize overrides the sync-point interval. Small values make more
// cut positions safe; a value of 1 makes every frame a sync point, so no
// split can ever break a segment.
func WithGroupSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.groupSize = n
		}
	}
}

// NewEngine creates a rawpkt engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{groupSize: DefaultGroupSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var _ codec.MuxEngine = (*Engine)(nil)

// OpenDemuxer opens path and positions the reader before the first record.
func (e *Engine) OpenDemuxer(path string) (codec.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &codec.Error{Op: "open", Code: -2, Msg: err.Error()}
	}
	rr := NewReader(f)
	// The stream header must lead the file; read it now so Streams()
	// reflects reality before the first packet is pulled.
	rec, err := rr.ReadRecord()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, &codec.Error{Op: "open", Code: -541478725, Msg: "empty input"}
		}
		return nil, &codec.Error{Op: "open", Code: -1094995529, Msg: err.Error()}
	}
	if rec.Header == nil {
		f.Close()
		return nil, &codec.Error{Op: "open", Code: -1094995529, Msg: "input does not start with a stream header"}
	}
	return &demuxer{f: f, r: rr}, nil
}

// NewDecoder creates a decoder for the given stream. Only video streams
// are decodable by this engine.
func (e *Engine) NewDecoder(stream codec.StreamInfo) (codec.Decoder, error) {
	if stream.Type != codec.MediaTypeVideo {
		return nil, &codec.Error{Op: "new_decoder", Code: -1, Msg: fmt.Sprintf("no decoder for %s streams", stream.Type)}
	}
	return &decoder{info: stream}, nil
}

// NewEncoder creates an encoder writing rawpkt coded frames.
func (e *Engine) NewEncoder(params codec.EncoderParams) (codec.Encoder, error) {
	if params.Width <= 0 || params.Height <= 0 {
		return nil, &codec.Error{Op: "new_encoder", Code: -22, Msg: "invalid dimensions"}
	}
	return &encoder{params: params, groupSize: e.groupSize}, nil
}

// OpenMuxer creates path and writes the stream header derived from stream.
func (e *Engine) OpenMuxer(path string, stream codec.StreamInfo) (codec.Muxer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, &codec.Error{Op: "open_muxer", Code: -2, Msg: err.Error()}
	}
	w, err := NewWriter(f, StreamHeader{
		Width:       stream.Width,
		Height:      stream.Height,
		FrameRate:   stream.FrameRate,
		PixelFormat: stream.PixelFormat,
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &muxer{f: f, w: w}, nil
}

// demuxer yields packets from a rawpkt file, skipping repeated stream
// headers (they are legal mid-stream after concatenation).
type demuxer struct {
	f *os.File
	r *Reader
}

func (d *demuxer) ReadPacket(pkt *codec.Packet) error {
	for {
		rec, err := d.r.ReadRecord()
		if err != nil {
			return err
		}
		if rec.Header != nil {
			continue
		}
		pkt.StreamIndex = 0
		pkt.DTS = rec.DTS
		pkt.PTS = rec.PTS
		pkt.KeyFrame = rec.Key
		pkt.Data = append(pkt.Data[:0], rec.Data...)
		return nil
	}
}

func (d *demuxer) Streams() []codec.StreamInfo {
	hdr := d.r.Header()
	if hdr == nil {
		return nil
	}
	return []codec.StreamInfo{{
		Index:       0,
		Type:        codec.MediaTypeVideo,
		CodecName:   "rawpkt",
		Width:       hdr.Width,
		Height:      hdr.Height,
		PixelFormat: hdr.PixelFormat,
		FrameRate:   hdr.FrameRate,
	}}
}

func (d *demuxer) BestVideoStream() (codec.StreamInfo, bool) {
	for _, s := range d.Streams() {
		if s.Type == codec.MediaTypeVideo {
			return s, true
		}
	}
	return codec.StreamInfo{}, false
}

func (d *demuxer) Close() error {
	return d.f.Close()
}

// decoder turns packets back into frames, honoring the sync-point rule:
// a sync packet always decodes and re-establishes continuity; a delta
// packet decodes only if it directly follows the previously decoded frame.
// Delta packets without continuity are consumed silently and produce no
// frame, which is what makes a segment cut inside a frame group show fewer
// decodable frames than packets.
type decoder struct {
	info    codec.StreamInfo
	synced  bool
	lastSeq uint32

	queue   []*codec.Frame
	flushed bool
	closed  bool
}

func (d *decoder) SendPacket(pkt *codec.Packet) error {
	if d.closed {
		return &codec.Error{Op: "decode", Code: -22, Msg: "decoder closed"}
	}
	if pkt == nil {
		d.flushed = true
		return nil
	}
	if d.flushed {
		return &codec.Error{Op: "decode", Code: -22, Msg: "packet sent after flush"}
	}
	seq, payload, err := parseFrameHeader(pkt.Data)
	if err != nil {
		return &codec.Error{Op: "decode", Code: -1094995529, Msg: err.Error()}
	}

	if !pkt.KeyFrame {
		if !d.synced || seq != d.lastSeq+1 {
			// Continuity lost: this delta's reference lives in whatever
			// preceded the cut. Consume the packet, produce nothing.
			d.synced = false
			return nil
		}
	}

	d.synced = true
	d.lastSeq = seq
	d.queue = append(d.queue, &codec.Frame{
		Width:       d.info.Width,
		Height:      d.info.Height,
		PixelFormat: d.info.PixelFormat,
		PTS:         pkt.PTS,
		KeyFrame:    pkt.KeyFrame,
		Data:        append([]byte(nil), payload...),
	})
	return nil
}

func (d *decoder) ReceiveFrame() (*codec.Frame, error) {
	if len(d.queue) > 0 {
		f := d.queue[0]
		d.queue = d.queue[1:]
		return f, nil
	}
	if d.flushed {
		return nil, io.EOF
	}
	return nil, codec.ErrAgain
}

func (d *decoder) Close() error {
	d.closed = true
	d.queue = nil
	return nil
}

// encoder emits one packet per frame, marking every groupSize-th frame as
// a sync point. Payloads carry the frame data verbatim behind the frame
// header, so the codec is lossless.
type encoder struct {
	params    codec.EncoderParams
	groupSize int
	seq       uint32
	queue     []*codec.Packet
	flushed   bool
}

func (e *encoder) SendFrame(frame *codec.Frame) error {
	if frame == nil {
		e.flushed = true
		return nil
	}
	if e.flushed {
		return &codec.Error{Op: "encode", Code: -22, Msg: "frame sent after flush"}
	}

	// Timestamps come from the frame, not the encoder's own counter. The
	// counter restarts at zero for every encoder instance, so stamping it
	// would break timestamp monotonicity across concatenated outputs.
	payload := appendFrameHeader(make([]byte, 0, frameHeaderSize+len(frame.Data)), e.seq)
	payload = append(payload, frame.Data...)
	e.queue = append(e.queue, &codec.Packet{
		StreamIndex: 0,
		DTS:         frame.PTS,
		PTS:         frame.PTS,
		KeyFrame:    e.seq%uint32(e.groupSize) == 0,
		Data:        payload,
	})
	e.seq++
	return nil
}

func (e *encoder) ReceivePacket() (*codec.Packet, error) {
	if len(e.queue) > 0 {
		p := e.queue[0]
		e.queue = e.queue[1:]
		return p, nil
	}
	if e.flushed {
		return nil, io.EOF
	}
	return nil, codec.ErrAgain
}

func (e *encoder) Close() error {
	e.queue = nil
	return nil
}

// muxer writes packets into a rawpkt file.
type muxer struct {
	f *os.File
	w *Writer
}

func (m *muxer) WritePacket(pkt *codec.Packet) error {
	return m.w.WritePacket(pkt.DTS, pkt.PTS, pkt.KeyFrame, pkt.Data)
}

func (m *muxer) Close() error {
	return m.f.Close()
}
