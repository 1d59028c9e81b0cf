// Package codec defines the contract between the transcoding core and the
// underlying codec engine.
//
// The core treats the engine purely as a sequential packet/frame transformer:
// a Demuxer yields compressed packets, a Decoder turns packets into frames,
// an Encoder turns frames back into packets. The send/receive split mirrors
// how real codec libraries expose their state machines, so a cgo-backed
// engine can implement these interfaces without adapters.
package codec

import (
	"errors"
	"fmt"
)

// ErrAgain signals that the decoder or encoder needs more input before it
// can produce output. It is not a failure; callers respond by sending the
// next packet or frame.
var ErrAgain = errors.New("codec: need more input")

// MediaType identifies the kind of elementary stream.
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
	MediaTypeData  MediaType = "data"
)

// StreamInfo describes one elementary stream found by a Demuxer.
type StreamInfo struct {
	Index       int
	Type        MediaType
	CodecName   string
	Width       int
	Height      int
	PixelFormat string
	FrameRate   int // frames per second, 0 if unknown
}

// Packet is one unit of compressed data. KeyFrame marks an independently
// decodable packet; the packets after it decode only in unbroken continuity
// from it.
type Packet struct {
	StreamIndex int
	DTS         int64
	PTS         int64
	KeyFrame    bool
	Data        []byte
}

// Frame is one decoded picture. Data layout is engine-defined; the core
// never inspects pixel contents, it only moves frames between slots.
type Frame struct {
	Width       int
	Height      int
	PixelFormat string
	PTS         int64
	KeyFrame    bool
	Data        []byte
}

// EncoderParams carries the settings every chunk must share so that raw
// concatenation of chunk outputs yields a structurally valid stream.
type EncoderParams struct {
	CodecName   string
	Width       int
	Height      int
	PixelFormat string
	FrameRate   int
}

// Demuxer reads compressed packets from a container in stream order.
//
// ReadPacket fills the caller's packet, reusing its Data buffer when large
// enough. It returns io.EOF when the container is exhausted.
type Demuxer interface {
	ReadPacket(pkt *Packet) error
	Streams() []StreamInfo
	BestVideoStream() (StreamInfo, bool)
	Close() error
}

// Decoder consumes packets and produces frames.
//
// SendPacket with a nil packet flushes the decoder: buffered frames keep
// draining through ReceiveFrame until it returns io.EOF. ReceiveFrame
// returns ErrAgain when more packets are needed.
type Decoder interface {
	SendPacket(pkt *Packet) error
	ReceiveFrame() (*Frame, error)
	Close() error
}

// Encoder consumes frames and produces packets, with the same flush and
// drain protocol as Decoder (nil frame flushes, io.EOF ends the drain).
type Encoder interface {
	SendFrame(frame *Frame) error
	ReceivePacket() (*Packet, error)
	Close() error
}

// Engine is the factory surface an engine implementation must provide.
type Engine interface {
	OpenDemuxer(path string) (Demuxer, error)
	NewDecoder(stream StreamInfo) (Decoder, error)
	NewEncoder(params EncoderParams) (Encoder, error)
}

// Muxer writes compressed packets into a container without re-encoding.
type Muxer interface {
	WritePacket(pkt *Packet) error
	Close() error
}

// MuxEngine is implemented by engines that can also write containers.
// The pipeline and the segment splitter both require it.
type MuxEngine interface {
	Engine
	OpenMuxer(path string, stream StreamInfo) (Muxer, error)
}

// Error is a failure reported by the engine itself, carrying the engine's
// numeric error code so callers can surface it verbatim.
type Error struct {
	Op   string // operation that failed, e.g. "open", "decode"
	Code int    // engine-defined error code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("codec: %s failed: %s (code %d)", e.Op, e.Msg, e.Code)
	}
	return fmt.Sprintf("codec: %s failed (code %d)", e.Op, e.Code)
}
