// Package rawpkt implements a minimal self-contained codec engine and
// container used by tests, the verify workflow, and local development.
//
// The container is a flat sequence of records. A stream-info record may
// appear anywhere (not only at the start), so byte-level concatenation of
// two streams produced with the same parameters is itself a valid stream.
// That property is what lets the pipeline concatenate chunk outputs with
// plain io.Copy.
//
// The codec is lossless but inter-coded: every packet carries one frame,
// and only every Nth frame is a sync point. A delta frame decodes only in
// unbroken continuity from its sync point, so cutting a stream inside a
// frame group leaves the later half with leading packets that consume
// decoder input without producing frames. That is the broken-segment
// condition the integrity analyzer looks for, and it is repaired by
// splicing the segment back onto its predecessor.
package rawpkt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Record type tags. Four bytes each, first three shared on purpose so a
// reader can reject foreign files early.
var (
	streamMagic = [4]byte{'R', 'V', 'S', '0'}
	packetMagic = [4]byte{'R', 'V', 'P', '0'}
)

const (
	flagKeyFrame = 1 << 0

	// frameHeaderSize is the coded-frame prefix inside every packet
	// payload: the frame sequence number (u32) used for continuity checks.
	frameHeaderSize = 4

	// maxRecordSize guards against corrupt length fields.
	maxRecordSize = 64 << 20
)

// StreamHeader describes the elementary stream carried by a container.
type StreamHeader struct {
	Width       int
	Height      int
	FrameRate   int
	PixelFormat string
}

// Record is one container entry: either a stream header or a packet.
type Record struct {
	Header *StreamHeader // non-nil for stream-info records
	DTS    int64
	PTS    int64
	Key    bool
	Data   []byte
}

// Writer emits container records to an underlying stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer and immediately writes the stream header.
func NewWriter(w io.Writer, hdr StreamHeader) (*Writer, error) {
	rw := &Writer{w: w}
	if err := rw.writeStreamHeader(hdr); err != nil {
		return nil, err
	}
	return rw, nil
}

func (rw *Writer) writeStreamHeader(hdr StreamHeader) error {
	pf := []byte(hdr.PixelFormat)
	if len(pf) > 255 {
		return fmt.Errorf("rawpkt: pixel format name too long: %d bytes", len(pf))
	}
	buf := make([]byte, 0, 4+12+1+len(pf))
	buf = append(buf, streamMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(hdr.Width))
	buf = binary.BigEndian.AppendUint32(buf, uint32(hdr.Height))
	buf = binary.BigEndian.AppendUint32(buf, uint32(hdr.FrameRate))
	buf = append(buf, byte(len(pf)))
	buf = append(buf, pf...)
	_, err := rw.w.Write(buf)
	return err
}

// WritePacket appends one packet record.
func (rw *Writer) WritePacket(dts, pts int64, key bool, data []byte) error {
	var flags byte
	if key {
		flags |= flagKeyFrame
	}
	buf := make([]byte, 0, 4+17+len(data))
	buf = append(buf, packetMagic[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(dts))
	buf = binary.BigEndian.AppendUint64(buf, uint64(pts))
	buf = append(buf, flags)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	buf = append(buf, data...)
	_, err := rw.w.Write(buf)
	return err
}

// Reader parses container records from an underlying stream.
type Reader struct {
	r       io.Reader
	header  *StreamHeader
	scratch [4]byte
}

// NewReader wraps r. The stream header becomes available after the first
// record has been read (or via ReadHeader, which reads ahead until one
// appears).
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Header returns the most recently seen stream header, or nil.
func (rr *Reader) Header() *StreamHeader {
	return rr.header
}

// ReadRecord returns the next record. Stream-info records are returned to
// the caller as well as remembered, so demuxers can skip them while
// splitters can copy them verbatim. Returns io.EOF at end of stream.
func (rr *Reader) ReadRecord() (*Record, error) {
	if _, err := io.ReadFull(rr.r, rr.scratch[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("rawpkt: truncated record magic: %w", io.ErrUnexpectedEOF)
		}
		return nil, err
	}
	switch rr.scratch {
	case streamMagic:
		return rr.readStreamHeader()
	case packetMagic:
		return rr.readPacket()
	default:
		return nil, fmt.Errorf("rawpkt: bad record magic %q", rr.scratch[:])
	}
}

func (rr *Reader) readStreamHeader() (*Record, error) {
	var fixed [13]byte
	if _, err := io.ReadFull(rr.r, fixed[:]); err != nil {
		return nil, fmt.Errorf("rawpkt: truncated stream header: %w", err)
	}
	pf := make([]byte, fixed[12])
	if _, err := io.ReadFull(rr.r, pf); err != nil {
		return nil, fmt.Errorf("rawpkt: truncated pixel format: %w", err)
	}
	hdr := &StreamHeader{
		Width:       int(binary.BigEndian.Uint32(fixed[0:4])),
		Height:      int(binary.BigEndian.Uint32(fixed[4:8])),
		FrameRate:   int(binary.BigEndian.Uint32(fixed[8:12])),
		PixelFormat: string(pf),
	}
	rr.header = hdr
	return &Record{Header: hdr}, nil
}

func (rr *Reader) readPacket() (*Record, error) {
	var fixed [21]byte
	if _, err := io.ReadFull(rr.r, fixed[:]); err != nil {
		return nil, fmt.Errorf("rawpkt: truncated packet header: %w", err)
	}
	size := binary.BigEndian.Uint32(fixed[17:21])
	if size > maxRecordSize {
		return nil, fmt.Errorf("rawpkt: packet size %d exceeds limit", size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(rr.r, data); err != nil {
		return nil, fmt.Errorf("rawpkt: truncated packet payload: %w", err)
	}
	return &Record{
		DTS:  int64(binary.BigEndian.Uint64(fixed[0:8])),
		PTS:  int64(binary.BigEndian.Uint64(fixed[8:16])),
		Key:  fixed[16]&flagKeyFrame != 0,
		Data: data,
	}, nil
}

func appendFrameHeader(dst []byte, seq uint32) []byte {
	return binary.BigEndian.AppendUint32(dst, seq)
}

func parseFrameHeader(data []byte) (uint32, []byte, error) {
	if len(data) < frameHeaderSize {
		return 0, nil, fmt.Errorf("rawpkt: packet payload shorter than frame header (%d bytes)", len(data))
	}
	return binary.BigEndian.Uint32(data[0:4]), data[frameHeaderSize:], nil
}
