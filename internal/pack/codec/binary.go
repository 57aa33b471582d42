// Package codec serializes quantized windows to the packed artifact
// format and back. The binary layout is the external wire format: any
// conforming reader implements the same header, body order, big-endian
// integers and floats, and the truncation-recovery rule.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"parkourcap.ai/internal/capture"
	"parkourcap.ai/internal/pack"
)

const (
	// Magic opens every artifact; exact match required.
	Magic = "PKRWIN"
	// Version is the only format version this codec reads or writes.
	Version = 1
	// HeaderSize is the fixed header length in bytes.
	HeaderSize = 20
)

// Header layout, big-endian:
//
//	offset 0  size 6  magic
//	offset 6  size 1  format version
//	offset 7  size 2  grid width
//	offset 9  size 2  grid height
//	offset 11 size 1  K (window length)
//	offset 12 size 4  window count
//	offset 16 size 4  reserved (zero on write, ignored on read)
type Header struct {
	Version    uint8
	GridWidth  int
	GridHeight int
	K          int
	Windows    int
}

// BodySize is the fixed per-window body length: K*W*H distance bytes,
// K*W*H category bytes, K*8 big-endian float32s, one action byte.
func (h Header) BodySize() int {
	return 2*h.K*h.GridWidth*h.GridHeight + 4*pack.ProprioSize*h.K + 1
}

func (h Header) validate() error {
	if h.Version != Version {
		return fmt.Errorf("codec: unsupported version %d (want %d)", h.Version, Version)
	}
	if h.GridWidth <= 0 || h.GridWidth > math.MaxUint16 {
		return fmt.Errorf("codec: grid width %d out of range", h.GridWidth)
	}
	if h.GridHeight <= 0 || h.GridHeight > math.MaxUint16 {
		return fmt.Errorf("codec: grid height %d out of range", h.GridHeight)
	}
	if h.K <= 0 || h.K > math.MaxUint8 {
		return fmt.Errorf("codec: window length %d out of range", h.K)
	}
	if h.Windows < 0 || h.Windows > math.MaxUint32 {
		return fmt.Errorf("codec: window count %d out of range", h.Windows)
	}
	return nil
}

func (h Header) marshal() ([]byte, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	buf := make([]byte, HeaderSize)
	copy(buf[0:6], Magic)
	buf[6] = h.Version
	binary.BigEndian.PutUint16(buf[7:9], uint16(h.GridWidth))
	binary.BigEndian.PutUint16(buf[9:11], uint16(h.GridHeight))
	buf[11] = uint8(h.K)
	binary.BigEndian.PutUint32(buf[12:16], uint32(h.Windows))
	// buf[16:20] reserved, zero.
	return buf, nil
}

func parseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("codec: %d bytes is shorter than the %d-byte header", len(b), HeaderSize)
	}
	if string(b[0:6]) != Magic {
		return Header{}, fmt.Errorf("codec: bad magic %q", b[0:6])
	}
	h := Header{
		Version:    b[6],
		GridWidth:  int(binary.BigEndian.Uint16(b[7:9])),
		GridHeight: int(binary.BigEndian.Uint16(b[9:11])),
		K:          int(b[11]),
		Windows:    int(binary.BigEndian.Uint32(b[12:16])),
	}
	// b[16:20] reserved, ignored.
	if err := h.validate(); err != nil {
		return Header{}, err
	}
	return h, nil
}

// HeaderFor builds the artifact header for a session and window count.
func HeaderFor(sess capture.Session, windows int) Header {
	return Header{
		Version:    Version,
		GridWidth:  sess.GridWidth,
		GridHeight: sess.GridHeight,
		K:          sess.K,
		Windows:    windows,
	}
}

// Write encodes the header and every window body sequentially. Any write
// failure aborts the encode; callers writing files should stage to a
// temporary path so an aborted encode leaves no artifact behind.
func Write(w io.Writer, sess capture.Session, wins []pack.EncodedWindow) error {
	h := HeaderFor(sess, len(wins))
	hdr, err := h.marshal()
	if err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("codec: write header: %w", err)
	}

	grid := h.K * h.GridWidth * h.GridHeight
	body := make([]byte, h.BodySize())
	for i, win := range wins {
		if len(win.Distances) != grid || len(win.Categories) != grid || len(win.Proprio) != h.K*pack.ProprioSize {
			return fmt.Errorf("codec: window %d: body does not match header %dx%dx%d",
				i, h.K, h.GridWidth, h.GridHeight)
		}
		n := copy(body, win.Distances)
		n += copy(body[n:], win.Categories)
		for _, f := range win.Proprio {
			binary.BigEndian.PutUint32(body[n:], math.Float32bits(f))
			n += 4
		}
		body[n] = win.Action
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("codec: write window %d at offset %d: %w", i, HeaderSize+i*len(body), err)
		}
	}
	return nil
}
