// Package protocol implements the wire format of the chat service: the
// brace-balanced framing of JSON units over a byte stream and the closed
// request/response vocabulary exchanged inside those units.
package protocol

import (
	"fmt"
	"io"
)

// readChunkSize is how many bytes we ask the transport for when the
// buffer holds no complete unit.
const readChunkSize = 1024

// ErrFrameTooLarge is returned when a single unit grows past the
// configured maximum before its bracket depth returns to zero.
var ErrFrameTooLarge = fmt.Errorf("frame exceeds maximum size")

// FrameDecoder extracts exactly one self-delimited JSON unit at a time
// from an arbitrarily fragmented byte stream.
//
// A unit is complete when the count of '{' minus '}' returns to zero after
// having gone positive. Braces inside quoted strings do not count, and a
// character following a backslash is consumed as a literal. Bytes read past
// a unit boundary are retained for the next call, so the decoder never
// over-consumes the stream.
//
// A FrameDecoder is single-owner: exactly one goroutine may call Next.
type FrameDecoder struct {
	src io.Reader
	buf []byte

	// Scan state survives across reads so the buffer is never re-scanned
	// from the start (amortized linear, not quadratic).
	pos          int
	depth        int
	insideQuotes bool
	escaped      bool
	started      bool

	// maxFrame bounds the size of a single unit. Zero means unlimited,
	// which matches the historical behavior of never defending against
	// an unbalanced stream.
	maxFrame int
}

// NewFrameDecoder returns a decoder reading from src with no frame size limit.
func NewFrameDecoder(src io.Reader) *FrameDecoder {
	return &FrameDecoder{src: src}
}

// NewBoundedFrameDecoder returns a decoder that fails with ErrFrameTooLarge
// once a single unit grows past maxFrame bytes. maxFrame <= 0 disables the
// guard.
func NewBoundedFrameDecoder(src io.Reader, maxFrame int) *FrameDecoder {
	return &FrameDecoder{src: src, maxFrame: maxFrame}
}

// Next blocks until one complete unit is available and returns its exact
// bytes. It returns io.EOF when the stream ends before a unit completes;
// any buffered partial bytes are discarded. Transport errors are returned
// as-is and the decoder must not be used afterwards.
func (d *FrameDecoder) Next() ([]byte, error) {
	for {
		// Scan what we already have before touching the transport: a
		// previous read may have delivered more than one unit and those
		// must be served without waiting for new bytes.
		if frame := d.scan(); frame != nil {
			return frame, nil
		}

		if d.maxFrame > 0 && len(d.buf) > d.maxFrame {
			return nil, ErrFrameTooLarge
		}

		chunk := make([]byte, readChunkSize)
		n, err := d.src.Read(chunk)
		if n > 0 {
			d.buf = append(d.buf, chunk[:n]...)
			continue
		}
		if err == nil {
			continue
		}
		return nil, err
	}
}

// scan resumes from the saved cursor and returns a complete unit, or nil
// if the buffered bytes do not yet contain one.
func (d *FrameDecoder) scan() []byte {
	for ; d.pos < len(d.buf); d.pos++ {
		c := d.buf[d.pos]

		if d.escaped {
			// This character is a literal, whatever it is.
			d.escaped = false
			continue
		}

		if !d.insideQuotes {
			switch c {
			case '{':
				d.depth++
				d.started = true
			case '}':
				d.depth--
			}
		}

		switch c {
		case '\\':
			d.escaped = true
		case '"':
			d.insideQuotes = !d.insideQuotes
		}

		if d.started && d.depth == 0 {
			frame := d.buf[:d.pos+1]
			d.buf = append([]byte(nil), d.buf[d.pos+1:]...)
			d.pos = 0
			d.depth = 0
			d.insideQuotes = false
			d.escaped = false
			d.started = false
			return frame
		}
	}
	return nil
}
