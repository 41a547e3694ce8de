package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// chunkReader serves its input in fixed-size chunks to simulate an
// arbitrarily fragmented transport.
type chunkReader struct {
	data      []byte
	chunkSize int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.chunkSize
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func Test_Frame_Single_Unit(t *testing.T) {
	req := require.New(t)
	unit := `{"request":"login","username":"alice"}`

	decoder := NewFrameDecoder(bytes.NewReader([]byte(unit)))
	frame, err := decoder.Next()
	req.NoError(err)
	req.Equal(unit, string(frame))

	_, err = decoder.Next()
	req.Equal(io.EOF, err)
}

// Any chunk split must yield back the exact original unit, including splits
// that fall mid-escape-sequence or mid-quoted-string.
func Test_Frame_Every_Chunk_Size(t *testing.T) {
	req := require.New(t)
	unit := `{"request":"message","message":"a{b}c \"quoted\" and \\ done"}`

	for size := 1; size <= len(unit); size++ {
		decoder := NewFrameDecoder(&chunkReader{data: []byte(unit), chunkSize: size})
		frame, err := decoder.Next()
		req.NoError(err, "chunk size %d", size)
		req.Equal(unit, string(frame), "chunk size %d", size)
	}
}

// Braces inside quoted strings must not affect depth counting.
func Test_Frame_Braces_Inside_Quotes(t *testing.T) {
	req := require.New(t)
	unit := `{"request":"message","message":"}}}{{{"}`

	decoder := NewFrameDecoder(bytes.NewReader([]byte(unit)))
	frame, err := decoder.Next()
	req.NoError(err)
	req.Equal(unit, string(frame))
}

// An escaped quote does not toggle the quote state; an escaped backslash
// followed by a real quote does (escape-pending covers exactly one
// character).
func Test_Frame_Escape_Sequences(t *testing.T) {
	req := require.New(t)
	escapedQuote := `{"message":"she said \"hi{\" loudly"}`
	escapedBackslash := `{"message":"trailing slash \\"}`

	decoder := NewFrameDecoder(bytes.NewReader([]byte(escapedQuote + escapedBackslash)))

	frame, err := decoder.Next()
	req.NoError(err)
	req.Equal(escapedQuote, string(frame))

	frame, err = decoder.Next()
	req.NoError(err)
	req.Equal(escapedBackslash, string(frame))
}

// Bytes received past a unit boundary belong to the next unit and must be
// served without waiting for more data.
func Test_Frame_Multiple_Units_One_Read(t *testing.T) {
	req := require.New(t)
	first := `{"request":"listUsers"}`
	second := `{"request":"logout"}`
	third := `{"request":"message","message":"x"}`

	decoder := NewFrameDecoder(bytes.NewReader([]byte(first + second + third)))

	for _, expected := range []string{first, second, third} {
		frame, err := decoder.Next()
		req.NoError(err)
		req.Equal(expected, string(frame))
	}
	_, err := decoder.Next()
	req.Equal(io.EOF, err)
}

func Test_Frame_Nested_Objects(t *testing.T) {
	req := require.New(t)
	unit := `{"a":{"b":{"c":1}},"d":{}}`

	decoder := NewFrameDecoder(&chunkReader{data: []byte(unit), chunkSize: 3})
	frame, err := decoder.Next()
	req.NoError(err)
	req.Equal(unit, string(frame))
}

// End-of-stream before a unit completes returns EOF; the buffered partial
// bytes are not recovered.
func Test_Frame_Closed_Mid_Unit(t *testing.T) {
	req := require.New(t)
	partial := `{"request":"login","user`

	decoder := NewFrameDecoder(bytes.NewReader([]byte(partial)))
	_, err := decoder.Next()
	req.Equal(io.EOF, err)
}

// A brace-less stream never completes a unit.
func Test_Frame_Braceless_Input_Never_Completes(t *testing.T) {
	req := require.New(t)

	decoder := NewFrameDecoder(bytes.NewReader([]byte("   \n  ")))
	_, err := decoder.Next()
	req.Equal(io.EOF, err)
}

func Test_Frame_Bounded_Decoder(t *testing.T) {
	req := require.New(t)
	oversized := append([]byte(`{"message":"`), bytes.Repeat([]byte("a"), 4096)...)

	decoder := NewBoundedFrameDecoder(bytes.NewReader(oversized), 1024)
	_, err := decoder.Next()
	req.ErrorIs(err, ErrFrameTooLarge)
}

func Test_Frame_Unbounded_By_Default(t *testing.T) {
	req := require.New(t)
	big := append(append([]byte(`{"message":"`), bytes.Repeat([]byte("a"), 8192)...), []byte(`"}`)...)

	decoder := NewFrameDecoder(bytes.NewReader(big))
	frame, err := decoder.Next()
	req.NoError(err)
	req.Equal(string(big), string(frame))
}
