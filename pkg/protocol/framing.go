// Package protocol defines how relay messages are laid out on the byte stream.
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

// MaxFrameSize is the largest payload a varint frame may carry.
const MaxFrameSize = 64 * 1024

// maxVarintLen is the longest encoding of a uint64 varint.
const maxVarintLen = 10

var (
	// ErrUnknownFraming is returned by ParseFraming for unsupported names.
	ErrUnknownFraming = errors.New("unknown framing")

	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrMalformedFrame is returned when a length prefix cannot be parsed.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Framing selects how messages map onto transport reads and writes.
type Framing int

const (
	// FramingRaw treats every transport read as one message. Chunk
	// boundaries are whatever the transport delivers, so a line may be
	// split or several lines may arrive together.
	FramingRaw Framing = iota

	// FramingVarint prefixes every payload with its length encoded as a
	// protobuf varint. Decoding is independent of chunk boundaries.
	FramingVarint
)

// String returns the string representation of Framing
func (f Framing) String() string {
	switch f {
	case FramingRaw:
		return "raw"
	case FramingVarint:
		return "varint"
	default:
		return "unknown"
	}
}

// ParseFraming parses a framing name as used on the command line.
func ParseFraming(name string) (Framing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "raw", "":
		return FramingRaw, nil
	case "varint":
		return FramingVarint, nil
	default:
		return FramingRaw, fmt.Errorf("%w: %q", ErrUnknownFraming, name)
	}
}

// Encode returns the bytes to put on the wire for payload.
func (f Framing) Encode(payload []byte) ([]byte, error) {
	if f != FramingVarint {
		return payload, nil
	}
	if len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("failed to encode frame: %w (%d bytes)", ErrFrameTooLarge, len(payload))
	}
	frame := make([]byte, 0, protowire.SizeBytes(len(payload)))
	return protowire.AppendBytes(frame, payload), nil
}

// Decoder turns transport chunks into messages.
// A Decoder belongs to a single connection and is not safe for concurrent use.
type Decoder interface {
	// Feed consumes one chunk and returns every message it completes, in
	// order. The returned slices do not alias chunk.
	Feed(chunk []byte) ([][]byte, error)

	// Buffered reports how many bytes are held waiting for the rest of a frame.
	Buffered() int
}

// NewDecoder returns a fresh decoder for one connection.
func (f Framing) NewDecoder() Decoder {
	if f == FramingVarint {
		return &varintDecoder{}
	}
	return rawDecoder{}
}

type rawDecoder struct{}

func (rawDecoder) Feed(chunk []byte) ([][]byte, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	msg := make([]byte, len(chunk))
	copy(msg, chunk)
	return [][]byte{msg}, nil
}

func (rawDecoder) Buffered() int { return 0 }

type varintDecoder struct {
	buf []byte
}

func (d *varintDecoder) Feed(chunk []byte) ([][]byte, error) {
	d.buf = append(d.buf, chunk...)

	var out [][]byte
	consumed := 0
	for consumed < len(d.buf) {
		rest := d.buf[consumed:]
		size, n := protowire.ConsumeVarint(rest)
		if n < 0 {
			if incompleteVarint(rest) {
				break
			}
			d.buf = nil
			return out, fmt.Errorf("%w: %v", ErrMalformedFrame, protowire.ParseError(n))
		}
		if size > MaxFrameSize {
			d.buf = nil
			return out, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
		}
		end := n + int(size)
		if len(rest) < end {
			break
		}
		// zero-length frames carry nothing to announce
		if size > 0 {
			msg := make([]byte, size)
			copy(msg, rest[n:end])
			out = append(out, msg)
		}
		consumed += end
	}

	switch {
	case consumed == len(d.buf):
		d.buf = nil
	case consumed > 0:
		d.buf = append([]byte(nil), d.buf[consumed:]...)
	}
	return out, nil
}

func (d *varintDecoder) Buffered() int { return len(d.buf) }

// incompleteVarint reports whether b is a varint prefix still waiting for
// its terminating byte.
func incompleteVarint(b []byte) bool {
	if len(b) >= maxVarintLen {
		return false
	}
	for _, c := range b {
		if c < 0x80 {
			return false
		}
	}
	return true
}
