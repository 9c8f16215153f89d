// Package codec provides optional transparent compression of cached
// payloads.
//
// Every encoded payload starts with a one-byte frame tag naming the
// compression that produced it, so a cache can always decode files written
// under a different compression setting. When compression does not shrink a
// payload it is stored raw under the None tag; Decode never needs to know
// what the writer intended.
package codec

import (
	"errors"
	"fmt"
)

// Type selects the compression algorithm for newly written payloads.
type Type uint8

const (
	// None stores payloads uncompressed.
	None Type = 0
	// LZ4 favors speed; a good default for hot decoded payloads.
	LZ4 Type = 1
	// Zstd favors ratio; a good default for cold encoded payloads.
	Zstd Type = 2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

var (
	// ErrUnknownFrame is returned when a payload's tag byte names no known
	// compression.
	ErrUnknownFrame = errors.New("codec: unknown frame tag")
	// ErrTruncatedFrame is returned when a payload is too short to carry
	// its declared frame.
	ErrTruncatedFrame = errors.New("codec: truncated frame")
)

const tagSize = 1

// Encode frames data with the given compression. The input is not modified;
// the returned slice is freshly allocated. An empty input encodes to a bare
// None tag.
func Encode(data []byte, t Type) ([]byte, error) {
	switch t {
	case None:
		return encodeRaw(data), nil
	case LZ4:
		return encodeLZ4(data)
	case Zstd:
		return encodeZstd(data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrame, uint8(t))
	}
}

// Decode unframes a payload produced by Encode, regardless of which Type
// produced it.
func Decode(data []byte) ([]byte, error) {
	if len(data) < tagSize {
		return nil, ErrTruncatedFrame
	}
	tag, body := Type(data[0]), data[1:]
	switch tag {
	case None:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case LZ4:
		return decodeLZ4(body)
	case Zstd:
		return decodeZstd(body)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownFrame, uint8(tag))
	}
}

func encodeRaw(data []byte) []byte {
	out := make([]byte, tagSize+len(data))
	out[0] = byte(None)
	copy(out[tagSize:], data)
	return out
}
