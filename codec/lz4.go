package codec

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v4"
)

// LZ4 frame layout after the tag byte:
// [UncompressedSize uint32][block...]
const lz4HeaderSize = 4

func encodeLZ4(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return encodeRaw(data), nil
	}

	bound := lz4.CompressBlockBound(len(data))
	out := make([]byte, tagSize+lz4HeaderSize+bound)

	var c lz4.Compressor
	n, err := c.CompressBlock(data, out[tagSize+lz4HeaderSize:])
	if err != nil || n == 0 || n >= len(data) {
		// Incompressible (or the block API gave up): store raw.
		return encodeRaw(data), nil
	}

	out[0] = byte(LZ4)
	binary.LittleEndian.PutUint32(out[tagSize:], uint32(len(data)))
	return out[:tagSize+lz4HeaderSize+n], nil
}

func decodeLZ4(body []byte) ([]byte, error) {
	if len(body) < lz4HeaderSize {
		return nil, ErrTruncatedFrame
	}
	size := binary.LittleEndian.Uint32(body)
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(body[lz4HeaderSize:], out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
