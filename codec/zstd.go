package codec

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Encoder/decoder construction is expensive; share them process-wide. Both
// are safe for concurrent use with EncodeAll/DecodeAll.
var (
	zstdEncoderOnce sync.Once
	zstdEncoder     *zstd.Encoder

	zstdDecoderOnce sync.Once
	zstdDecoder     *zstd.Decoder
)

func getZstdEncoder() *zstd.Encoder {
	zstdEncoderOnce.Do(func() {
		// SpeedDefault balances ratio against decode latency.
		zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	return zstdEncoder
}

func getZstdDecoder() *zstd.Decoder {
	zstdDecoderOnce.Do(func() {
		zstdDecoder, _ = zstd.NewReader(nil)
	})
	return zstdDecoder
}

func encodeZstd(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return encodeRaw(data), nil
	}

	out := make([]byte, tagSize, tagSize+len(data)/2)
	out[0] = byte(Zstd)
	out = getZstdEncoder().EncodeAll(data, out)

	if len(out) >= tagSize+len(data) {
		return encodeRaw(data), nil
	}
	return out, nil
}

func decodeZstd(body []byte) ([]byte, error) {
	return getZstdDecoder().DecodeAll(body, nil)
}
