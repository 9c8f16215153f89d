package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_AllTypes(t *testing.T) {
	compressible := bytes.Repeat([]byte("encoded image row "), 512)
	payloads := map[string][]byte{
		"empty":         {},
		"tiny":          []byte("x"),
		"compressible":  compressible,
		"already-dense": {0x89, 0x50, 0x4e, 0x47, 0xde, 0xad, 0xbe, 0xef, 0x13, 0x37},
	}

	for _, typ := range []Type{None, LZ4, Zstd} {
		for name, payload := range payloads {
			framed, err := Encode(payload, typ)
			require.NoError(t, err, "%s/%s", typ, name)

			got, err := Decode(framed)
			require.NoError(t, err, "%s/%s", typ, name)
			assert.Equal(t, payload, got, "%s/%s", typ, name)
		}
	}
}

func TestEncode_CompressionShrinksWhenItHelps(t *testing.T) {
	payload := bytes.Repeat([]byte("the same scanline over and over "), 1024)

	for _, typ := range []Type{LZ4, Zstd} {
		framed, err := Encode(payload, typ)
		require.NoError(t, err)
		assert.Less(t, len(framed), len(payload), "%s should shrink repetitive data", typ)
		assert.Equal(t, byte(typ), framed[0])
	}
}

func TestEncode_IncompressibleFallsBackToRaw(t *testing.T) {
	// High-entropy bytes: neither algorithm can win, so the frame must
	// carry the None tag and the verbatim payload.
	payload := make([]byte, 1024)
	state := uint32(0x9e3779b9)
	for i := range payload {
		state = state*1664525 + 1013904223
		payload[i] = byte(state >> 24)
	}

	for _, typ := range []Type{LZ4, Zstd} {
		framed, err := Encode(payload, typ)
		require.NoError(t, err)
		assert.Equal(t, byte(None), framed[0], "%s must store incompressible data raw", typ)
		assert.Equal(t, len(payload)+1, len(framed))

		got, err := Decode(framed)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestDecode_CrossSetting(t *testing.T) {
	// A cache reconfigured from zstd to lz4 must still read old files.
	payload := bytes.Repeat([]byte("cold payload "), 256)
	framed, err := Encode(payload, Zstd)
	require.NoError(t, err)

	got, err := Decode(framed)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrTruncatedFrame)

	_, err = Decode([]byte{0xff, 1, 2, 3})
	assert.ErrorIs(t, err, ErrUnknownFrame)

	_, err = Decode([]byte{byte(LZ4), 1, 2}) // header cut short
	assert.ErrorIs(t, err, ErrTruncatedFrame)

	_, err = Encode(nil, Type(9))
	assert.ErrorIs(t, err, ErrUnknownFrame)
}

func TestTypeString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "lz4", LZ4.String())
	assert.Equal(t, "zstd", Zstd.String())
	assert.Equal(t, "unknown(7)", Type(7).String())
}
