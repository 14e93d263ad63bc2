package compression

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func testBlock() []byte {
	return bytes.Repeat([]byte("minecraft:stone minecraft:dirt "), 64)
}

func TestNewRegistryLevel(t *testing.T) {
	for level := 0; level <= MaxLevel; level++ {
		reg, err := NewRegistry(level, RawDeflate)
		require.NoError(t, err)
		require.Equal(t, level, reg.Level())
	}
	for _, level := range []int{-1, 11, 255} {
		_, err := NewRegistry(level, RawDeflate)
		require.ErrorIs(t, err, ErrInvalidLevel)
	}
}

func TestNewRegistryPreferred(t *testing.T) {
	_, err := NewRegistry(6, ID(3))
	var unknown *UnknownCodecError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, ID(3), unknown.Codec)
}

func TestRegistryIDs(t *testing.T) {
	reg, err := NewRegistry(6, Zlib)
	require.NoError(t, err)
	require.Equal(t, []ID{None, Snappy, Zlib, RawDeflate}, reg.IDs())
	require.Equal(t, Zlib, reg.Preferred())
}

func TestRoundTrip(t *testing.T) {
	for _, level := range []int{0, 1, 6, 10} {
		reg, err := NewRegistry(level, RawDeflate)
		require.NoError(t, err)
		for _, id := range reg.IDs() {
			t.Run(id.String(), func(t *testing.T) {
				encoded, err := reg.Encode(id, testBlock())
				require.NoError(t, err)
				decoded, err := reg.Decode(id, encoded)
				require.NoError(t, err)
				require.Equal(t, testBlock(), decoded)
			})
		}
	}
}

func TestRoundTripPooledWriters(t *testing.T) {
	reg, err := NewRegistry(10, RawDeflate)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		block := bytes.Repeat([]byte{byte(i)}, 100*(i+1))
		for _, id := range []ID{Zlib, RawDeflate} {
			encoded, err := reg.Encode(id, block)
			require.NoError(t, err)
			decoded, err := reg.Decode(id, encoded)
			require.NoError(t, err)
			require.Equal(t, block, decoded)
		}
	}
}

func TestDecodeTruncated(t *testing.T) {
	reg, err := NewRegistry(10, RawDeflate)
	require.NoError(t, err)
	for _, id := range []ID{Zlib, RawDeflate} {
		t.Run(id.String(), func(t *testing.T) {
			encoded, err := reg.Encode(id, testBlock())
			require.NoError(t, err)

			_, err = reg.Decode(id, encoded[:len(encoded)/2])
			var cerr *CompressionError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			require.Equal(t, id, cerr.Codec)
			require.NotEmpty(t, cerr.Error())
		})
	}
}

func TestDecodeZlibChecksum(t *testing.T) {
	reg, err := NewRegistry(6, Zlib)
	require.NoError(t, err)
	encoded, err := reg.Encode(Zlib, testBlock())
	require.NoError(t, err)
	encoded[len(encoded)-1] ^= 0xff

	_, err = reg.Decode(Zlib, encoded)
	var cerr *CompressionError
	require.True(t, errors.As(err, &cerr))
}

func TestDecodeZlibHeader(t *testing.T) {
	reg, err := NewRegistry(6, Zlib)
	require.NoError(t, err)
	_, err = reg.Decode(Zlib, []byte{0x00, 0x00, 0x01, 0x02})
	var cerr *CompressionError
	require.True(t, errors.As(err, &cerr))
}

func TestDecodeUnknownCodec(t *testing.T) {
	reg, err := NewRegistry(6, RawDeflate)
	require.NoError(t, err)
	_, err = reg.Decode(ID(9), []byte{1, 2, 3})
	var unknown *UnknownCodecError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, ID(9), unknown.Codec)

	_, err = reg.Encode(ID(9), []byte{1, 2, 3})
	require.True(t, errors.As(err, &unknown))
}

func BenchmarkRawDeflateEncode(b *testing.B) {
	reg, err := NewRegistry(10, RawDeflate)
	if err != nil {
		b.Fatal(err)
	}
	block := testBlock()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = reg.Encode(RawDeflate, block)
	}
}
