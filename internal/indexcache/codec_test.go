package indexcache

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecsRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("#MRZ entry offset size time "), 4096)
	for _, name := range []string{"none", "zstd", "s2", "lz4"} {
		t.Run(name, func(t *testing.T) {
			id, codec, err := CodecByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, codec.Name())
			assert.Same(t, codecs[id], codec)

			packed, err := codec.Compress(data)
			require.NoError(t, err)
			if name != "none" {
				assert.Less(t, len(packed), len(data))
			}
			out, err := codec.Decompress(packed)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestCodecEmptyInput(t *testing.T) {
	for _, name := range []string{"zstd", "s2", "lz4"} {
		_, codec, err := CodecByName(name)
		require.NoError(t, err)
		packed, err := codec.Compress(nil)
		require.NoError(t, err, name)
		out, err := codec.Decompress(packed)
		require.NoError(t, err, name)
		assert.Empty(t, out, name)
	}
}

func TestCodecByNameDefaultAndUnknown(t *testing.T) {
	id, codec, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, codecZstd, id)
	assert.Equal(t, DefaultCodec, codec.Name())

	_, _, err = CodecByName("brotli")
	assert.ErrorContains(t, err, "brotli")
}

func TestLZ4StoresIncompressibleInput(t *testing.T) {
	_, codec, err := CodecByName("lz4")
	require.NoError(t, err)
	data := []byte{0x9c, 0x11, 0x42, 0x07, 0xe3}
	packed, err := codec.Compress(data)
	require.NoError(t, err)
	out, err := codec.Decompress(packed)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	_, err = codec.Decompress([]byte{7, 1, 2})
	assert.Error(t, err)
}
