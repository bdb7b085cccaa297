package compress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvarch/palog/compress"
	"github.com/kvarch/palog/format"
)

func TestCodecsRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog, repeated: the quick brown fox jumps over the lazy dog")

	codecs := map[string]compress.Codec{
		"noop": compress.NewNoOpCompressor(),
		"s2":   compress.NewS2Compressor(),
		"lz4":  compress.NewLZ4Compressor(),
		"zstd": compress.NewZstdCompressor(),
	}

	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			compressed, err := c.Compress(data)
			require.NoError(t, err)

			got, err := c.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestCreateCodecRejectsUnknownType(t *testing.T) {
	_, err := compress.CreateCodec(format.CompressionType(0xFF), "volume")
	require.Error(t, err)
}

func TestGetCodecBuiltins(t *testing.T) {
	for _, ct := range []format.CompressionType{format.CompressionNone, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		c, err := compress.GetCodec(ct)
		require.NoError(t, err)
		require.NotNil(t, c)
	}
}
