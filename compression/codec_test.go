package compression_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KredoKodo/KopioRapido-sub000/compression"
)

func TestCompressDecompress_RoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 50000)

	var compressed bytes.Buffer

	err := compression.CompressStream(context.Background(), bytes.NewReader(data), &compressed, nil, nil)
	require.NoError(t, err)
	require.Less(t, compressed.Len(), len(data))

	var decompressed bytes.Buffer

	err = compression.DecompressStream(context.Background(), &compressed, &decompressed, nil, nil)
	require.NoError(t, err)
	require.Equal(t, data, decompressed.Bytes())
}

func TestCompressDecompress_RandomDataRoundTrip(t *testing.T) {
	data := make([]byte, 200000)
	_, err := rand.Read(data)
	require.NoError(t, err)

	var compressed bytes.Buffer
	require.NoError(t, compression.CompressStream(context.Background(), bytes.NewReader(data), &compressed, nil, nil))

	var decompressed bytes.Buffer
	require.NoError(t, compression.DecompressStream(context.Background(), &compressed, &decompressed, nil, nil))

	require.Equal(t, data, decompressed.Bytes())
}

func TestShouldCompress(t *testing.T) {
	require.True(t, compression.ShouldCompress("build.log"))
	require.False(t, compression.ShouldCompress("movie.mp4"))
}

func TestCompressStream_ProgressCallback(t *testing.T) {
	data := bytes.Repeat([]byte{0}, 5<<20)

	var calls int

	var compressed bytes.Buffer
	err := compression.CompressStream(context.Background(), bytes.NewReader(data), &compressed, func(p compression.Progress) {
		calls++
	}, nil)
	require.NoError(t, err)
	require.GreaterOrEqual(t, calls, 1)
}
