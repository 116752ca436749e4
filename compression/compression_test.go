package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/audioslice/internal/aerrors"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	d := New()
	data := bytes.Repeat([]byte("audioslice pcm payload "), 64)

	compressed, err := d.Compress(data, 6)
	require.NoError(t, err)

	out, err := d.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestCompressLevelClamped(t *testing.T) {
	d := New()
	data := []byte("hello")

	_, err := d.Compress(data, -5)
	require.NoError(t, err)

	_, err = d.Compress(data, 99)
	require.NoError(t, err)
}

func TestDecompressMalformedInput(t *testing.T) {
	d := New()
	_, err := d.Decompress([]byte{0xFF, 0xFF, 0xFF})
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.Decode))
}

func TestAdaptiveLevelStoresEntropyCodedFormats(t *testing.T) {
	assert.Equal(t, 0, AdaptiveLevel("mp3", 6))
	assert.Equal(t, 0, AdaptiveLevel("flac", 9))
	assert.Equal(t, 0, AdaptiveLevel("ogg", 3))
	assert.Equal(t, 6, AdaptiveLevel("wav", 6))
}
