package consumer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/audioslice/format"
)

func int16PCM(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func float32PCM(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

func TestDecodeWAV16BitNormalizes(t *testing.T) {
	data := int16PCM([]int16{0, 16384, -32768, 32767})
	info := format.Info{Container: format.WAV, SampleRate: 8000, Channels: 1, BitDepth: 16}

	pcm, err := decodePCM(data, info, nil)
	require.NoError(t, err)
	require.Len(t, pcm.Frames, 4)
	assert.InDelta(t, 0, pcm.Frames[0], 0.0001)
	assert.InDelta(t, 0.5, pcm.Frames[1], 0.0001)
	assert.InDelta(t, -1, pcm.Frames[2], 0.0001)
	assert.Equal(t, 8000, pcm.SampleRate)
	assert.Equal(t, 1, pcm.Channels)
}

func TestDecodeWAVIEEEFloatPassesThrough(t *testing.T) {
	data := float32PCM([]float32{0.25, -0.5})
	info := format.Info{Container: format.WAV, SampleRate: 48000, Channels: 1, BitDepth: 32, IsFloat: true}

	pcm, err := decodePCM(data, info, nil)
	require.NoError(t, err)
	require.Len(t, pcm.Frames, 2)
	assert.InDelta(t, 0.25, pcm.Frames[0], 0.0001)
	assert.InDelta(t, -0.5, pcm.Frames[1], 0.0001)
}

func TestDecodeWAV24BitSignExtends(t *testing.T) {
	// -1 as a 24-bit little-endian two's complement value.
	data := []byte{0xFF, 0xFF, 0xFF}
	info := format.Info{Container: format.WAV, SampleRate: 44100, Channels: 1, BitDepth: 24}

	pcm, err := decodePCM(data, info, nil)
	require.NoError(t, err)
	require.Len(t, pcm.Frames, 1)
	assert.InDelta(t, -1.0/8388608.0, pcm.Frames[0], 1e-9)
}

func TestDecodeWAVUnsupportedBitDepthFails(t *testing.T) {
	info := format.Info{Container: format.WAV, SampleRate: 44100, Channels: 1, BitDepth: 8}
	_, err := decodePCM([]byte{0x01}, info, nil)
	assert.Error(t, err)
}

func TestDecodePCMDispatchesNonWAVToExternalDecoder(t *testing.T) {
	info := format.Info{Container: format.MP3, SampleRate: 44100, Channels: 2}
	_, err := decodePCM([]byte{0xFF, 0xFB}, info, nil)
	require.Error(t, err, "NoExternalDecoder must fail mp3/flac/ogg without a supplied decoder")
}

type stubDecoder struct {
	result PCMSlice
	err    error
}

func (s stubDecoder) Decode(data []byte, info format.Info) (PCMSlice, error) {
	return s.result, s.err
}

func TestDecodePCMUsesSuppliedExternalDecoder(t *testing.T) {
	info := format.Info{Container: format.MP3}
	want := PCMSlice{Frames: []float32{0.1, 0.2}, SampleRate: 44100, Channels: 1}
	pcm, err := decodePCM([]byte{0xFF, 0xFB}, info, stubDecoder{result: want})
	require.NoError(t, err)
	assert.Equal(t, want, pcm)
}

func TestPCMSliceFrameCount(t *testing.T) {
	pcm := PCMSlice{Frames: make([]float32, 10), Channels: 2}
	assert.Equal(t, 5, pcm.FrameCount())

	empty := PCMSlice{Frames: make([]float32, 10), Channels: 0}
	assert.Equal(t, 0, empty.FrameCount())
}
