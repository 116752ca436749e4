package consumer

import (
	"encoding/binary"
	"math"

	"github.com/sage-x-project/audioslice/format"
	"github.com/sage-x-project/audioslice/internal/aerrors"
)

// PCMSlice is decoded, interleaved float32 PCM normalized to [-1, 1].
type PCMSlice struct {
	Frames     []float32
	SampleRate int
	Channels   int
}

// FrameCount reports the number of per-channel frames held in Frames.
func (p PCMSlice) FrameCount() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Frames) / p.Channels
}

// ExternalDecoder decodes an already entropy-coded buffer (mp3, flac, ogg)
// into PCM. The core does not implement entropy decoding; it requires only
// that an external collaborator yields float32 PCM at the track's sample
// rate. NoExternalDecoder is the zero-value default and always fails.
type ExternalDecoder interface {
	Decode(data []byte, info format.Info) (PCMSlice, error)
}

type noExternalDecoder struct{}

func (noExternalDecoder) Decode(data []byte, info format.Info) (PCMSlice, error) {
	return PCMSlice{}, aerrors.New(aerrors.Decode, "consumer.noExternalDecoder.Decode", nil)
}

// NoExternalDecoder is the default ExternalDecoder: it always fails with
// ErrorKind::Decode. Callers that need mp3/flac/ogg playback must supply
// their own platform decoder.
var NoExternalDecoder ExternalDecoder = noExternalDecoder{}

// decodePCM dispatches on container: wav is decoded directly against the
// track's bitDepth/channels; everything else is handed to the external
// decoder.
func decodePCM(data []byte, info format.Info, ext ExternalDecoder) (PCMSlice, error) {
	switch info.Container {
	case format.WAV:
		return decodeWAV(data, info)
	default:
		if ext == nil {
			ext = NoExternalDecoder
		}
		return ext.Decode(data, info)
	}
}

// decodeWAV interprets a raw PCM buffer (already sliced to one track
// segment, no RIFF framing) per bitDepth and channels into interleaved
// float32 normalized to [-1, 1].
func decodeWAV(data []byte, info format.Info) (PCMSlice, error) {
	channels := info.Channels
	if channels <= 0 {
		channels = 1
	}
	bitDepth := info.BitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	bytesPerSample := bitDepth / 8
	if bytesPerSample <= 0 {
		return PCMSlice{}, aerrors.New(aerrors.Decode, "consumer.decodeWAV", nil)
	}

	isFloat := bitDepth == 32 && info.IsFloatFormat()
	n := len(data) / bytesPerSample
	frames := make([]float32, n)

	for i := 0; i < n; i++ {
		off := i * bytesPerSample
		switch {
		case isFloat:
			bits := binary.LittleEndian.Uint32(data[off : off+4])
			frames[i] = math.Float32frombits(bits)
		case bitDepth == 16:
			v := int16(binary.LittleEndian.Uint16(data[off : off+2]))
			frames[i] = float32(v) / 32768.0
		case bitDepth == 24:
			b0, b1, b2 := data[off], data[off+1], data[off+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}
			frames[i] = float32(v) / 8388608.0
		case bitDepth == 32:
			v := int32(binary.LittleEndian.Uint32(data[off : off+4]))
			frames[i] = float32(v) / 2147483648.0
		default:
			return PCMSlice{}, aerrors.New(aerrors.Decode, "consumer.decodeWAV", nil)
		}
	}

	return PCMSlice{Frames: frames, SampleRate: info.SampleRate, Channels: channels}, nil
}
