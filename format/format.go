// Package format implements the FormatParser contract: extracting the
// handful of fields the core needs from the initial bytes of an audio
// asset, without decoding audio data itself.
package format

import (
	"encoding/binary"
)

// Container names the recognized asset containers.
type Container string

const (
	WAV     Container = "wav"
	MP3     Container = "mp3"
	FLAC    Container = "flac"
	OGG     Container = "ogg"
	Unknown Container = "unknown"
)

// Info is everything the core needs from a parsed asset header.
type Info struct {
	Container        Container
	SampleRate       int
	Channels         int
	BitDepth         int
	IsFloat          bool // true when samples are IEEE float rather than integer PCM
	DataOffset       int
	DataLength       int
	EstimatedSamples int // only meaningful for MP3; 0 otherwise
}

// IsFloatFormat reports whether samples at this Info's BitDepth are IEEE
// float rather than integer PCM.
func (i Info) IsFloatFormat() bool {
	return i.IsFloat
}

const (
	defaultSampleRate = 44100
	defaultChannels   = 2
	defaultBitDepth   = 16
)

// Parse sniffs data's container and extracts its header fields. Unknown
// formats default to 44.1kHz/2ch/16-bit over the whole buffer.
func Parse(data []byte) Info {
	switch {
	case isWAV(data):
		return parseWAV(data)
	case isFLAC(data):
		return parseFLAC(data)
	case isOGG(data):
		return parseOGG(data)
	case isMP3(data):
		return parseMP3(data)
	default:
		return Info{
			Container:  Unknown,
			SampleRate: defaultSampleRate,
			Channels:   defaultChannels,
			BitDepth:   defaultBitDepth,
			DataOffset: 0,
			DataLength: len(data),
		}
	}
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isFLAC(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == "fLaC"
}

func isOGG(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == "OggS"
}

// isMP3 recognizes a leading ID3v2 tag or a bare MPEG frame sync word
// (11 set bits) at the start of data.
func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// parseWAV walks the RIFF chunk list looking for "fmt " and "data".
func parseWAV(data []byte) Info {
	info := Info{
		Container:  WAV,
		SampleRate: defaultSampleRate,
		Channels:   defaultChannels,
		BitDepth:   defaultBitDepth,
	}
	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		switch chunkID {
		case "fmt ":
			if body+16 <= len(data) {
				audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
				info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
				info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
				info.BitDepth = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
				info.IsFloat = audioFormat == 3 // WAVE_FORMAT_IEEE_FLOAT
			}
		case "data":
			info.DataOffset = body
			info.DataLength = chunkSize
			if info.DataOffset+info.DataLength > len(data) {
				info.DataLength = len(data) - info.DataOffset
			}
			return info
		}
		pos = body + chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	// No data chunk found; default the window to the whole buffer.
	info.DataOffset = 0
	info.DataLength = len(data)
	return info
}

// parseFLAC reads only the STREAMINFO metadata block (always the first
// block, immediately after the 4-byte "fLaC" marker).
func parseFLAC(data []byte) Info {
	info := Info{
		Container:  FLAC,
		SampleRate: defaultSampleRate,
		Channels:   defaultChannels,
		BitDepth:   defaultBitDepth,
		DataOffset: 0,
		DataLength: len(data),
	}
	if len(data) < 4+4+34 {
		return info
	}
	block := data[4:]
	// blockType := block[0] & 0x7f // STREAMINFO == 0, assumed first block.
	streamInfo := block[4:38]
	// Bits 20 sample rate, 3 channels-1, 5 bits-per-sample-1, 36 bits total samples.
	sampleRate := (uint32(streamInfo[10]) << 12) | (uint32(streamInfo[11]) << 4) | (uint32(streamInfo[12]) >> 4)
	channels := ((streamInfo[12] >> 1) & 0x07) + 1
	bitDepth := (((streamInfo[12] & 0x01) << 4) | (streamInfo[13] >> 4)) + 1
	info.SampleRate = int(sampleRate)
	info.Channels = int(channels)
	info.BitDepth = int(bitDepth)
	return info
}

// parseOGG defaults sample metadata, since the fields live in the embedded
// codec's identification packet (out of scope per spec §1); the window
// covers the whole buffer.
func parseOGG(data []byte) Info {
	return Info{
		Container:  OGG,
		SampleRate: defaultSampleRate,
		Channels:   defaultChannels,
		BitDepth:   defaultBitDepth,
		DataOffset: 0,
		DataLength: len(data),
	}
}

// id3v2TagSize returns the skip length for a leading ID3v2 tag, or 0 if data
// doesn't start with one.
func id3v2TagSize(data []byte) int {
	if len(data) < 10 || string(data[0:3]) != "ID3" {
		return 0
	}
	size := (int(data[6]) << 21) | (int(data[7]) << 14) | (int(data[8]) << 7) | int(data[9])
	return size + 10
}

const (
	mp3ScanFrameLimit = 1000
	mp3ScanByteLimit  = 100 * 1024
)

var mp3SampleRates = [4][4]int{
	// MPEG version index -> sample rate index
	{11025, 12000, 8000, 0},  // MPEG 2.5
	{0, 0, 0, 0},              // reserved
	{22050, 24000, 16000, 0}, // MPEG 2
	{44100, 48000, 32000, 0}, // MPEG 1
}

var mp3BitRatesV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

// parseMP3 skips any ID3v2 prefix, scans frames up to mp3ScanFrameLimit or
// mp3ScanByteLimit, and extrapolates a total sample estimate linearly.
func parseMP3(data []byte) Info {
	info := Info{
		Container:  MP3,
		SampleRate: defaultSampleRate,
		Channels:   defaultChannels,
		BitDepth:   16,
	}
	offset := id3v2TagSize(data)
	info.DataOffset = offset
	info.DataLength = len(data) - offset
	if info.DataLength < 0 {
		info.DataLength = 0
	}

	framesScanned := 0
	bytesScanned := 0
	samplesPerFrame := 1152
	pos := offset
	for pos+4 <= len(data) && framesScanned < mp3ScanFrameLimit && bytesScanned < mp3ScanByteLimit {
		if data[pos] != 0xFF || data[pos+1]&0xE0 != 0xE0 {
			pos++
			bytesScanned++
			continue
		}
		versionIdx := (data[pos+1] >> 3) & 0x03
		layerIdx := (data[pos+1] >> 1) & 0x03
		bitrateIdx := (data[pos+2] >> 4) & 0x0F
		sampleRateIdx := (data[pos+2] >> 2) & 0x03
		padding := (data[pos+2] >> 1) & 0x01

		sampleRate := mp3SampleRates[versionIdx][sampleRateIdx]
		if sampleRate == 0 || layerIdx != 1 /* Layer III */ {
			pos++
			bytesScanned++
			continue
		}
		bitrate := mp3BitRatesV1L3[bitrateIdx]
		if bitrate == 0 {
			pos++
			bytesScanned++
			continue
		}
		info.SampleRate = sampleRate
		frameSize := (144*bitrate*1000)/sampleRate + int(padding)
		if frameSize <= 0 {
			pos++
			bytesScanned++
			continue
		}
		framesScanned++
		pos += frameSize
		bytesScanned += frameSize
	}

	if framesScanned > 0 && bytesScanned > 0 {
		totalDataBytes := info.DataLength
		avgFrameBytes := float64(bytesScanned) / float64(framesScanned)
		estFrames := float64(totalDataBytes) / avgFrameBytes
		info.EstimatedSamples = int(estFrames * float64(samplesPerFrame))
	}
	return info
}
