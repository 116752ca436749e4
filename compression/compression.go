// Package compression implements the CompressionProcessor contract: lossless
// compress/decompress of byte buffers, with an adaptive policy that forces
// store-only compression for already entropy-coded source formats.
package compression

import (
	"bytes"
	"compress/flate"
	"io"

	"github.com/sage-x-project/audioslice/internal/aerrors"
)

// Processor is the CompressionProcessor contract.
type Processor interface {
	Compress(data []byte, level int) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// DeflateProcessor is the reference implementation.
type DeflateProcessor struct{}

// New returns the reference CompressionProcessor.
func New() *DeflateProcessor {
	return &DeflateProcessor{}
}

// entropyCodedFormats are source containers already compressed by an audio
// codec (lossy or, for flac, lossless); re-compressing them with DEFLATE spends CPU for negligible gain.
var entropyCodedFormats = map[string]bool{
	"mp3":  true,
	"flac": true,
	"ogg":  true,
	"aac":  true,
}

// AdaptiveLevel returns the compression level to use for a given source
// format: level 0 (store) for already entropy-coded formats, else the
// caller's requested level.
func AdaptiveLevel(format string, requested int) int {
	if entropyCodedFormats[format] {
		return flate.NoCompression
	}
	return requested
}

// Compress deflates data at the given level, clamped to [0,9].
func (d *DeflateProcessor) Compress(data []byte, level int) ([]byte, error) {
	if level < 0 {
		level = 0
	}
	if level > 9 {
		level = 9
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, aerrors.New(aerrors.Malformed, "compression.Compress", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, aerrors.New(aerrors.Malformed, "compression.Compress", err)
	}
	if err := w.Close(); err != nil {
		return nil, aerrors.New(aerrors.Malformed, "compression.Compress", err)
	}
	return buf.Bytes(), nil
}

// Decompress inflates data produced by Compress.
func (d *DeflateProcessor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, aerrors.New(aerrors.Decode, "compression.Decompress", err)
	}
	return out, nil
}
