package producer

import (
	"time"

	"github.com/sage-x-project/audioslice/sliceid"
)

// Config enumerates every producer-side configuration field named in
// SPEC_FULL.md §1.3 / spec.md §6.
type Config struct {
	SliceDurationMs             int             `yaml:"sliceDurationMs"`
	CompressionLevel            int             `yaml:"compressionLevel"`
	RandomizeSliceLength        bool            `yaml:"randomizeSliceLength"`
	SliceLengthVariance         float64         `yaml:"sliceLengthVariance"`
	PrewarmSlices               int             `yaml:"prewarmSlices"`
	PrewarmConcurrency          int             `yaml:"prewarmConcurrency"`
	AdaptiveCompression         bool            `yaml:"adaptiveCompression"`
	ServerCacheSize             int             `yaml:"serverCacheSize"`
	ServerCacheTTLMs            int             `yaml:"serverCacheTtlMs"`
	TrackProcessingConcurrency  int             `yaml:"trackProcessingConcurrency"`
	PrewarmFirstTrack           bool            `yaml:"prewarmFirstTrack"`
	SliceIDGenerator            sliceid.Variant `yaml:"sliceIdGenerator"`
}

// DefaultConfig matches the spec's enumerated defaults.
func DefaultConfig() Config {
	return Config{
		SliceDurationMs:            5000,
		CompressionLevel:           6,
		RandomizeSliceLength:       false,
		SliceLengthVariance:        0.4,
		PrewarmSlices:              0,
		PrewarmConcurrency:         3,
		AdaptiveCompression:        true,
		ServerCacheSize:            10,
		ServerCacheTTLMs:           300000,
		TrackProcessingConcurrency: 3,
		PrewarmFirstTrack:          true,
		SliceIDGenerator:           sliceid.VariantNanoid,
	}
}

// IdleTTL and SweepInterval are fixed per spec §4.6 / §6 ("idle-TTL (30 min,
// fixed)"), not configurable.
const (
	IdleTTL       = 30 * time.Minute
	SweepInterval = 5 * time.Minute
)
