package consumer

import "github.com/sage-x-project/audioslice/retry"

// Config enumerates every consumer-side configuration field named in
// SPEC_FULL.md §1.3 / spec.md §6.
type Config struct {
	PrefetchConcurrency int           `yaml:"prefetchConcurrency"`
	RetryPolicy         retry.Policy  `yaml:"retryConfig"`
	BufferStrategy      BufferKind    `yaml:"bufferStrategy"`
	PrefetchStrategy    PrefetchKind  `yaml:"prefetchStrategy"`
}

// DefaultConfig matches the spec's enumerated defaults.
func DefaultConfig() Config {
	return Config{
		PrefetchConcurrency: 3,
		RetryPolicy:         retry.DefaultPolicy,
		BufferStrategy:      BufferBalanced,
		PrefetchStrategy:    PrefetchLinear,
	}
}
