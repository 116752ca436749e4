package consumer

import (
	"context"
	"sync"

	"github.com/sage-x-project/audioslice/internal/aerrors"
	"github.com/sage-x-project/audioslice/internal/metrics"
)

// PlaybackController is the boundary component that drives currentIndex,
// consults BufferStrategy/PrefetchStrategy, and reports buffer-underrun
// events. It does not drive device timing; it publishes decoded PCM and
// lets an external sink own playback.
type PlaybackController struct {
	mu sync.Mutex

	loader           *SliceLoader
	bufferStrategy   BufferStrategy
	prefetchStrategy PrefetchStrategy

	sliceIDs     []string
	currentIndex int
	playing      bool
}

// NewPlaybackController binds a controller to a loader and its sliceIds, and
// the strategies that govern buffering and prefetch.
func NewPlaybackController(loader *SliceLoader, sliceIDs []string, buf BufferStrategy, pre PrefetchStrategy) *PlaybackController {
	loader.AttachPrefetchStrategy(pre)
	return &PlaybackController{
		loader:           loader,
		bufferStrategy:   buf,
		prefetchStrategy: pre,
		sliceIDs:         sliceIDs,
	}
}

// Play requires the current slice to already be decoded; if it is not, this
// is a stall and a buffer-underrun event is emitted.
func (p *PlaybackController) Play() (PCMSlice, error) {
	p.mu.Lock()
	index := p.currentIndex
	p.mu.Unlock()

	if !p.loader.Has(index) {
		p.onBufferUnderrun()
		return PCMSlice{}, aerrors.New(aerrors.Precondition, "consumer.PlaybackController.Play", nil)
	}

	p.mu.Lock()
	p.playing = true
	p.mu.Unlock()

	return p.loader.cachedSlice(index)
}

// AdvanceSlice signals completion of the current slice: marks it played,
// advances currentIndex, and lets the BufferStrategy decide whether it
// should be evicted immediately.
func (p *PlaybackController) AdvanceSlice() {
	p.mu.Lock()
	finished := p.currentIndex
	p.currentIndex++
	p.mu.Unlock()

	p.loader.MarkPlayed(finished)
	if p.bufferStrategy.OnSliceFinished(finished) {
		p.loader.Evict(finished)
	}
	p.cleanup()
}

// Seek moves currentIndex to target, consults BufferStrategy.OnSeek to drop
// now-ineligible buffered slices, and kicks a fresh prefetch from target.
func (p *PlaybackController) Seek(ctx context.Context, target int) {
	p.mu.Lock()
	current := p.currentIndex
	p.currentIndex = target
	p.mu.Unlock()

	p.loader.CancelPendingLoads()

	buffered := p.loader.BufferedIndices()
	for _, idx := range p.bufferStrategy.OnSeek(target, current, buffered) {
		p.loader.Evict(idx)
	}

	if ap, ok := p.prefetchStrategy.(*adaptivePrefetch); ok {
		ap.recordSeek(target)
	}

	go p.loader.PrefetchSlices(ctx, target, len(p.sliceIDs)-target)
}

// cleanup evicts any buffered slice the BufferStrategy now considers
// cleanup-eligible relative to currentIndex.
func (p *PlaybackController) cleanup() {
	p.mu.Lock()
	current := p.currentIndex
	p.mu.Unlock()

	for _, idx := range p.loader.BufferedIndices() {
		if p.bufferStrategy.ShouldCleanup(BufferedEntry{Index: idx}, current) {
			p.loader.Evict(idx)
		}
	}
}

// onBufferUnderrun records the stall via metrics and the PrefetchStrategy's
// starvation hook, when one is available.
func (p *PlaybackController) onBufferUnderrun() {
	metrics.BufferUnderrun.Inc()
	if ap, ok := p.prefetchStrategy.(*adaptivePrefetch); ok {
		ap.onBufferStarvation()
	}
}

// CurrentIndex returns the controller's current playback position.
func (p *PlaybackController) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentIndex
}
