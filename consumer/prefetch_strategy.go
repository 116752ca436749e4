package consumer

import "sync"

// PrefetchKind names a reference PrefetchStrategy for configuration.
type PrefetchKind string

const (
	PrefetchLinear   PrefetchKind = "linear"
	PrefetchAdaptive PrefetchKind = "adaptive"
	PrefetchNone     PrefetchKind = "none"
)

// PrefetchStrategy is the capability interface the PlaybackController
// consults to decide which slices to warm ahead of playback.
type PrefetchStrategy interface {
	// GetSlicesToPrefetch returns indices to prefetch given the current
	// position, total slice count, already-buffered indices, and playback
	// state.
	GetSlicesToPrefetch(current, total int, buffered []int, isPlaying bool) []int
	// OnPrefetchComplete records the outcome of one prefetch attempt.
	OnPrefetchComplete(index int, success bool, err error)
	// Priority ranks index relative to current; lower is more urgent.
	Priority(index, current int) int
}

// NewPrefetchStrategy constructs the named reference strategy.
func NewPrefetchStrategy(kind PrefetchKind, expectedDownloadTimeMs int) PrefetchStrategy {
	switch kind {
	case PrefetchAdaptive:
		return &adaptivePrefetch{baseline: 3}
	case PrefetchNone:
		return noPrefetch{}
	default:
		if expectedDownloadTimeMs <= 0 {
			expectedDownloadTimeMs = 500
		}
		return &linearPrefetch{ahead: 3, maxAhead: 10, expectedDownloadTimeMs: expectedDownloadTimeMs}
	}
}

// noPrefetch issues no prefetch work.
type noPrefetch struct{}

func (noPrefetch) GetSlicesToPrefetch(int, int, []int, bool) []int { return nil }
func (noPrefetch) OnPrefetchComplete(int, bool, error)             {}
func (noPrefetch) Priority(index, current int) int                 { return index - current }

// linearPrefetch prefetches a fixed window ahead of (and optionally behind)
// current, adaptively widening the window when observed download time or
// failure rate degrades.
type linearPrefetch struct {
	mu sync.Mutex

	ahead    int
	behind   int
	maxAhead int

	expectedDownloadTimeMs int
	observedMeanMs         float64
	samples                int
	failures               int
	attempts               int
}

func (l *linearPrefetch) GetSlicesToPrefetch(current, total int, buffered []int, isPlaying bool) []int {
	l.mu.Lock()
	ahead, behind := l.ahead, l.behind
	l.mu.Unlock()

	have := make(map[int]bool, len(buffered))
	for _, b := range buffered {
		have[b] = true
	}

	var out []int
	for i := current + 1; i <= current+ahead && i < total; i++ {
		if !have[i] {
			out = append(out, i)
		}
	}
	for i := current - 1; i >= current-behind && i >= 0; i-- {
		if !have[i] {
			out = append(out, i)
		}
	}
	return out
}

func (l *linearPrefetch) OnPrefetchComplete(index int, success bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts++
	if !success {
		l.failures++
	}
	failureRate := float64(l.failures) / float64(l.attempts)
	if failureRate > 0.2 {
		l.ahead += 2
	}
	if l.ahead > l.maxAhead {
		l.ahead = l.maxAhead
	}
}

// recordDownloadTime folds an observed per-slice download duration into the
// running mean and doubles ahead (bounded by maxAhead) once the mean exceeds
// twice the expected time.
func (l *linearPrefetch) recordDownloadTime(ms float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.samples++
	l.observedMeanMs += (ms - l.observedMeanMs) / float64(l.samples)
	if l.observedMeanMs > float64(l.expectedDownloadTimeMs)*2 {
		l.ahead *= 2
		if l.ahead > l.maxAhead {
			l.ahead = l.maxAhead
		}
	}
}

func (l *linearPrefetch) Priority(index, current int) int {
	d := index - current
	if d < 0 {
		d = -d
	}
	return d
}

// adaptivePrefetch scales its prefetch count by playback state and by the
// starvation counter, and tracks recent seek targets to predict the next
// one. Nothing updates observedDownloadRatio, so observed download time
// does not change the count.
type adaptivePrefetch struct {
	mu sync.Mutex

	baseline                int
	bufferStarvationEvents  int
	observedDownloadRatio   float64
	seekHistory             []int
}

func (a *adaptivePrefetch) GetSlicesToPrefetch(current, total int, buffered []int, isPlaying bool) []int {
	a.mu.Lock()
	count := float64(a.baseline)
	if isPlaying {
		count *= 1.3
	} else {
		count *= 0.7
	}
	if a.observedDownloadRatio > 1 {
		count *= a.observedDownloadRatio
	}
	count += float64(a.bufferStarvationEvents)
	a.mu.Unlock()

	n := int(count)
	if n < 1 {
		n = 1
	}

	have := make(map[int]bool, len(buffered))
	for _, b := range buffered {
		have[b] = true
	}
	var out []int
	for i := current + 1; i <= current+n && i < total; i++ {
		if !have[i] {
			out = append(out, i)
		}
	}
	return out
}

func (a *adaptivePrefetch) OnPrefetchComplete(index int, success bool, err error) {
	if !success {
		a.mu.Lock()
		a.bufferStarvationEvents++
		a.mu.Unlock()
	}
}

func (a *adaptivePrefetch) Priority(index, current int) int {
	d := index - current
	if d < 0 {
		d = -d
	}
	return d
}

// recordSeek appends target to the rolling seek history used to predict the
// next seek target.
func (a *adaptivePrefetch) recordSeek(target int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seekHistory = append(a.seekHistory, target)
	if len(a.seekHistory) > 8 {
		a.seekHistory = a.seekHistory[len(a.seekHistory)-8:]
	}
}

// predictSeekTarget returns current + mean(seekHistory).
func (a *adaptivePrefetch) predictSeekTarget(current int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.seekHistory) == 0 {
		return current
	}
	sum := 0
	for _, s := range a.seekHistory {
		sum += s
	}
	return current + sum/len(a.seekHistory)
}

// onBufferStarvation is the controller's starvation hook.
func (a *adaptivePrefetch) onBufferStarvation() {
	a.mu.Lock()
	a.bufferStarvationEvents++
	a.mu.Unlock()
}
