package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrefetchStrategyResolvesKind(t *testing.T) {
	assert.IsType(t, noPrefetch{}, NewPrefetchStrategy(PrefetchNone, 0))
	assert.IsType(t, &adaptivePrefetch{}, NewPrefetchStrategy(PrefetchAdaptive, 0))
	assert.IsType(t, &linearPrefetch{}, NewPrefetchStrategy(PrefetchLinear, 0))
}

func TestNoPrefetchIssuesNothing(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchNone, 0)
	assert.Empty(t, p.GetSlicesToPrefetch(0, 100, nil, true))
}

func TestLinearPrefetchWindowsAheadOfCurrent(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchLinear, 500).(*linearPrefetch)
	got := p.GetSlicesToPrefetch(5, 100, nil, true)
	assert.Equal(t, []int{6, 7, 8}, got)
}

func TestLinearPrefetchSkipsAlreadyBufferedAndRespectsTotal(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchLinear, 500).(*linearPrefetch)
	got := p.GetSlicesToPrefetch(8, 10, []int{9}, true)
	assert.Empty(t, got, "the only candidate ahead of current is already buffered, and the rest exceed total")
}

func TestLinearPrefetchWidensAheadOnHighFailureRate(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchLinear, 500).(*linearPrefetch)
	require.Equal(t, 3, p.ahead)

	p.OnPrefetchComplete(1, false, assertErr())
	p.OnPrefetchComplete(2, false, assertErr())
	p.OnPrefetchComplete(3, true, nil)

	assert.Greater(t, p.ahead, 3)
}

func TestLinearPrefetchWidensAheadOnSlowDownloads(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchLinear, 100).(*linearPrefetch)
	p.recordDownloadTime(50)
	assert.Equal(t, 3, p.ahead, "one fast sample must not widen the window")

	p.recordDownloadTime(500)
	assert.Greater(t, p.ahead, 3)
}

func TestLinearPrefetchAheadNeverExceedsMax(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchLinear, 10).(*linearPrefetch)
	for i := 0; i < 10; i++ {
		p.recordDownloadTime(10000)
	}
	assert.LessOrEqual(t, p.ahead, p.maxAhead)
}

func TestLinearPrefetchPriorityIsDistanceFromCurrent(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchLinear, 500).(*linearPrefetch)
	assert.Equal(t, 3, p.Priority(8, 5))
	assert.Equal(t, 3, p.Priority(2, 5))
}

func TestAdaptivePrefetchScalesByPlaybackState(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchAdaptive, 0).(*adaptivePrefetch)
	playing := p.GetSlicesToPrefetch(0, 100, nil, true)
	paused := p.GetSlicesToPrefetch(0, 100, nil, false)
	assert.Greater(t, len(playing), len(paused))
}

func TestAdaptivePrefetchIncrementsStarvationOnFailure(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchAdaptive, 0).(*adaptivePrefetch)
	before := p.GetSlicesToPrefetch(0, 100, nil, true)
	p.OnPrefetchComplete(1, false, assertErr())
	p.OnPrefetchComplete(2, false, assertErr())
	p.OnPrefetchComplete(3, false, assertErr())
	after := p.GetSlicesToPrefetch(0, 100, nil, true)
	assert.GreaterOrEqual(t, len(after), len(before))
}

func TestAdaptivePrefetchPredictsSeekTargetFromHistory(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchAdaptive, 0).(*adaptivePrefetch)
	assert.Equal(t, 5, p.predictSeekTarget(5), "no history predicts no movement")

	p.recordSeek(10)
	p.recordSeek(20)
	assert.Equal(t, 5+15, p.predictSeekTarget(5))
}

func TestAdaptivePrefetchSeekHistoryBounded(t *testing.T) {
	p := NewPrefetchStrategy(PrefetchAdaptive, 0).(*adaptivePrefetch)
	for i := 0; i < 20; i++ {
		p.recordSeek(i)
	}
	assert.Len(t, p.seekHistory, 8)
}

func assertErr() error {
	return errPrefetchTest
}

var errPrefetchTest = &prefetchTestError{}

type prefetchTestError struct{}

func (*prefetchTestError) Error() string { return "simulated prefetch failure" }
