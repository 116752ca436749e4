package consumer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewBufferStrategyResolvesKind(t *testing.T) {
	assert.IsType(t, &conservativeBuffer{}, NewBufferStrategy(BufferConservative))
	assert.IsType(t, &balancedBuffer{}, NewBufferStrategy(BufferBalanced))
	assert.IsType(t, &aggressiveBuffer{}, NewBufferStrategy(BufferAggressive))
	assert.IsType(t, &balancedBuffer{}, NewBufferStrategy(BufferKind("unknown")))
}

func TestConservativeBufferDoesNotRetainDuringOrAfterPlay(t *testing.T) {
	b := NewBufferStrategy(BufferConservative)
	assert.Equal(t, 30*time.Second, b.OnSliceLoaded(0))
	assert.False(t, b.OnSlicePlaying(0))
	assert.True(t, b.OnSliceFinished(0))
}

func TestConservativeBufferCleansUpOutsideTightWindow(t *testing.T) {
	b := NewBufferStrategy(BufferConservative)
	assert.False(t, b.ShouldCleanup(BufferedEntry{Index: 5}, 5))
	assert.True(t, b.ShouldCleanup(BufferedEntry{Index: 4}, 5))
	assert.True(t, b.ShouldCleanup(BufferedEntry{Index: 10}, 5))
}

func TestConservativeBufferSeekKeepsOnlyTargetAndNext(t *testing.T) {
	b := NewBufferStrategy(BufferConservative)
	drop := b.OnSeek(10, 3, []int{9, 10, 11, 12})
	assert.ElementsMatch(t, []int{9, 12}, drop)
}

func TestBalancedBufferRetainsDuringAndAfterPlay(t *testing.T) {
	b := NewBufferStrategy(BufferBalanced)
	assert.Equal(t, 120*time.Second, b.OnSliceLoaded(0))
	assert.True(t, b.OnSlicePlaying(0))
	assert.False(t, b.OnSliceFinished(0))
}

func TestBalancedBufferSlidingWindow(t *testing.T) {
	b := NewBufferStrategy(BufferBalanced)
	assert.False(t, b.ShouldCleanup(BufferedEntry{Index: 8}, 5))
	assert.True(t, b.ShouldCleanup(BufferedEntry{Index: 20}, 5))
}

func TestBalancedBufferOnSeekDropsOutOfWindow(t *testing.T) {
	b := NewBufferStrategy(BufferBalanced)
	drop := b.OnSeek(10, 0, []int{9, 10, 11, 30})
	assert.ElementsMatch(t, []int{30}, drop)
}

func TestAggressiveBufferRetainsAlways(t *testing.T) {
	b := NewBufferStrategy(BufferAggressive)
	assert.Equal(t, 300*time.Second, b.OnSliceLoaded(0))
	assert.True(t, b.OnSlicePlaying(0))
	assert.False(t, b.OnSliceFinished(0))
	assert.False(t, b.ShouldCleanup(BufferedEntry{Index: 999}, 0))
}

func TestAggressiveBufferSeekOnlyDropsPastOverflow(t *testing.T) {
	b := NewBufferStrategy(BufferAggressive)
	small := []int{0, 1, 2}
	assert.Nil(t, b.OnSeek(0, 0, small))

	big := make([]int, 25)
	for i := range big {
		big[i] = i
	}
	drop := b.OnSeek(0, 0, big)
	assert.NotEmpty(t, drop)
	for _, idx := range drop {
		assert.Greater(t, idx, 10)
	}
}
