package producer

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/audioslice/internal/aerrors"
)

func buildWAV(t *testing.T, sampleRate, channels, bitDepth, dataLen int) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*bitDepth/8))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*bitDepth/8))
	binary.Write(&buf, binary.LittleEndian, uint16(bitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(bytes.Repeat([]byte{0x11}, dataLen))

	return buf.Bytes()
}

func newTestTrack(t *testing.T, sliceDurationMs, dataLen int) (*Track, []byte) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SliceDurationMs = sliceDurationMs
	audio := buildWAV(t, 8000, 1, 16, dataLen)
	track := NewTrack("track-0", 0, audio, cfg)
	key := bytes.Repeat([]byte{0x5A}, 32)
	track.CompleteKeyExchange(key, "session-1")
	return track, key
}

func TestProcessBeforeKeyExchangeIsPrecondition(t *testing.T) {
	cfg := DefaultConfig()
	audio := buildWAV(t, 8000, 1, 16, 4000)
	track := NewTrack("track-0", 0, audio, cfg)

	err := track.Process("session-1")
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.Precondition))
}

func TestProcessComputesSlicePlan(t *testing.T) {
	track, _ := newTestTrack(t, 100, 4000)
	require.NoError(t, track.Process("session-1"))

	info := track.Info()
	assert.Equal(t, 3, info.TotalSlices)
	assert.Len(t, info.SliceIDs, 3)
	assert.Equal(t, 8000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.Equal(t, 16, info.BitDepth)
	assert.False(t, info.IsFloat32)
	assert.Equal(t, TrackProcessed, track.State())
}

func TestProcessIsIdempotent(t *testing.T) {
	track, _ := newTestTrack(t, 100, 4000)
	require.NoError(t, track.Process("session-1"))
	first := track.Info()

	require.NoError(t, track.Process("session-1"))
	second := track.Info()

	assert.Equal(t, first.SliceIDs, second.SliceIDs)
}

func TestGetSliceBeforeProcessedIsPrecondition(t *testing.T) {
	track, _ := newTestTrack(t, 100, 4000)
	_, err := track.GetSlice(context.Background(), "whatever")
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.Precondition))
}

func TestGetSliceUnknownIDIsNotFound(t *testing.T) {
	track, _ := newTestTrack(t, 100, 4000)
	require.NoError(t, track.Process("session-1"))

	_, err := track.GetSlice(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.NotFound))
}

func TestGetSliceReturnsEncryptedSliceRecord(t *testing.T) {
	track, key := newTestTrack(t, 100, 4000)
	require.NoError(t, track.Process("session-1"))

	info := track.Info()
	slice, err := track.GetSlice(context.Background(), info.SliceIDs[0])
	require.NoError(t, err)
	assert.Equal(t, info.SliceIDs[0], slice.ID)
	assert.Equal(t, 0, slice.Sequence)
	assert.NotEmpty(t, slice.EncryptedData)
	assert.NotEmpty(t, slice.IV)
	_ = key
}

func TestGetSliceCoalescesConcurrentRequestsForSameSlice(t *testing.T) {
	track, _ := newTestTrack(t, 100, 4000)
	require.NoError(t, track.Process("session-1"))
	info := track.Info()

	const n = 8
	var wg sync.WaitGroup
	results := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			slice, err := track.GetSlice(context.Background(), info.SliceIDs[0])
			errs[idx] = err
			if err == nil {
				results[idx] = string(slice.EncryptedData)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i], "all coalesced callers should see the same ciphertext")
	}
}

func TestRemoveTransitionsToRemovedAndRejectsFurtherReads(t *testing.T) {
	track, _ := newTestTrack(t, 100, 4000)
	require.NoError(t, track.Process("session-1"))
	info := track.Info()

	require.NoError(t, track.Remove())
	assert.Equal(t, TrackRemoved, track.State())

	_, err := track.GetSlice(context.Background(), info.SliceIDs[0])
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.NotFound))
}

func TestPrewarmPopulatesCacheWithoutError(t *testing.T) {
	track, _ := newTestTrack(t, 100, 4000)
	require.NoError(t, track.Process("session-1"))

	track.Prewarm(context.Background(), 3, 2)

	info := track.Info()
	for _, id := range info.SliceIDs {
		slice, err := track.GetSlice(context.Background(), id)
		require.NoError(t, err)
		assert.NotEmpty(t, slice.EncryptedData)
	}
}

func TestPartitionMergesSmallTrailingSlice(t *testing.T) {
	// Last segment would be 150 samples, under 25% of 800, so it merges
	// into the preceding slice.
	boundaries := partition(1750, 800, false, 0, "session")
	require.Len(t, boundaries, 2)
	assert.Equal(t, [2]int{0, 800}, boundaries[0])
	assert.Equal(t, [2]int{800, 1750}, boundaries[1])
}

func TestPartitionKeepsLargeTrailingSliceSeparate(t *testing.T) {
	// Last segment is 300 samples, at or above 25% of 800, so it stays
	// its own slice.
	boundaries := partition(1900, 800, false, 0, "session")
	require.Len(t, boundaries, 3)
	assert.Equal(t, [2]int{0, 800}, boundaries[0])
	assert.Equal(t, [2]int{800, 1600}, boundaries[1])
	assert.Equal(t, [2]int{1600, 1900}, boundaries[2])
}

func TestPartitionRandomizeIsDeterministicPerSessionID(t *testing.T) {
	a := partition(10000, 800, true, 0.4, "session-fixed")
	b := partition(10000, 800, true, 0.4, "session-fixed")
	assert.Equal(t, a, b)

	c := partition(10000, 800, true, 0.4, "session-other")
	assert.NotEqual(t, a, c)
}
