// Package consumer implements the consumer-side subsystem: SliceLoader,
// BufferStrategy, PrefetchStrategy, and PlaybackController.
package consumer

import (
	"context"
	"sync"
	"time"

	"github.com/sage-x-project/audioslice/compression"
	"github.com/sage-x-project/audioslice/crypto"
	"github.com/sage-x-project/audioslice/format"
	"github.com/sage-x-project/audioslice/internal/aerrors"
	"github.com/sage-x-project/audioslice/internal/logger"
	"github.com/sage-x-project/audioslice/internal/metrics"
	"github.com/sage-x-project/audioslice/retry"
	"github.com/sage-x-project/audioslice/transport"
)

// inflight tracks one load in progress so a second caller can either wait on
// it or, presenting its own cancel, preempt it.
type inflight struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// SliceLoader fetches, decrypts, decompresses, and decodes slices on behalf
// of a single track, coalescing concurrent requests for the same slice.
type SliceLoader struct {
	mu sync.RWMutex

	transport transport.Transport
	sessionID string
	trackID   string
	sliceIDs  []string
	fmtInfo   format.Info

	sessionKey []byte
	initialized bool

	cryptoProc crypto.Processor
	compressor compression.Processor
	decoder    ExternalDecoder

	cache    map[int]PCMSlice
	playedAt map[int]time.Time
	inFlight map[string]*inflight

	attachedPrefetch PrefetchStrategy

	config Config
	log    logger.Logger
}

// NewSliceLoader constructs a loader bound to one session/track pair. The
// session key becomes available once Initialize is called with the key
// exchange result.
func NewSliceLoader(t transport.Transport, cfg Config) *SliceLoader {
	return &SliceLoader{
		transport:  t,
		cryptoProc: crypto.NewAESGCM(),
		compressor: compression.New(),
		decoder:    NoExternalDecoder,
		cache:      make(map[int]PCMSlice),
		playedAt:   make(map[int]time.Time),
		inFlight:   make(map[string]*inflight),
		config:     cfg,
		log:        logger.GetDefaultLogger(),
	}
}

// Initialize binds the loader to its session/track and marks it ready for
// loads; it must be called once a key-exchange response has been processed.
// The container/sampleRate/channels/bitDepth needed for decode come straight
// off the published TrackInfo; slices arrive already windowed to their PCM
// range, so no DataOffset/DataLength survive to the consumer side.
func (l *SliceLoader) Initialize(sessionID, trackID string, sessionKey []byte, info transport.TrackInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = sessionID
	l.trackID = trackID
	l.sessionKey = sessionKey
	l.sliceIDs = info.SliceIDs
	l.fmtInfo = format.Info{
		Container:  format.Container(info.Format),
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitDepth,
		IsFloat:    info.IsFloat32,
	}
	l.initialized = true
}

// SetExternalDecoder installs the platform decoder used for mp3/flac/ogg
// slices. Optional; wav never needs it.
func (l *SliceLoader) SetExternalDecoder(d ExternalDecoder) {
	l.mu.Lock()
	l.decoder = d
	l.mu.Unlock()
}

func (l *SliceLoader) indexOf(sliceID string) int {
	for i, id := range l.sliceIDs {
		if id == sliceID {
			return i
		}
	}
	return -1
}

// LoadSlice resolves sliceID to decoded PCM. When preempt is true and a load
// for this slice is already in flight, that load is cancelled and a fresh
// one is started under ctx; when false, the caller instead waits on the
// existing load.
func (l *SliceLoader) LoadSlice(ctx context.Context, sliceID string, preempt bool) (PCMSlice, error) {
	l.mu.RLock()
	initialized := l.initialized
	l.mu.RUnlock()
	if !initialized {
		return PCMSlice{}, aerrors.New(aerrors.Precondition, "consumer.SliceLoader.LoadSlice", nil)
	}

	index := l.indexOf(sliceID)
	if index < 0 {
		return PCMSlice{}, aerrors.New(aerrors.NotFound, "consumer.SliceLoader.LoadSlice", nil)
	}

	l.mu.Lock()
	if slice, ok := l.cache[index]; ok {
		l.mu.Unlock()
		return slice, nil
	}

	if existing, ok := l.inFlight[sliceID]; ok {
		if preempt {
			existing.cancel()
			delete(l.inFlight, sliceID)
		} else {
			l.mu.Unlock()
			return l.waitForLoad(ctx, sliceID, index)
		}
	}

	loadCtx, cancel := context.WithCancel(ctx)
	handle := &inflight{cancel: cancel, done: make(chan struct{})}
	l.inFlight[sliceID] = handle
	l.mu.Unlock()

	defer func() {
		cancel()
		l.mu.Lock()
		if l.inFlight[sliceID] == handle {
			delete(l.inFlight, sliceID)
		}
		l.mu.Unlock()
		close(handle.done)
	}()

	return l.execute(loadCtx, sliceID, index)
}

// waitForLoad polls the cache every ~50ms until it is populated or the
// in-flight entry disappears without producing a result.
func (l *SliceLoader) waitForLoad(ctx context.Context, sliceID string, index int) (PCMSlice, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return PCMSlice{}, aerrors.New(aerrors.Cancelled, "consumer.SliceLoader.waitForLoad", ctx.Err())
		case <-ticker.C:
			l.mu.RLock()
			slice, hit := l.cache[index]
			_, stillInFlight := l.inFlight[sliceID]
			l.mu.RUnlock()
			if hit {
				return slice, nil
			}
			if !stillInFlight {
				return PCMSlice{}, aerrors.New(aerrors.Dependent, "consumer.SliceLoader.waitForLoad", nil)
			}
		}
	}
}

// execute runs the fetch/decrypt/decompress/decode pipeline for one slice
// and, on success, commits the result to cache.
func (l *SliceLoader) execute(ctx context.Context, sliceID string, index int) (PCMSlice, error) {
	l.mu.RLock()
	sessionID, trackID, key, fmtInfo, decoder := l.sessionID, l.trackID, l.sessionKey, l.fmtInfo, l.decoder
	l.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return PCMSlice{}, aerrors.New(aerrors.Cancelled, "consumer.SliceLoader.execute", err)
	}

	started := time.Now()
	encSlice, err := retry.Do(ctx, l.config.RetryPolicy, func(ctx context.Context) (transport.EncryptedSlice, error) {
		return l.transport.FetchSlice(ctx, sessionID, sliceID, trackID)
	})
	if err != nil {
		return PCMSlice{}, err
	}
	if lp, ok := anyPrefetchStrategy(l); ok {
		lp.recordDownloadTime(float64(time.Since(started).Milliseconds()))
	}

	if err := ctx.Err(); err != nil {
		return PCMSlice{}, aerrors.New(aerrors.Cancelled, "consumer.SliceLoader.execute", err)
	}

	plain, err := l.cryptoProc.Decrypt(key, crypto.Encrypted{Data: encSlice.EncryptedData, IV: encSlice.IV})
	if err != nil {
		return PCMSlice{}, err
	}

	if err := ctx.Err(); err != nil {
		return PCMSlice{}, aerrors.New(aerrors.Cancelled, "consumer.SliceLoader.execute", err)
	}

	decompressed, err := l.compressor.Decompress(plain)
	if err != nil {
		return PCMSlice{}, err
	}

	if err := ctx.Err(); err != nil {
		return PCMSlice{}, aerrors.New(aerrors.Cancelled, "consumer.SliceLoader.execute", err)
	}

	pcm, err := decodePCM(decompressed, fmtInfo, decoder)
	if err != nil {
		return PCMSlice{}, err
	}

	if err := ctx.Err(); err != nil {
		return PCMSlice{}, aerrors.New(aerrors.Cancelled, "consumer.SliceLoader.execute", err)
	}

	l.mu.Lock()
	l.cache[index] = pcm
	l.mu.Unlock()
	return pcm, nil
}

// anyPrefetchStrategy is a narrow hook letting execute feed observed
// download latency back into a linearPrefetch, when one is attached via
// AttachPrefetchStrategy. Returns ok=false otherwise.
func anyPrefetchStrategy(l *SliceLoader) (*linearPrefetch, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	lp, ok := l.attachedPrefetch.(*linearPrefetch)
	return lp, ok
}

// AttachPrefetchStrategy lets the loader report observed per-slice download
// time back to a linearPrefetch strategy, so it can widen its window when
// downloads run slow.
func (l *SliceLoader) AttachPrefetchStrategy(p PrefetchStrategy) {
	l.mu.Lock()
	l.attachedPrefetch = p
	l.mu.Unlock()
}

// PrefetchSlices builds load tasks for indices in [startIndex, startIndex+count)
// not already cached, and runs up to config.PrefetchConcurrency of them in
// parallel. Failures are logged and otherwise swallowed.
func (l *SliceLoader) PrefetchSlices(ctx context.Context, startIndex, count int) {
	l.mu.RLock()
	total := len(l.sliceIDs)
	var targets []int
	for i := startIndex; i < startIndex+count && i < total; i++ {
		if i < 0 {
			continue
		}
		if _, cached := l.cache[i]; !cached {
			targets = append(targets, i)
		}
	}
	sliceIDs := l.sliceIDs
	prefetch := l.attachedPrefetch
	l.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	concurrency := l.config.PrefetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for _, idx := range targets {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()
			_, err := l.LoadSlice(ctx, sliceIDs[index], false)
			if err != nil {
				l.log.Debug("prefetch failed", logger.String("sliceId", sliceIDs[index]), logger.Error(err))
				metrics.PrefetchFailures.Inc()
			}
			if prefetch != nil {
				prefetch.OnPrefetchComplete(index, err == nil, err)
			}
		}(idx)
	}
	wg.Wait()
}

// CancelPendingLoads signals every currently in-flight load.
func (l *SliceLoader) CancelPendingLoads() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range l.inFlight {
		h.cancel()
	}
}

// MarkPlayed records that index has been played, making it eligible for
// BufferStrategy-driven cleanup.
func (l *SliceLoader) MarkPlayed(index int) {
	l.mu.Lock()
	l.playedAt[index] = time.Now()
	l.mu.Unlock()
}

// Evict drops index from the decoded cache, e.g. as directed by
// BufferStrategy.OnSeek or ShouldCleanup.
func (l *SliceLoader) Evict(index int) {
	l.mu.Lock()
	delete(l.cache, index)
	delete(l.playedAt, index)
	l.mu.Unlock()
}

// BufferedIndices returns the indices currently resident in the decoded
// cache.
func (l *SliceLoader) BufferedIndices() []int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]int, 0, len(l.cache))
	for idx := range l.cache {
		out = append(out, idx)
	}
	return out
}

// Has reports whether index is currently cached.
func (l *SliceLoader) Has(index int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.cache[index]
	return ok
}

// cachedSlice returns the decoded slice at index if present, else a
// NotFound error; callers are expected to have already checked Has.
func (l *SliceLoader) cachedSlice(index int) (PCMSlice, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slice, ok := l.cache[index]
	if !ok {
		return PCMSlice{}, aerrors.New(aerrors.NotFound, "consumer.SliceLoader.cachedSlice", nil)
	}
	return slice, nil
}
