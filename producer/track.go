// Package producer implements the producer-side subsystem: Track, Session,
// SlicePipeline, and SessionRegistry.
package producer

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/sage-x-project/audioslice/compression"
	"github.com/sage-x-project/audioslice/crypto"
	"github.com/sage-x-project/audioslice/format"
	"github.com/sage-x-project/audioslice/internal/aerrors"
	"github.com/sage-x-project/audioslice/internal/metrics"
	"github.com/sage-x-project/audioslice/keyexchange"
	"github.com/sage-x-project/audioslice/sliceid"
	"github.com/sage-x-project/audioslice/transport"
)

// TrackState is the one-way state machine a Track moves through: the
// source's mutable, nullable audioData field modeled as an explicit sum
// instead of optional-field clearing.
type TrackState int

const (
	TrackRaw TrackState = iota
	TrackReadyForProcessing
	TrackProcessed
	TrackRemoved
)

// cacheEntry is a single prepared (compressed + encrypted) slice.
type cacheEntry struct {
	payload        []byte
	iv             []byte
	expiresAt      time.Time
	lastAccessedAt time.Time
	sliceIndex     int
}

// Track is a single asset within a session: its own key, cache, and slice
// plan. It exclusively owns its processor instances, cache, and in-flight
// map.
type Track struct {
	ID    string
	Index int

	mu    sync.RWMutex
	state TrackState

	kex        *keyexchange.Processor
	cryptoProc crypto.Processor
	compressor compression.Processor
	idGen      sliceid.Generator

	// rawAudio retains the source bytes needed to extract slice windows on
	// demand. The spec's Track.audioData is modeled as discarded once
	// Processed — externally a Processed track exposes no audioData field —
	// but the per-slice extraction closure still needs the bytes, so they
	// are kept here rather than actually freed.
	rawAudio []byte
	fmtInfo  format.Info

	sessionKey          []byte
	keyExchangeComplete bool

	info            transport.TrackInfo
	sliceBoundaries [][2]int // sample [start, end) per slice index
	frameSize       int      // bytes per PCM frame (channels * bitDepth/8)

	cache    map[int]*cacheEntry
	inFlight map[string]chan struct{}

	config Config
}

// NewTrack constructs a raw track bound to fresh processor instances.
func NewTrack(id string, index int, audioData []byte, cfg Config) *Track {
	return &Track{
		ID:         id,
		Index:      index,
		state:      TrackRaw,
		kex:        keyexchange.New(),
		cryptoProc: crypto.NewAESGCM(),
		compressor: compression.New(),
		idGen:      sliceid.New(cfg.SliceIDGenerator),
		rawAudio:   audioData,
		cache:      make(map[int]*cacheEntry),
		inFlight:   make(map[string]chan struct{}),
		config:     cfg,
	}
}

// State returns the track's current lifecycle state.
func (t *Track) State() TrackState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Info returns the track's immutable TrackInfo. Valid only once Processed.
func (t *Track) Info() transport.TrackInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.info
}

// KeyExchangeProcessor exposes the track's bound processor for handshake use.
func (t *Track) KeyExchangeProcessor() *keyexchange.Processor {
	return t.kex
}

// CompleteKeyExchange marks keyExchangeComplete and records the derived
// session key. It transitions Raw -> ReadyForProcessing.
func (t *Track) CompleteKeyExchange(sessionKey []byte, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionKey = sessionKey
	t.keyExchangeComplete = true
	if t.state == TrackRaw {
		t.state = TrackReadyForProcessing
	}
}

// Process runs the one-time partitioning pass: parses the format, computes
// the slice plan, generates slice ids, and transitions to Processed. Non-WAV
// assets fail with InvalidArgument. It is idempotent — calling it on an
// already-Processed track is a no-op.
func (t *Track) Process(sessionID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == TrackProcessed {
		return nil
	}
	if !t.keyExchangeComplete {
		return aerrors.New(aerrors.Precondition, "producer.Track.Process", nil)
	}

	info := format.Parse(t.rawAudio)
	if info.Container != format.WAV {
		return aerrors.New(aerrors.InvalidArgument, "producer.Track.Process", nil)
	}
	t.fmtInfo = info
	frameSize := info.Channels * (info.BitDepth / 8)
	if frameSize <= 0 {
		frameSize = 4
	}
	t.frameSize = frameSize

	totalSamples := info.DataLength / frameSize
	samplesPerSlice := (info.SampleRate * t.config.SliceDurationMs) / 1000
	if samplesPerSlice <= 0 {
		samplesPerSlice = 1
	}
	boundaries := partition(totalSamples, samplesPerSlice, t.config.RandomizeSliceLength, t.config.SliceLengthVariance, sessionID)
	t.sliceBoundaries = boundaries

	totalSlices := len(boundaries)
	sliceIDs := make([]string, totalSlices)
	for i := range boundaries {
		sliceIDs[i] = t.idGen.Generate(i, sessionID, totalSlices)
	}

	t.info = transport.TrackInfo{
		TrackID:         t.ID,
		TrackIndex:      t.Index,
		TotalSlices:     totalSlices,
		SliceDurationMs: t.config.SliceDurationMs,
		SampleRate:      info.SampleRate,
		Channels:        info.Channels,
		BitDepth:        info.BitDepth,
		IsFloat32:       info.IsFloat,
		SliceIDs:        sliceIDs,
		Format:          string(info.Container),
	}
	t.state = TrackProcessed
	return nil
}

// partition computes per-slice [start,end) sample boundaries. When
// randomize is set, durations are drawn from a PRNG seeded deterministically
// by sessionID so the same session always yields the same partition. The
// final slice is merged into the preceding one if it would otherwise be
// under 25% of the base slice length.
func partition(totalSamples, samplesPerSlice int, randomize bool, variance float64, sessionID string) [][2]int {
	if totalSamples <= 0 {
		return nil
	}
	var boundaries [][2]int
	rng := rand.New(rand.NewSource(seedFromString(sessionID)))
	pos := 0
	for pos < totalSamples {
		length := samplesPerSlice
		if randomize {
			delta := (rng.Float64()*2 - 1) * variance // in [-variance, +variance]
			length = int(float64(samplesPerSlice) * (1 + delta))
			if length < 1 {
				length = 1
			}
		}
		end := pos + length
		if end > totalSamples {
			end = totalSamples
		}
		boundaries = append(boundaries, [2]int{pos, end})
		pos = end
	}
	// Merge a trailing slice smaller than 25% of the base length into its
	// predecessor.
	if len(boundaries) >= 2 {
		last := boundaries[len(boundaries)-1]
		lastLen := last[1] - last[0]
		if float64(lastLen) < 0.25*float64(samplesPerSlice) {
			boundaries[len(boundaries)-2][1] = last[1]
			boundaries = boundaries[:len(boundaries)-1]
		}
	}
	return boundaries
}

func seedFromString(s string) int64 {
	var h int64 = 1469598103934665603 // FNV offset basis
	for _, c := range s {
		h ^= int64(c)
		h *= 1099511628211 // FNV prime
	}
	if h == 0 {
		h = 1
	}
	return h
}

// GetSlice resolves a sliceId to its prepared encrypted payload, preparing
// it on first request (or returning a cached/in-flight result). This is the
// SlicePipeline's on-demand path.
func (t *Track) GetSlice(ctx context.Context, sliceID string) (transport.EncryptedSlice, error) {
	t.mu.RLock()
	if t.state == TrackRemoved {
		t.mu.RUnlock()
		return transport.EncryptedSlice{}, aerrors.New(aerrors.NotFound, "producer.Track.GetSlice", nil)
	}
	if t.state != TrackProcessed {
		t.mu.RUnlock()
		return transport.EncryptedSlice{}, aerrors.New(aerrors.Precondition, "producer.Track.GetSlice", nil)
	}
	index := indexOf(t.info.SliceIDs, sliceID)
	t.mu.RUnlock()

	if index < 0 {
		return transport.EncryptedSlice{}, aerrors.New(aerrors.NotFound, "producer.Track.GetSlice", nil)
	}

	entry, coalesced, err := t.prepareSlice(ctx, index)
	if err != nil {
		return transport.EncryptedSlice{}, err
	}
	if coalesced {
		metrics.SlicesCoalesced.Inc()
	}

	return transport.EncryptedSlice{
		ID:                  sliceID,
		Sequence:             index,
		TrackID:              t.ID,
		EncryptedData:        entry.payload,
		EncryptedDataLength:  len(entry.payload),
		IV:                   entry.iv,
		IVLength:             len(entry.iv),
	}, nil
}

// prepareSlice implements steps 2-7 of §4.5 with single-flight coalescing,
// grounded on the in-flight-channel broadcast pattern used elsewhere in the
// pack for producer/consumer materialization.
func (t *Track) prepareSlice(ctx context.Context, index int) (*cacheEntry, bool, error) {
	t.mu.Lock()
	if entry, ok := t.cache[index]; ok && time.Now().Before(entry.expiresAt) {
		entry.lastAccessedAt = time.Now()
		t.mu.Unlock()
		return entry, false, nil
	}
	key := t.info.SliceIDs[index]
	if wait, inflight := t.inFlight[key]; inflight {
		t.mu.Unlock()
		select {
		case <-ctx.Done():
			return nil, false, aerrors.New(aerrors.Cancelled, "producer.Track.prepareSlice", ctx.Err())
		case <-wait:
			t.mu.RLock()
			entry, ok := t.cache[index]
			t.mu.RUnlock()
			if !ok {
				return nil, false, aerrors.New(aerrors.Dependent, "producer.Track.prepareSlice", nil)
			}
			return entry, true, nil
		}
	}
	done := make(chan struct{})
	t.inFlight[key] = done
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.inFlight, key)
		close(done)
		t.mu.Unlock()
	}()

	entry, err := t.buildSlice(index)
	if err != nil {
		return nil, false, err
	}

	t.mu.Lock()
	t.cache[index] = entry
	t.evictLocked()
	t.mu.Unlock()
	metrics.SlicesPrepared.Inc()

	return entry, false, nil
}

// buildSlice runs steps 4-6: raw extraction, adaptive compression, and AEAD
// encryption.
func (t *Track) buildSlice(index int) (*cacheEntry, error) {
	t.mu.RLock()
	bounds := t.sliceBoundaries[index]
	frameSize := t.frameSize
	dataOffset := t.fmtInfo.DataOffset
	container := string(t.fmtInfo.Container)
	key := t.sessionKey
	level := t.config.CompressionLevel
	adaptive := t.config.AdaptiveCompression
	raw := t.rawAudio
	t.mu.RUnlock()

	start := dataOffset + bounds[0]*frameSize
	end := dataOffset + bounds[1]*frameSize
	if end > len(raw) {
		end = len(raw)
	}
	if start > end {
		start = end
	}
	rawSlice := raw[start:end]

	useLevel := level
	if adaptive {
		useLevel = compression.AdaptiveLevel(container, level)
	}
	compressed, err := t.compressor.Compress(rawSlice, useLevel)
	if err != nil {
		return nil, err
	}

	enc, err := t.cryptoProc.Encrypt(key, compressed)
	if err != nil {
		return nil, err
	}

	return &cacheEntry{
		payload:        enc.Data,
		iv:             enc.IV,
		expiresAt:      time.Now().Add(time.Duration(t.config.ServerCacheTTLMs) * time.Millisecond),
		lastAccessedAt: time.Now(),
		sliceIndex:     index,
	}, nil
}

// evictLocked drops expired entries, then LRU-evicts the remainder until at
// or below capacity. Callers must hold t.mu.
func (t *Track) evictLocked() {
	now := time.Now()
	for idx, entry := range t.cache {
		if now.After(entry.expiresAt) {
			delete(t.cache, idx)
			metrics.CacheEvictions.Inc()
		}
	}
	for len(t.cache) > t.config.ServerCacheSize {
		var oldestIdx int
		var oldestTime time.Time
		first := true
		for idx, entry := range t.cache {
			if first || entry.lastAccessedAt.Before(oldestTime) {
				oldestIdx = idx
				oldestTime = entry.lastAccessedAt
				first = false
			}
		}
		if first {
			break
		}
		delete(t.cache, oldestIdx)
		metrics.CacheEvictions.Inc()
	}
}

// Prewarm pre-executes slice preparation for indices [0, count) across up to
// concurrency background workers. Failures are non-fatal and never surface
// to the caller. Prewarm must not delay the key-exchange response, so
// callers are expected to invoke this in a goroutine.
func (t *Track) Prewarm(ctx context.Context, count, concurrency int) {
	t.mu.RLock()
	total := len(t.info.SliceIDs)
	t.mu.RUnlock()
	if count > total {
		count = total
	}
	if concurrency < 1 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(index int) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, _, err := t.prepareSlice(ctx, index); err != nil {
				metrics.PrefetchFailures.Inc()
			}
		}(i)
	}
	wg.Wait()
}

// Remove transitions the track to Removed, invoking its key-exchange
// processor's destroy hook.
func (t *Track) Remove() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TrackRemoved
	t.rawAudio = nil
	t.cache = nil
	return t.kex.Destroy()
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
