package producer

import (
	"context"
	"sync"
	"time"

	"github.com/sage-x-project/audioslice/format"
	"github.com/sage-x-project/audioslice/internal/aerrors"
	"github.com/sage-x-project/audioslice/internal/logger"
	"github.com/sage-x-project/audioslice/internal/metrics"
	"github.com/sage-x-project/audioslice/keyexchange"
	"github.com/sage-x-project/audioslice/sliceid"
	"github.com/sage-x-project/audioslice/transport"
)

// Registry creates sessions, tracks, performs key exchange, routes slice
// requests, and evicts expired sessions. It exclusively owns its Sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	config   Config
	log      logger.Logger

	sweepTicker *time.Ticker
	stopSweep   chan struct{}
	stopOnce    sync.Once
	lastSweepAt time.Time

	idGen sliceid.Generator
}

// NewRegistry constructs a SessionRegistry and starts its background idle
// sweeper.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		sessions:    make(map[string]*Session),
		config:      cfg,
		log:         logger.GetDefaultLogger(),
		stopSweep:   make(chan struct{}),
		lastSweepAt: time.Now(),
		idGen:       sliceid.NanoidGenerator{},
	}
	r.sweepTicker = time.NewTicker(SweepInterval)
	go r.runSweep()
	return r
}

// Close stops the background sweeper.
func (r *Registry) Close() {
	r.stopOnce.Do(func() {
		r.sweepTicker.Stop()
		close(r.stopSweep)
	})
}

func (r *Registry) runSweep() {
	for {
		select {
		case <-r.stopSweep:
			return
		case <-r.sweepTicker.C:
			r.sweepExpired()
		}
	}
}

func (r *Registry) sweepExpired() {
	now := time.Now()
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince(now) > IdleTTL {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.lastSweepAt = now
	r.mu.Unlock()

	for _, s := range expired {
		s.destroy()
		r.log.Info("idle session swept", logger.String("sessionId", s.ID))
		metrics.SessionsExpired.Inc()
		metrics.SessionsActive.Dec()
	}
}

// ActiveSessionCount reports the number of sessions currently held.
func (r *Registry) ActiveSessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// LastSweep reports when the background idle sweeper last ran.
func (r *Registry) LastSweep() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSweepAt
}

func (r *Registry) newSessionID() string {
	return r.idGen.Generate(0, "", 0)
}

// CreateSession allocates a sessionId, attaches a fresh KeyExchangeProcessor
// to its single embedded track, and stores audioData pending key exchange.
// Non-WAV assets are rejected with InvalidArgument.
func (r *Registry) CreateSession(audioData []byte) (string, error) {
	if format.Parse(audioData).Container != format.WAV {
		return "", aerrors.New(aerrors.InvalidArgument, "producer.Registry.CreateSession", nil)
	}
	id := r.newSessionID()
	session := newSession(id, audioData, r.config)

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	return id, nil
}

// CreateMultiTrackSession allocates a session with an ordered, non-empty
// list of tracks; activeTrackId defaults to tracks[0].
func (r *Registry) CreateMultiTrackSession(tracksAudio [][]byte) (string, error) {
	id := r.newSessionID()
	session, err := newMultiTrackSession(id, tracksAudio, r.config)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()

	metrics.SessionsCreated.Inc()
	metrics.SessionsActive.Inc()
	return id, nil
}

func (r *Registry) lookup(sessionID string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, aerrors.New(aerrors.NotFound, "producer.Registry", nil)
	}
	s.touch()
	return s, nil
}

// HandleKeyExchange looks up sessionID, initializes the named track's (or
// the single embedded track's) KeyExchangeProcessor on first call, computes
// the sessionKey, marks keyExchangeComplete, and runs the pipeline for that
// track immediately in the single-track case (or when multi-track,
// prewarmFirstTrack and this is track index 0); other tracks process
// lazily on first slice request.
func (r *Registry) HandleKeyExchange(ctx context.Context, sessionID string, req keyexchange.Request, trackID string) (keyexchange.Response, transport.SessionInfo, error) {
	session, err := r.lookup(sessionID)
	if err != nil {
		return keyexchange.Response{}, transport.SessionInfo{}, err
	}

	track := session.ResolveTrack(trackID)
	if track == nil {
		return keyexchange.Response{}, transport.SessionInfo{}, aerrors.New(aerrors.NotFound, "producer.Registry.HandleKeyExchange", nil)
	}

	resp, key, err := track.KeyExchangeProcessor().ProcessRequest(req, sessionID)
	if err != nil {
		return keyexchange.Response{}, transport.SessionInfo{}, err
	}
	track.CompleteKeyExchange(key, sessionID)

	shouldProcessNow := !session.isMultiTrack || (r.config.PrewarmFirstTrack && track.Index == 0)
	if shouldProcessNow {
		if err := track.Process(sessionID); err != nil {
			return keyexchange.Response{}, transport.SessionInfo{}, err
		}
		if r.config.PrewarmSlices > 0 {
			go track.Prewarm(context.Background(), r.config.PrewarmSlices, r.config.PrewarmConcurrency)
		}
	}

	return resp, session.Info(), nil
}

// GetSlice resolves the target track (active when trackID is empty); if the
// track is keyExchangeComplete but not yet processed, runs the pipeline now;
// dispatches to the track's GetSlice; stamps sessionId on the outgoing
// slice.
func (r *Registry) GetSlice(ctx context.Context, sessionID, sliceID, trackID string) (transport.EncryptedSlice, error) {
	session, err := r.lookup(sessionID)
	if err != nil {
		return transport.EncryptedSlice{}, err
	}

	track := session.ResolveTrack(trackID)
	if track == nil {
		return transport.EncryptedSlice{}, aerrors.New(aerrors.NotFound, "producer.Registry.GetSlice", nil)
	}

	switch track.State() {
	case TrackRemoved:
		return transport.EncryptedSlice{}, aerrors.New(aerrors.NotFound, "producer.Registry.GetSlice", nil)
	case TrackRaw:
		return transport.EncryptedSlice{}, aerrors.New(aerrors.Precondition, "producer.Registry.GetSlice", nil)
	case TrackReadyForProcessing:
		if err := track.Process(sessionID); err != nil {
			return transport.EncryptedSlice{}, err
		}
	}

	slice, err := track.GetSlice(ctx, sliceID)
	if err != nil {
		return transport.EncryptedSlice{}, err
	}
	slice.SessionID = sessionID
	return slice, nil
}

// AddTrack migrates a single-track session to multi-track if needed, appends
// a new raw track, and returns a placeholder TrackInfo.
func (r *Registry) AddTrack(sessionID string, audioData []byte) (transport.TrackInfo, error) {
	session, err := r.lookup(sessionID)
	if err != nil {
		return transport.TrackInfo{}, err
	}
	track, err := session.AddTrack(audioData)
	if err != nil {
		return transport.TrackInfo{}, err
	}
	return transport.TrackInfo{
		TrackID:     track.ID,
		TrackIndex:  track.Index,
		TotalSlices: 0,
		SliceIDs:    []string{},
	}, nil
}

// RemoveTrack forwards to the Session's RemoveTrack and returns the
// refreshed SessionInfo.
func (r *Registry) RemoveTrack(sessionID, trackIDOrIndex string) (transport.SessionInfo, error) {
	session, err := r.lookup(sessionID)
	if err != nil {
		return transport.SessionInfo{}, err
	}
	if err := session.RemoveTrack(trackIDOrIndex); err != nil {
		return transport.SessionInfo{}, err
	}
	return session.Info(), nil
}

// GetSessionInfo returns the session's current wire snapshot.
func (r *Registry) GetSessionInfo(sessionID string) (transport.SessionInfo, error) {
	session, err := r.lookup(sessionID)
	if err != nil {
		return transport.SessionInfo{}, err
	}
	return session.Info(), nil
}

// DestroySession invokes destroy() on every owned KeyExchangeProcessor, then
// drops the session.
func (r *Registry) DestroySession(sessionID string) error {
	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	if ok {
		delete(r.sessions, sessionID)
	}
	r.mu.Unlock()
	if !ok {
		return aerrors.New(aerrors.NotFound, "producer.Registry.DestroySession", nil)
	}
	session.destroy()
	metrics.SessionsClosed.Inc()
	metrics.SessionsActive.Dec()
	return nil
}
