package producer

import (
	"sync"
	"time"

	"github.com/sage-x-project/audioslice/internal/aerrors"
	"github.com/sage-x-project/audioslice/transport"
)

// Session binds one asset, or a playlist of tracks, to fresh key material.
// It exclusively owns its Tracks; it holds at least one track for its
// entire lifetime after initialization.
type Session struct {
	ID string

	mu             sync.RWMutex
	isMultiTrack   bool
	tracks         []*Track
	activeTrackID  string
	nextTrackIndex int

	createdAt    time.Time
	lastAccessed time.Time

	config Config
}

// newSession allocates a single-track session around one raw track.
func newSession(id string, audioData []byte, cfg Config) *Session {
	now := time.Now()
	track := NewTrack(id+"-t0", 0, audioData, cfg)
	return &Session{
		ID:             id,
		isMultiTrack:   false,
		tracks:         []*Track{track},
		activeTrackID:  track.ID,
		nextTrackIndex: 1,
		createdAt:      now,
		lastAccessed:   now,
		config:         cfg,
	}
}

// newMultiTrackSession allocates a session from an ordered, non-empty list
// of raw audio buffers.
func newMultiTrackSession(id string, audioBuffers [][]byte, cfg Config) (*Session, error) {
	if len(audioBuffers) == 0 {
		return nil, aerrors.New(aerrors.InvalidArgument, "producer.newMultiTrackSession", nil)
	}
	now := time.Now()
	tracks := make([]*Track, len(audioBuffers))
	for i, buf := range audioBuffers {
		tracks[i] = NewTrack(trackIDFor(id, i), i, buf, cfg)
	}
	return &Session{
		ID:             id,
		isMultiTrack:   true,
		tracks:         tracks,
		activeTrackID:  tracks[0].ID,
		nextTrackIndex: len(tracks),
		createdAt:      now,
		lastAccessed:   now,
		config:         cfg,
	}, nil
}

func trackIDFor(sessionID string, index int) string {
	return sessionID + "-t" + itoa(index)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// touch refreshes lastAccessed. Every registry operation that locates a
// session must call this on hit.
func (s *Session) touch() {
	s.mu.Lock()
	s.lastAccessed = time.Now()
	s.mu.Unlock()
}

// idleSince returns how long this session has been idle as of now.
func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastAccessed)
}

// activeTrackLocked returns the active track. Caller must hold s.mu (read
// or write).
func (s *Session) activeTrackLocked() *Track {
	for _, t := range s.tracks {
		if t.ID == s.activeTrackID {
			return t
		}
	}
	if len(s.tracks) > 0 {
		return s.tracks[0]
	}
	return nil
}

// ActiveTrack returns the currently active track.
func (s *Session) ActiveTrack() *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTrackLocked()
}

// TrackByID resolves a track by its id, or nil if not found / removed.
func (s *Session) TrackByID(trackID string) *Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.ID == trackID && t.State() != TrackRemoved {
			return t
		}
	}
	return nil
}

// ResolveTrack returns the named track, or the active track when trackID is
// empty.
func (s *Session) ResolveTrack(trackID string) *Track {
	if trackID == "" {
		return s.ActiveTrack()
	}
	return s.TrackByID(trackID)
}

// AddTrack appends a new raw track, migrating a single-track session to
// multi-track in place (the original track keeps index 0), and returns the
// new track. The track stays Raw until its own key exchange and pipeline
// run complete.
func (s *Session) AddTrack(audioData []byte) (*Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isMultiTrack {
		s.isMultiTrack = true
	}
	index := s.nextTrackIndex
	s.nextTrackIndex++
	track := NewTrack(trackIDFor(s.ID, index), index, audioData, s.config)
	s.tracks = append(s.tracks, track)
	return track, nil
}

// RemoveTrack removes a track by id or index. Forbidden when only one track
// remains, and forbidden on single-track sessions. If the active track is
// removed, active switches to the next remaining track.
func (s *Session) RemoveTrack(trackIDOrIndex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isMultiTrack || len(s.tracks) <= 1 {
		return aerrors.New(aerrors.InvalidArgument, "producer.Session.RemoveTrack", nil)
	}

	idx := -1
	for i, t := range s.tracks {
		if t.ID == trackIDOrIndex {
			idx = i
			break
		}
	}
	if idx < 0 {
		if n, ok := parseIndex(trackIDOrIndex); ok {
			for i, t := range s.tracks {
				if t.Index == n {
					idx = i
					break
				}
			}
		}
	}
	if idx < 0 {
		return aerrors.New(aerrors.NotFound, "producer.Session.RemoveTrack", nil)
	}

	removed := s.tracks[idx]
	_ = removed.Remove()
	wasActive := removed.ID == s.activeTrackID
	s.tracks = append(s.tracks[:idx], s.tracks[idx+1:]...)

	if wasActive && len(s.tracks) > 0 {
		next := idx
		if next >= len(s.tracks) {
			next = len(s.tracks) - 1
		}
		s.activeTrackID = s.tracks[next].ID
	}
	return nil
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Info builds the wire SessionInfo, mirroring the active track's values
// fresh at response-build time (SPEC_FULL.md open question 2).
func (s *Session) Info() transport.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := s.activeTrackLocked()
	info := transport.SessionInfo{SessionID: s.ID}
	if active != nil {
		ti := active.Info()
		info.TotalSlices = ti.TotalSlices
		info.SliceDurationMs = ti.SliceDurationMs
		info.SampleRate = ti.SampleRate
		info.Channels = ti.Channels
		info.BitDepth = ti.BitDepth
		info.IsFloat32 = ti.IsFloat32
		info.SliceIDs = ti.SliceIDs
		info.Format = ti.Format
		info.ActiveTrackID = active.ID
	}
	if s.isMultiTrack {
		tracks := make([]transport.TrackInfo, 0, len(s.tracks))
		for _, t := range s.tracks {
			if t.State() == TrackRemoved {
				continue
			}
			tracks = append(tracks, t.Info())
		}
		info.Tracks = tracks
	}
	return info
}

// destroy invokes destroy() on every owned track's key-exchange processor.
func (s *Session) destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tracks {
		_ = t.Remove()
	}
}
