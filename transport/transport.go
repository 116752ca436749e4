// Package transport defines the contract carried between Producer and
// Consumer: the four request types and their wire DTOs. No framing
// (HTTP, WebSocket, or otherwise) is specified here — that is an external
// collaborator's concern.
package transport

import (
	"context"

	"github.com/sage-x-project/audioslice/keyexchange"
)

// TrackInfo is the immutable per-track descriptor published once the
// producer's pipeline has planned the slice partition.
type TrackInfo struct {
	TrackID         string   `json:"trackId"`
	TrackIndex      int      `json:"trackIndex"`
	TotalSlices     int      `json:"totalSlices"`
	SliceDurationMs int      `json:"sliceDurationMs"`
	SampleRate      int      `json:"sampleRate"`
	Channels        int      `json:"channels"`
	BitDepth        int      `json:"bitDepth,omitempty"`
	IsFloat32       bool     `json:"isFloat32,omitempty"`
	SliceIDs        []string `json:"sliceIds"`
	Format          string   `json:"format,omitempty"`
	DurationMs      int      `json:"durationMs,omitempty"`
}

// SessionInfo is the wire shape returned by GetSessionInfo and mirrored by
// PerformKeyExchange/AddTrack/RemoveTrack responses. In multi-track
// sessions the top-level fields mirror the active track's values,
// recomputed fresh on every response (see SPEC_FULL.md open question 2).
type SessionInfo struct {
	SessionID       string      `json:"sessionId"`
	TotalSlices     int         `json:"totalSlices"`
	SliceDurationMs int         `json:"sliceDurationMs"`
	SampleRate      int         `json:"sampleRate"`
	Channels        int         `json:"channels"`
	BitDepth        int         `json:"bitDepth,omitempty"`
	IsFloat32       bool        `json:"isFloat32,omitempty"`
	SliceIDs        []string    `json:"sliceIds"`
	Format          string      `json:"format,omitempty"`
	Tracks          []TrackInfo `json:"tracks,omitempty"`
	ActiveTrackID   string      `json:"activeTrackId,omitempty"`
}

// EncryptedSlice is the wire shape of a single encrypted slice: the six
// metadata fields plus the `encryptedData || iv` binary payload, already
// split by the transport on `EncryptedDataLength`.
type EncryptedSlice struct {
	ID                  string `json:"id"`
	Sequence            int    `json:"sequence"`
	SessionID           string `json:"sessionId"`
	TrackID             string `json:"trackId,omitempty"`
	EncryptedData       []byte `json:"-"`
	EncryptedDataLength int    `json:"encryptedDataLength"`
	IV                  []byte `json:"-"`
	IVLength            int    `json:"ivLength"`
}

// CreateSessionRequest uploads a single asset to the producer.
type CreateSessionRequest struct {
	AudioData            []byte
	RandomizeSliceLength bool
}

// Transport is the contract consumed by SessionRegistry on the producer and
// by SliceLoader on the consumer. No assumption about framing appears here.
type Transport interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (sessionID string, err error)
	PerformKeyExchange(ctx context.Context, sessionID string, req keyexchange.Request, trackID string) (keyexchange.Response, SessionInfo, error)
	GetSessionInfo(ctx context.Context, sessionID string) (SessionInfo, error)
	FetchSlice(ctx context.Context, sessionID, sliceID, trackID string) (EncryptedSlice, error)
	AddTrack(ctx context.Context, sessionID string, audioData []byte) (TrackInfo, error)
	RemoveTrack(ctx context.Context, sessionID, trackIDOrIndex string) (SessionInfo, error)
}
