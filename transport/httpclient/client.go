// Package httpclient implements transport.Transport over plain HTTP against
// an audioslice-server instance: the consumer-side half of the wire
// contract defined in transport.Transport.
package httpclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sage-x-project/audioslice/internal/aerrors"
	"github.com/sage-x-project/audioslice/keyexchange"
	"github.com/sage-x-project/audioslice/transport"
)

// Default returns an HTTP client with timeouts so a dead producer doesn't
// hang a slice fetch forever.
func Default() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}

// Client implements transport.Transport against a single audioslice-server
// base URL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client. baseURL must not have a trailing slash.
func New(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: Default()}
}

var _ transport.Transport = (*Client)(nil)

func (c *Client) CreateSession(ctx context.Context, req transport.CreateSessionRequest) (string, error) {
	var body bytes.Buffer
	body.Write(req.AudioData)

	resp, err := c.do(ctx, http.MethodPost, "/sessions", &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		SessionID string `json:"sessionId"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *Client) PerformKeyExchange(ctx context.Context, sessionID string, req keyexchange.Request, trackID string) (keyexchange.Response, transport.SessionInfo, error) {
	path := fmt.Sprintf("/sessions/%s/key-exchange", url.PathEscape(sessionID))
	if trackID != "" {
		path += "?trackId=" + url.QueryEscape(trackID)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return keyexchange.Response{}, transport.SessionInfo{}, aerrors.New(aerrors.Malformed, "httpclient.PerformKeyExchange", err)
	}

	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return keyexchange.Response{}, transport.SessionInfo{}, err
	}
	defer resp.Body.Close()

	var out struct {
		Response keyexchange.Response `json:"response"`
		Session  transport.SessionInfo `json:"sessionInfo"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return keyexchange.Response{}, transport.SessionInfo{}, err
	}
	return out.Response, out.Session, nil
}

func (c *Client) GetSessionInfo(ctx context.Context, sessionID string) (transport.SessionInfo, error) {
	path := fmt.Sprintf("/sessions/%s", url.PathEscape(sessionID))
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return transport.SessionInfo{}, err
	}
	defer resp.Body.Close()

	var out transport.SessionInfo
	if err := decodeJSON(resp, &out); err != nil {
		return transport.SessionInfo{}, err
	}
	return out, nil
}

func (c *Client) FetchSlice(ctx context.Context, sessionID, sliceID, trackID string) (transport.EncryptedSlice, error) {
	path := fmt.Sprintf("/sessions/%s/slices/%s", url.PathEscape(sessionID), url.PathEscape(sliceID))
	if trackID != "" {
		path += "?trackId=" + url.QueryEscape(trackID)
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return transport.EncryptedSlice{}, err
	}
	defer resp.Body.Close()

	var wire struct {
		ID                  string `json:"id"`
		Sequence            int    `json:"sequence"`
		SessionID           string `json:"sessionId"`
		TrackID             string `json:"trackId,omitempty"`
		EncryptedData       string `json:"encryptedData"`
		EncryptedDataLength int    `json:"encryptedDataLength"`
		IV                  string `json:"iv"`
		IVLength            int    `json:"ivLength"`
	}
	if err := decodeJSON(resp, &wire); err != nil {
		return transport.EncryptedSlice{}, err
	}

	encryptedData, err := base64.StdEncoding.DecodeString(wire.EncryptedData)
	if err != nil {
		return transport.EncryptedSlice{}, aerrors.New(aerrors.Malformed, "httpclient.FetchSlice", err)
	}
	iv, err := base64.StdEncoding.DecodeString(wire.IV)
	if err != nil {
		return transport.EncryptedSlice{}, aerrors.New(aerrors.Malformed, "httpclient.FetchSlice", err)
	}

	return transport.EncryptedSlice{
		ID:                  wire.ID,
		Sequence:            wire.Sequence,
		SessionID:           wire.SessionID,
		TrackID:             wire.TrackID,
		EncryptedData:       encryptedData,
		EncryptedDataLength: wire.EncryptedDataLength,
		IV:                  iv,
		IVLength:            wire.IVLength,
	}, nil
}

func (c *Client) AddTrack(ctx context.Context, sessionID string, audioData []byte) (transport.TrackInfo, error) {
	path := fmt.Sprintf("/sessions/%s/tracks", url.PathEscape(sessionID))
	resp, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(audioData))
	if err != nil {
		return transport.TrackInfo{}, err
	}
	defer resp.Body.Close()

	var out transport.TrackInfo
	if err := decodeJSON(resp, &out); err != nil {
		return transport.TrackInfo{}, err
	}
	return out, nil
}

func (c *Client) RemoveTrack(ctx context.Context, sessionID, trackIDOrIndex string) (transport.SessionInfo, error) {
	path := fmt.Sprintf("/sessions/%s/tracks/%s", url.PathEscape(sessionID), url.PathEscape(trackIDOrIndex))
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return transport.SessionInfo{}, err
	}
	defer resp.Body.Close()

	var out transport.SessionInfo
	if err := decodeJSON(resp, &out); err != nil {
		return transport.SessionInfo{}, err
	}
	return out, nil
}

// Ping issues a cheap GetSessionInfo against a known session, for wiring
// into health.TransportHealthCheck.
func (c *Client) Ping(ctx context.Context, sessionID string) error {
	_, err := c.GetSessionInfo(ctx, sessionID)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, aerrors.New(aerrors.Malformed, "httpclient.do", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, aerrors.New(aerrors.Cancelled, "httpclient.do", ctx.Err())
		default:
		}
		return nil, aerrors.New(aerrors.Transport, "httpclient.do", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		var wire struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&wire)
		return nil, aerrors.New(kindForStatus(resp.StatusCode), "httpclient.do", fmt.Errorf("%s", wire.Error))
	}
	return resp, nil
}

func kindForStatus(status int) aerrors.Kind {
	switch status {
	case http.StatusNotFound:
		return aerrors.NotFound
	case http.StatusBadRequest:
		return aerrors.Malformed
	case http.StatusConflict:
		return aerrors.Precondition
	case http.StatusUnauthorized:
		return aerrors.Integrity
	case 499:
		return aerrors.Cancelled
	default:
		return aerrors.Transport
	}
}

func decodeJSON(resp *http.Response, out interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return aerrors.New(aerrors.Malformed, "httpclient.decodeJSON", err)
	}
	return nil
}
