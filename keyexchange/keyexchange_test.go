package keyexchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/audioslice/internal/aerrors"
)

func TestHandshakeDerivesMatchingSessionKey(t *testing.T) {
	client := New()
	require.NoError(t, client.Initialize())
	req, err := client.CreateRequest(map[string]any{"trackId": "track-0"})
	require.NoError(t, err)

	server := New()
	resp, serverKey, err := server.ProcessRequest(req, "session-123")
	require.NoError(t, err)

	clientKey, err := client.ProcessResponse(resp, "session-123")
	require.NoError(t, err)

	assert.Equal(t, serverKey, clientKey)
	assert.Len(t, clientKey, SessionKeySize)
}

func TestDifferentSessionIDsDeriveDifferentKeys(t *testing.T) {
	client := New()
	require.NoError(t, client.Initialize())
	req, err := client.CreateRequest(nil)
	require.NoError(t, err)

	server := New()
	resp, _, err := server.ProcessRequest(req, "session-A")
	require.NoError(t, err)

	keyA, err := client.ProcessResponse(resp, "session-A")
	require.NoError(t, err)
	keyB, err := client.ProcessResponse(resp, "session-B")
	require.NoError(t, err)

	assert.NotEqual(t, keyA, keyB)
}

func TestServerLazilyInitializesOnProcessRequest(t *testing.T) {
	client := New()
	require.NoError(t, client.Initialize())
	req, err := client.CreateRequest(nil)
	require.NoError(t, err)

	server := New()
	_, _, err = server.ProcessRequest(req, "session-x")
	require.NoError(t, err)
	assert.NotEmpty(t, server.ID())
}

func TestCreateRequestBeforeInitializeIsPrecondition(t *testing.T) {
	p := New()
	_, err := p.CreateRequest(nil)
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.Precondition))
}

func TestProcessResponseBeforeInitializeIsPrecondition(t *testing.T) {
	p := New()
	_, err := p.ProcessResponse(Response{PublicKey: "irrelevant"}, "session")
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.Precondition))
}

func TestProcessRequestMalformedPublicKey(t *testing.T) {
	server := New()
	_, _, err := server.ProcessRequest(Request{PublicKey: "not-valid-base64!!"}, "session")
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.Handshake))
}

func TestDestroyClearsKeyMaterial(t *testing.T) {
	p := New()
	require.NoError(t, p.Initialize())
	require.NoError(t, p.Destroy())

	_, err := p.CreateRequest(nil)
	require.Error(t, err)
	assert.True(t, aerrors.Has(err, aerrors.Precondition))
}
