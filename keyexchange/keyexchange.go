// Package keyexchange implements the KeyExchangeProcessor contract: an
// asymmetric handshake that yields a shared symmetric key per session or
// per track. The reference design is ECDH over P-256 with keys encoded in
// SPKI form and transported as base64.
package keyexchange

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/sage-x-project/audioslice/internal/aerrors"
)

// SessionKeySize is the length of the derived session symmetric key.
const SessionKeySize = 32

// Request is the client-to-server handshake message.
type Request struct {
	PublicKey string         `json:"publicKey"` // base64(SPKI)
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Response is the server-to-client handshake message.
type Response struct {
	PublicKey string         `json:"publicKey"` // base64(SPKI)
	Metadata  map[string]any `json:"metadata,omitempty"`
}

var curve = ecdh.P256()

// Processor is one ECDH keypair bound to a single track (or single-track
// session). One processor pair per track isolates a compromise of one
// track's key from its siblings; it is initialized lazily on first use.
type Processor struct {
	private     *ecdh.PrivateKey
	public      *ecdh.PublicKey
	id          string
	initialized bool
}

// New returns an uninitialized processor. Calling CreateRequest or
// ProcessResponse before Initialize yields ErrorKind::Precondition;
// ProcessRequest initializes the processor itself when needed.
func New() *Processor {
	return &Processor{}
}

// Initialize generates the ephemeral key pair.
func (p *Processor) Initialize() error {
	priv, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return aerrors.New(aerrors.Handshake, "keyexchange.Initialize", err)
	}
	p.private = priv
	p.public = priv.PublicKey()
	sum := sha256.Sum256(p.public.Bytes())
	p.id = hex.EncodeToString(sum[:8])
	p.initialized = true
	return nil
}

// ID returns a short identifier derived from the public key, for logging.
func (p *Processor) ID() string {
	return p.id
}

// CreateRequest is the client-side handshake start: publish our ephemeral
// public key.
func (p *Processor) CreateRequest(metadata map[string]any) (Request, error) {
	if !p.initialized {
		return Request{}, aerrors.New(aerrors.Precondition, "keyexchange.CreateRequest", nil)
	}
	spki, err := marshalSPKI(p.public)
	if err != nil {
		return Request{}, aerrors.New(aerrors.Handshake, "keyexchange.CreateRequest", err)
	}
	return Request{PublicKey: base64.StdEncoding.EncodeToString(spki), Metadata: metadata}, nil
}

// ProcessResponse is the client-side handshake finish: derive the shared
// session key from the server's response public key.
func (p *Processor) ProcessResponse(resp Response, sessionID string) ([]byte, error) {
	if !p.initialized {
		return nil, aerrors.New(aerrors.Precondition, "keyexchange.ProcessResponse", nil)
	}
	peer, err := parseSPKIBase64(resp.PublicKey)
	if err != nil {
		return nil, aerrors.New(aerrors.Handshake, "keyexchange.ProcessResponse", err)
	}
	return deriveSessionKey(p.private, peer, sessionID)
}

// ProcessRequest is the server side: given the client's request, generate our
// own ephemeral key pair (if not already initialized), compute the shared
// session key, and build the response to send back.
func (p *Processor) ProcessRequest(req Request, sessionID string) (Response, []byte, error) {
	if !p.initialized {
		if err := p.Initialize(); err != nil {
			return Response{}, nil, err
		}
	}
	peer, err := parseSPKIBase64(req.PublicKey)
	if err != nil {
		return Response{}, nil, aerrors.New(aerrors.Handshake, "keyexchange.ProcessRequest", err)
	}
	key, err := deriveSessionKey(p.private, peer, sessionID)
	if err != nil {
		return Response{}, nil, err
	}
	spki, err := marshalSPKI(p.public)
	if err != nil {
		return Response{}, nil, aerrors.New(aerrors.Handshake, "keyexchange.ProcessRequest", err)
	}
	resp := Response{PublicKey: base64.StdEncoding.EncodeToString(spki)}
	return resp, key, nil
}

// Destroy releases the key material held by this processor. The spec models
// it as a no-op lifecycle hook invoked once per processor on session/track
// teardown; here it simply drops the references so they're eligible for GC.
func (p *Processor) Destroy() error {
	p.private = nil
	p.public = nil
	p.initialized = false
	return nil
}

func marshalSPKI(pub *ecdh.PublicKey) ([]byte, error) {
	return x509.MarshalPKIXPublicKey(pub)
}

func parseSPKIBase64(encoded string) (*ecdh.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	raw, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, err
	}
	switch key := raw.(type) {
	case *ecdh.PublicKey:
		return key, nil
	case *ecdsa.PublicKey:
		pub, err := key.ECDH()
		if err != nil {
			return nil, aerrors.New(aerrors.Handshake, "keyexchange.parseSPKI", err)
		}
		return pub, nil
	default:
		return nil, aerrors.New(aerrors.Handshake, "keyexchange.parseSPKI", nil)
	}
}

// deriveSessionKey runs the raw ECDH point through HKDF-SHA256, salted by
// the session id, following the teacher's deriveKeys-by-session-salt shape.
func deriveSessionKey(priv *ecdh.PrivateKey, peer *ecdh.PublicKey, sessionID string) ([]byte, error) {
	shared, err := priv.ECDH(peer)
	if err != nil {
		return nil, aerrors.New(aerrors.Handshake, "keyexchange.deriveSessionKey", err)
	}
	h := hkdf.New(sha256.New, shared, []byte(sessionID), []byte("audioslice-session-key"))
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(h, key); err != nil {
		return nil, aerrors.New(aerrors.Handshake, "keyexchange.deriveSessionKey", err)
	}
	return key, nil
}
