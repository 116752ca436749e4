// Package crypto implements the CryptoProcessor contract: symmetric AEAD
// encryption of opaque byte buffers under a key and a per-invocation nonce.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/sage-x-project/audioslice/internal/aerrors"
)

// KeySize is the key length AES-256-GCM requires.
const KeySize = 32

// NonceSize is the IV length required by the reference AEAD (96-bit GCM nonce).
const NonceSize = 12

// Encrypted is the output of a single encrypt call: the ciphertext (with the
// GCM authentication tag appended) plus the IV used to produce it.
type Encrypted struct {
	Data []byte
	IV   []byte
}

// Processor is the CryptoProcessor contract.
type Processor interface {
	Encrypt(key, data []byte) (Encrypted, error)
	Decrypt(key []byte, enc Encrypted) ([]byte, error)
}

// AESGCMProcessor is the reference implementation: AES-256-GCM with a fresh
// random 96-bit IV on every encryption.
type AESGCMProcessor struct{}

// NewAESGCM returns the reference CryptoProcessor.
func NewAESGCM() *AESGCMProcessor {
	return &AESGCMProcessor{}
}

// NormalizeKey accepts a platform key handle's raw bytes, or any byte slice,
// and pads/truncates it to KeySize the way the spec's key-acceptance contract
// requires. Keys shorter than KeySize are zero-padded; longer keys are
// truncated. Callers that already hold a 32-byte key pay no cost here.
func NormalizeKey(raw []byte) []byte {
	if len(raw) == KeySize {
		return raw
	}
	key := make([]byte, KeySize)
	copy(key, raw)
	return key
}

// Encrypt seals data under key with a fresh random IV.
func (p *AESGCMProcessor) Encrypt(key, data []byte) (Encrypted, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return Encrypted{}, aerrors.New(aerrors.Malformed, "crypto.Encrypt", err)
	}
	iv := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Encrypted{}, aerrors.New(aerrors.Malformed, "crypto.Encrypt", err)
	}
	ciphertext := aead.Seal(nil, iv, data, nil)
	return Encrypted{Data: ciphertext, IV: iv}, nil
}

// Decrypt opens enc under key. An authentication failure is reported as
// ErrorKind::Integrity and must never be retried by the caller.
func (p *AESGCMProcessor) Decrypt(key []byte, enc Encrypted) ([]byte, error) {
	if len(enc.IV) != NonceSize {
		return nil, aerrors.New(aerrors.Malformed, "crypto.Decrypt", nil)
	}
	aead, err := newAEAD(key)
	if err != nil {
		return nil, aerrors.New(aerrors.Malformed, "crypto.Decrypt", err)
	}
	plaintext, err := aead.Open(nil, enc.IV, enc.Data, nil)
	if err != nil {
		return nil, aerrors.New(aerrors.Integrity, "crypto.Decrypt", err)
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	key = NormalizeKey(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
