// Package sliceid implements the SliceIdGenerator contract and its five
// reference variants.
package sliceid

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator produces opaque slice identifiers, unique within a session.
type Generator interface {
	Generate(index int, sessionID string, total int) string
}

const nanoidAlphabet = "useandom26T198340PX75pxJACKVERYMINDBUSHWOLF_GbfghjklqvwyzrtSCD"

// NanoidGenerator produces a 21-char URL-safe random identifier. It is the
// default, secure and collision-resistant choice.
type NanoidGenerator struct{}

func (NanoidGenerator) Generate(_ int, _ string, _ int) string {
	return nanoid(21)
}

func nanoid(size int) string {
	id := make([]byte, size)
	alphabetLen := big.NewInt(int64(len(nanoidAlphabet)))
	for i := range id {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			// crypto/rand failure is unrecoverable for this process; the
			// generator has no error return in the spec's contract, so we
			// fall back to a fixed index rather than panic.
			id[i] = nanoidAlphabet[0]
			continue
		}
		id[i] = nanoidAlphabet[n.Int64()]
	}
	return string(id)
}

// UUIDGenerator produces a standard UUIDv4, for interoperability with
// external systems that expect one.
type UUIDGenerator struct{}

func (UUIDGenerator) Generate(_ int, _ string, _ int) string {
	return uuid.NewString()
}

// SequentialGenerator produces `{prefix}_{session8}_{paddedIndex}`. Debug
// only: predictable, never use in production.
type SequentialGenerator struct {
	Prefix string
}

func (g SequentialGenerator) Generate(index int, sessionID string, total int) string {
	prefix := g.Prefix
	if prefix == "" {
		prefix = "slice"
	}
	width := len(strconv.Itoa(total))
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s_%s_%0*d", prefix, shortSession(sessionID, 8), width, index)
}

// TimestampGenerator produces `{base36(now)}_{session6}_{base36(index)}`,
// giving natural lexical ordering by creation time.
type TimestampGenerator struct {
	last int64
}

func (g *TimestampGenerator) Generate(index int, sessionID string, _ int) string {
	// Keep the stamp strictly increasing per generator so two calls landing
	// on the same clock tick still sort and stay distinct.
	var stamp int64
	for {
		last := atomic.LoadInt64(&g.last)
		stamp = time.Now().UnixNano()
		if stamp <= last {
			stamp = last + 1
		}
		if atomic.CompareAndSwapInt64(&g.last, last, stamp) {
			break
		}
	}
	return fmt.Sprintf("%s_%s_%s", strconv.FormatInt(stamp, 36), shortSession(sessionID, 6), strconv.FormatInt(int64(index), 36))
}

// HashGenerator produces the first 16 hex characters of
// SHA-256(sessionId‖index‖total), giving a deterministic, cache-friendly id.
type HashGenerator struct{}

func (HashGenerator) Generate(index int, sessionID string, total int) string {
	h := sha256.New()
	h.Write([]byte(sessionID))
	h.Write([]byte(strconv.Itoa(index)))
	h.Write([]byte(strconv.Itoa(total)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)[:16]
}

func shortSession(sessionID string, n int) string {
	if len(sessionID) <= n {
		return sessionID
	}
	return sessionID[:n]
}

// Variant names the five reference generators, for configuration.
type Variant string

const (
	VariantNanoid     Variant = "nanoid"
	VariantUUID       Variant = "uuid"
	VariantSequential Variant = "sequential"
	VariantTimestamp  Variant = "timestamp"
	VariantHash       Variant = "hash"
)

// New resolves a configured Variant to its Generator. Unknown variants fall
// back to the secure default (Nanoid).
func New(v Variant) Generator {
	switch v {
	case VariantUUID:
		return UUIDGenerator{}
	case VariantSequential:
		return SequentialGenerator{}
	case VariantTimestamp:
		return &TimestampGenerator{}
	case VariantHash:
		return HashGenerator{}
	default:
		return NanoidGenerator{}
	}
}
