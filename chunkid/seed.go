package chunkid

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
)

// NewSeed draws a seed from crypto/rand suitable for constructing a
// production *math/rand.Rand via mathrand.New(mathrand.NewSource(seed)).
// Tests should seed deterministically instead, per spec.md 4.1.3's
// requirement that chunk id generation be reproducible under test.
func NewSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed seed rather than panic, matching the engine's preference
		// for never panicking on I/O it does not own.
		return 1
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}

// NewRand is a convenience constructor for a *math/rand.Rand seeded from
// crypto/rand, for production (non-test) chunk id generation.
func NewRand() *mathrand.Rand {
	return mathrand.New(mathrand.NewSource(NewSeed()))
}
