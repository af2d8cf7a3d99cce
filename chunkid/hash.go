package chunkid

import "github.com/cespare/xxhash/v2"

// ContentHash returns a fast, non-cryptographic fingerprint of a sample's
// encoded bytes. Engine.UpdateSample uses it as a quick negative check
// when detecting a no-op update: differing hashes rule out identical
// bytes, while matching hashes are still confirmed by a full byte
// comparison against the chunk's data buffer.
func ContentHash(buf []byte) uint64 {
	return xxhash.Sum64(buf)
}
