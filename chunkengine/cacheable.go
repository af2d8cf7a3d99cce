package chunkengine

import (
	"math/rand"

	"github.com/tensorstore/tensorstore/cache"
	"github.com/tensorstore/tensorstore/chunk"
	"github.com/tensorstore/tensorstore/chunkid"
	"github.com/tensorstore/tensorstore/rle"
	"github.com/tensorstore/tensorstore/tensormeta"
)

// chunkIDPayloadCols is the chunk-id encoder's payload column count (just
// the id column; LAST is implicit), mirroring rle.NewTable(colCols) in
// package chunkid.
const chunkIDPayloadCols = 1

// Type names under which the engine's three cacheable kinds are
// registered with the cache package's FromBuffer dispatch, per spec.md's
// chunk_id_encoder / tensor_meta / chunk key naming.
const (
	TypeChunk          = "chunk"
	TypeChunkIDEncoder = "chunk_id_encoder"
	TypeTensorMeta     = "tensor_meta"
)

func init() {
	cache.RegisterType(TypeChunk, func(buf []byte) (cache.Cacheable, error) {
		c, err := chunk.Deserialize(buf)
		if err != nil {
			return nil, err
		}
		return (*cacheableChunk)(c), nil
	})
	cache.RegisterType(TypeChunkIDEncoder, func(buf []byte) (cache.Cacheable, error) {
		t, err := rleUnmarshalChunkID(buf)
		if err != nil {
			return nil, err
		}
		return &cacheableChunkIDEncoder{Encoder: chunkid.NewFromTable(t, rand.New(rand.NewSource(chunkidSeed())))}, nil
	})
	cache.RegisterType(TypeTensorMeta, func(buf []byte) (cache.Cacheable, error) {
		m, err := tensormeta.FromBuffer(buf)
		if err != nil {
			return nil, err
		}
		return (*cacheableTensorMeta)(m), nil
	})
}

// chunkidSeed is swapped for tests that need determinism; production
// callers get a fresh crypto/rand-seeded generator each time an encoder
// is decoded from the cache; this is only used to mint new ids, never to
// reinterpret ones already on disk.
var chunkidSeed = chunkid.NewSeed

type cacheableChunk chunk.Chunk

func (c *cacheableChunk) Bytes() ([]byte, error) {
	return (*chunk.Chunk)(c).Serialize(), nil
}

func (c *cacheableChunk) chunk() *chunk.Chunk { return (*chunk.Chunk)(c) }

type cacheableChunkIDEncoder struct {
	*chunkid.Encoder
}

func (e *cacheableChunkIDEncoder) Bytes() ([]byte, error) {
	return e.Table().MarshalBinary64(), nil
}

type cacheableTensorMeta tensormeta.Meta

func (m *cacheableTensorMeta) Bytes() ([]byte, error) {
	return (*tensormeta.Meta)(m).Bytes()
}

func (m *cacheableTensorMeta) meta() *tensormeta.Meta { return (*tensormeta.Meta)(m) }

func rleUnmarshalChunkID(buf []byte) (*chunkid.Table, error) {
	if len(buf) == 0 {
		return rle.NewTable(chunkIDPayloadCols), nil
	}
	return rle.UnmarshalTable64(buf, chunkIDPayloadCols)
}
