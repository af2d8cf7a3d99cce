// Package cache implements the LRU hot tier that sits in front of the
// durable backing store: a byte-budgeted, dirty-tracking cache of
// Cacheable blobs (chunks, chunk-id encoders, tensor meta), keyed by
// storage path.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
)

// Cacheable is anything the cache can hold: a type that knows how to
// serialize itself to bytes on eviction or flush.
type Cacheable interface {
	Bytes() ([]byte, error)
}

// FromBufferFunc decodes a Cacheable back out of its on-disk bytes.
type FromBufferFunc func(buf []byte) (Cacheable, error)

var decoders = map[string]FromBufferFunc{}
var decodersMu sync.Mutex

// RegisterType makes typeName decodable by FromBuffer, mirroring the
// frombuffer/tobytes pairing described for the cache contract: each
// tensor-engine type (chunk, chunk_id_encoder, tensor_meta) registers
// its own decoder once at package init.
func RegisterType(typeName string, fn FromBufferFunc) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[typeName] = fn
}

// FromBuffer decodes buf as typeName, per a decoder registered with
// RegisterType.
func FromBuffer(typeName string, buf []byte) (Cacheable, error) {
	decodersMu.Lock()
	fn, ok := decoders[typeName]
	decodersMu.Unlock()
	if !ok {
		return nil, errors.Errorf("cache: no decoder registered for type %q", typeName)
	}
	return fn(buf)
}

// Store is the durable backing store a cache delegates misses and
// flushes to - the out-of-scope "remote storage adapter" spec.md treats
// as a dependency, not a component it defines.
type Store interface {
	Get(path string) ([]byte, error)
	Set(path string, data []byte) error
	Delete(path string) error
	List(prefix string) ([]string, error)
}

// ErrNotFound is returned by a Store when path does not exist.
var ErrNotFound = errors.New("cache: path not found")
