// Package chunkid implements ChunkIdEncoder: the run-length table mapping
// a tensor's global sample index to the 64-bit id of the chunk holding it.
package chunkid

import (
	"encoding/hex"
	"fmt"
	"math/rand"

	"github.com/tensorstore/tensorstore/rle"
)

// idNameLen is the fixed length, in hex characters, of a chunk's textual
// name: 16 hex digits encode a full 64-bit id.
const idNameLen = 16

const (
	colID   = 0
	colCols = 1
)

// Encoder maps global sample indices to chunk ids and back. It never
// combines two different ids into one row - a new row only ever arises
// from creating a new chunk; samples are added to the existing last row
// via RegisterSamplesToLastChunk.
type Encoder struct {
	table *Table
	rng   *rand.Rand
}

// Table is a thin alias kept local so chunkid.Encoder does not leak the
// rle package's generic Table type through its exported surface; it is
// just rle.Table underneath.
type Table = rle.Table

// New returns an empty encoder. rng drives chunk id generation; pass a
// seeded *rand.Rand for deterministic tests, or NewSeed()'s result for
// production use.
func New(rng *rand.Rand) *Encoder {
	return &Encoder{table: rle.NewTable(colCols), rng: rng}
}

// NewFromTable wraps an already-decoded table, as produced when loading
// the chunk id encoder back from the cache.
func NewFromTable(t *Table, rng *rand.Rand) *Encoder {
	return &Encoder{table: t, rng: rng}
}

// Table returns the underlying run-length table, e.g. for serialization.
func (e *Encoder) Table() *Table { return e.table }

// NumSamples returns the total number of samples registered across all
// chunks.
func (e *Encoder) NumSamples() uint64 { return e.table.NumSamples() }

// NumChunks returns the number of distinct chunks registered.
func (e *Encoder) NumChunks() int { return e.table.NumRows() }

func combineNever(payload, rowPayload []uint64) bool { return false }

// GenerateID returns a fresh, non-zero, 64-bit chunk id. Collisions with
// any id already registered in this tensor are detected and regenerated;
// at realistic scales the loop runs once.
func (e *Encoder) GenerateID() uint64 {
	for {
		id := e.rng.Uint64()
		if id == 0 {
			continue
		}
		if !e.idExists(id) {
			return id
		}
	}
}

func (e *Encoder) idExists(id uint64) bool {
	for i := 0; i < e.table.NumRows(); i++ {
		if e.table.Payload(i)[colID] == id {
			return true
		}
	}
	return false
}

// RegisterChunk registers a brand-new chunk id covering n samples. The
// new row never combines with the previous one, since every call
// represents a genuinely new chunk.
func (e *Encoder) RegisterChunk(id uint64, n uint64) error {
	return e.table.Register([]uint64{id}, n, combineNever)
}

// RegisterSamplesToLastChunk extends the currently-open last chunk's
// sample count by n without creating a new row.
func (e *Encoder) RegisterSamplesToLastChunk(n uint64) error {
	return e.table.RegisterToLast(n)
}

// IDAt returns the chunk id that owns global sample index g.
func (e *Encoder) IDAt(g uint64) (uint64, error) {
	row, _, err := e.table.Get(g)
	if err != nil {
		return 0, err
	}
	return row[colID], nil
}

// LastChunkID returns the id of the most recently registered chunk, or
// ok=false if no chunk has been registered yet.
func (e *Encoder) LastChunkID() (id uint64, ok bool) {
	n := e.table.NumRows()
	if n == 0 {
		return 0, false
	}
	return e.table.Payload(n - 1)[colID], true
}

// LocalSampleIndex computes the index of g within the chunk that owns it,
// i.e. g's offset from the start of that chunk's run.
func (e *Encoder) LocalSampleIndex(g uint64) (uint64, error) {
	rowIndex, err := e.table.TranslateIndex(g)
	if err != nil {
		return 0, err
	}
	var prevLast uint64
	if rowIndex > 0 {
		prevLast = e.table.Last(rowIndex-1) + 1
	}
	return g - prevLast, nil
}

// NameFromID returns the fixed-length lowercase hex name used as the
// chunk's storage key suffix.
func NameFromID(id uint64) string {
	var b [8]byte
	b[0] = byte(id >> 56)
	b[1] = byte(id >> 48)
	b[2] = byte(id >> 40)
	b[3] = byte(id >> 32)
	b[4] = byte(id >> 24)
	b[5] = byte(id >> 16)
	b[6] = byte(id >> 8)
	b[7] = byte(id)
	return hex.EncodeToString(b[:])
}

// IDFromName parses a name produced by NameFromID.
func IDFromName(name string) (uint64, error) {
	if len(name) != idNameLen {
		return 0, fmt.Errorf("chunkid: name %q has length %d, expected %d", name, len(name), idNameLen)
	}
	b, err := hex.DecodeString(name)
	if err != nil {
		return 0, fmt.Errorf("chunkid: invalid name %q: %w", name, err)
	}
	var id uint64
	for _, v := range b {
		id = id<<8 | uint64(v)
	}
	return id, nil
}
