// Package chunk implements Chunk: the atomic storage unit holding a run
// of samples' concatenated bytes plus the shape and byte-position
// encoders that index them.
package chunk

import (
	"github.com/pkg/errors"

	"github.com/tensorstore/tensorstore/internal/tserr"
	"github.com/tensorstore/tensorstore/rle"
)

// Chunk is the in-memory representation of one on-disk blob: data bytes
// for one or more samples, plus the two header encoders that locate them.
// Data starts out as a read-only view (from deserialization) and is
// copy-on-write promoted to an owned, mutable buffer on first mutation.
type Chunk struct {
	Shapes        *rle.ShapeEncoder
	BytePositions *rle.BytePositionsEncoder

	data    []byte
	ownData bool
}

// New returns an empty chunk. Its shape encoder's rank is bound lazily on
// the first AppendSample call, matching how a brand-new chunk has no
// header to read a rank from.
func New() *Chunk {
	return &Chunk{
		Shapes:        rle.NewShapeEncoder(-1),
		BytePositions: rle.NewBytePositionsEncoder(),
		ownData:       true,
	}
}

// Data returns the chunk's raw concatenated sample bytes. The returned
// slice must not be retained across a mutating call (AppendSample,
// UpdateSample), since it may be reallocated by copy-on-write promotion.
func (c *Chunk) Data() []byte { return c.data }

// NumDataBytes returns len(Data()) without copying.
func (c *Chunk) NumDataBytes() int { return len(c.data) }

// NumSamples returns the number of samples packed into this chunk.
func (c *Chunk) NumSamples() uint64 { return c.Shapes.NumSamples() }

// IsUnderMinSpace reports whether this chunk's data is smaller than the
// target minimum; only the engine's last chunk is allowed to be.
func (c *Chunk) IsUnderMinSpace(minDataBytes int) bool {
	return len(c.data) < minDataBytes
}

// HasSpaceFor reports whether nbytes more data would still fit under the
// hard maximum.
func (c *Chunk) HasSpaceFor(nbytes, maxDataBytes int) bool {
	return len(c.data)+nbytes <= maxDataBytes
}

func (c *Chunk) promoteToOwned() {
	if c.ownData {
		return
	}
	owned := make([]byte, len(c.data))
	copy(owned, c.data)
	c.data = owned
	c.ownData = true
}

// AppendSample stores buf as a new sample with the given shape. Fails
// with *tserr.FullChunkError if buf does not fit under maxDataBytes.
// An empty buf (0 bytes) is a legal, explicitly supported case.
func (c *Chunk) AppendSample(buf []byte, maxDataBytes int, shape []uint64) error {
	if !c.HasSpaceFor(len(buf), maxDataBytes) {
		return &tserr.FullChunkError{Incoming: len(buf), Max: maxDataBytes}
	}

	c.promoteToOwned()
	c.data = append(c.data, buf...)

	if err := c.Shapes.Add(shape, 1); err != nil {
		return errors.Wrap(err, "chunk: registering shape")
	}
	if err := c.BytePositions.Register(uint64(len(buf)), 1); err != nil {
		return errors.Wrap(err, "chunk: registering byte position")
	}
	return nil
}

// UpdateSample overwrites the local-index'th sample's bytes in place.
// Both the shape and the encoded byte length must exactly match the
// existing sample; spec.md explicitly defers supporting resizing updates.
func (c *Chunk) UpdateSample(localIndex uint64, buf []byte, shape []uint64) error {
	existingShape, err := c.Shapes.Get(localIndex)
	if err != nil {
		return errors.Wrap(err, "chunk: update_sample")
	}
	if !shapeEqual(existingShape, shape) {
		return &tserr.NotSupportedError{Msg: "updating a sample with a different shape than the original is not supported"}
	}

	sb, eb, err := c.BytePositions.Get(localIndex)
	if err != nil {
		return errors.Wrap(err, "chunk: update_sample")
	}
	if eb-sb != uint64(len(buf)) {
		return &tserr.NotSupportedError{Msg: "updating a sample with a different byte length than the original is not supported"}
	}

	c.promoteToOwned()
	copy(c.data[sb:eb], buf)

	// eb-sb == len(buf) was already checked above, so the byte-positions
	// encoder's nbytes column is unchanged by this overwrite: a uniform-
	// size tensor's samples all share one row, and touching that row here
	// would wrongly require it to hold a single sample.
	return nil
}

func shapeEqual(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
