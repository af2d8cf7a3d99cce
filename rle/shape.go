package rle

import (
	"fmt"
)

// ShapeEncoder maps a global sample index to the shape of the sample at
// that index, combining runs of equal shape into a single row. Column
// layout: one column per axis, followed by LAST.
type ShapeEncoder struct {
	table *Table
	rank  int
}

// NewShapeEncoder returns an empty encoder for tensors of the given rank
// (number of axes). Rank is fixed for the lifetime of the encoder - every
// registered shape must have exactly `rank` dimensions. Pass a negative
// rank to defer binding until the first call to Add, for the case of a
// brand-new chunk whose rank is not yet known (spec.md 6.1: a zero-length
// buffer deserializes to an empty chunk with no header to read a rank
// from).
func NewShapeEncoder(rank int) *ShapeEncoder {
	if rank < 0 {
		return &ShapeEncoder{rank: -1}
	}
	return &ShapeEncoder{table: NewTable(rank), rank: rank}
}

// NewShapeEncoderFromTable wraps an already-decoded table, as produced by
// deserializing a chunk header.
func NewShapeEncoderFromTable(t *Table) *ShapeEncoder {
	return &ShapeEncoder{table: t, rank: t.PayloadCols()}
}

// Table returns the underlying run-length table, e.g. for serialization.
func (e *ShapeEncoder) Table() *Table { return e.table }

// Rank returns the fixed number of axes this encoder expects.
func (e *ShapeEncoder) Rank() int { return e.rank }

// NumSamples returns the number of samples registered.
func (e *ShapeEncoder) NumSamples() uint64 {
	if e.table == nil {
		return 0
	}
	return e.table.NumSamples()
}

func combineShape(payload, rowPayload []uint64) bool {
	if len(payload) != len(rowPayload) {
		return false
	}
	for i := range payload {
		if payload[i] != rowPayload[i] {
			return false
		}
	}
	return true
}

// Add registers n samples with the given shape, combining with the
// previous run if the shape is identical. The first call on an encoder
// constructed with a negative rank binds the encoder's rank.
func (e *ShapeEncoder) Add(shape []uint64, n uint64) error {
	if e.rank < 0 {
		e.rank = len(shape)
		e.table = NewTable(e.rank)
	}
	if len(shape) != e.rank {
		return fmt.Errorf("rle: shape %v has rank %d, encoder expects rank %d", shape, len(shape), e.rank)
	}
	return e.table.Register(shape, n, combineShape)
}

// Get returns the shape registered for global sample index g.
func (e *ShapeEncoder) Get(g uint64) ([]uint64, error) {
	if e.table == nil {
		return nil, fmt.Errorf("rle: index %d is out of bounds for an empty shape encoding", g)
	}
	row, _, err := e.table.Get(g)
	if err != nil {
		return nil, err
	}
	shape := make([]uint64, e.rank)
	copy(shape, row[:e.rank])
	return shape, nil
}

// Set overwrites the shape at global sample index g following the
// standard run-length update lattice.
func (e *ShapeEncoder) Set(g uint64, shape []uint64) error {
	if e.table == nil {
		return fmt.Errorf("rle: cannot set index %d on an empty shape encoding", g)
	}
	if len(shape) != e.rank {
		return fmt.Errorf("rle: shape %v has rank %d, encoder expects rank %d", shape, len(shape), e.rank)
	}
	return e.table.Set(g, shape, combineShape)
}
