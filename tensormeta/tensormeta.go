// Package tensormeta implements TensorMeta: the small per-tensor record
// tracking dtype, compression, sample count and per-axis shape bounds.
package tensormeta

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/tensorstore/tensorstore/internal/tserr"
)

// Version is the on-disk schema version written into every chunk header
// and tensor meta blob. It is an explicit field, not an ambient global -
// spec.md 9 ("versioning is an explicit field, not an ambient singleton").
const Version = "1.0.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Meta holds the aggregate invariants for a single tensor.
type Meta struct {
	Version            string   `json:"version"`
	Dtype              string   `json:"dtype"`
	SampleCompression  string   `json:"sample_compression"`
	Length             uint64   `json:"length"`
	MinShape           []uint64 `json:"min_shape"`
	MaxShape           []uint64 `json:"max_shape"`
}

// New returns an empty Meta for a tensor of the given dtype and
// compression. sample_compression may be codec.Uncompressed.
func New(dtype, sampleCompression string) *Meta {
	return &Meta{
		Version:           Version,
		Dtype:             dtype,
		SampleCompression: sampleCompression,
	}
}

// CheckCompatibility verifies that a sample of the given shape and dtype
// may be registered against this tensor: dtype must match exactly, and
// once a rank has been established by a prior sample, every subsequent
// sample must share it.
func (m *Meta) CheckCompatibility(shape []uint64, dtype string) error {
	if m.Dtype != "" && m.Dtype != dtype {
		return errors.Errorf("tensormeta: sample dtype %q does not match tensor dtype %q", dtype, m.Dtype)
	}
	if m.Length > 0 && len(m.MinShape) != len(shape) {
		return &tserr.TensorInvalidSampleShapeError{Got: shape, Expected: len(m.MinShape)}
	}
	return nil
}

// Update registers n additional samples of the given shape and dtype,
// widening MinShape/MaxShape per-axis and advancing Length. Length is
// monotonically increasing and is always updated before the
// corresponding chunk payload write, per spec.md 4.3.
func (m *Meta) Update(shape []uint64, dtype string, n uint64) {
	if m.Dtype == "" {
		m.Dtype = dtype
	}
	if m.Length == 0 && len(m.MinShape) == 0 {
		m.MinShape = append([]uint64(nil), shape...)
		m.MaxShape = append([]uint64(nil), shape...)
	} else {
		for i, v := range shape {
			if v < m.MinShape[i] {
				m.MinShape[i] = v
			}
			if v > m.MaxShape[i] {
				m.MaxShape[i] = v
			}
		}
	}
	m.Length += n
}

// Bytes serializes Meta to its JSON wire form.
func (m *Meta) Bytes() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "tensormeta: marshal")
	}
	return b, nil
}

// FromBuffer deserializes Meta from its JSON wire form.
func FromBuffer(buf []byte) (*Meta, error) {
	var m Meta
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, errors.Wrap(err, "tensormeta: unmarshal")
	}
	return &m, nil
}
