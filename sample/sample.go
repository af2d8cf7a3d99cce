// Package sample implements Sample: the lazy bridge between a decoded
// in-memory array and its compressed on-disk byte representation, so a
// round trip through a compression the caller already used does not pay
// to decompress and recompress.
package sample

import (
	"github.com/pkg/errors"

	"github.com/tensorstore/tensorstore/codec"
	"github.com/tensorstore/tensorstore/internal/tserr"
)

// Array is a decoded, uncompressed sample: its shape, dtype and raw
// little-endian bytes.
type Array struct {
	Shape []uint64
	Dtype string
	Raw   []byte
}

// Sample holds a sample either as a decoded Array, as compressed bytes
// carrying the compression used to produce them, or both (once one form
// has been derived from the other, it is cached).
type Sample struct {
	registry *codec.Registry

	array *Array

	compressed    []byte
	compressedAs  string
	hasCompressed bool
}

// FromArray wraps a decoded array.
func FromArray(registry *codec.Registry, a Array) *Sample {
	return &Sample{registry: registry, array: &a}
}

// FromCompressedBytes wraps bytes already compressed with the named
// codec, deferring decompression until the raw bytes are needed (a
// CompressedBytes call asking for a different compression).
func FromCompressedBytes(registry *codec.Registry, buf []byte, compression string, shape []uint64, dtype string) *Sample {
	return &Sample{
		registry:      registry,
		array:         &Array{Shape: shape, Dtype: dtype},
		compressed:    buf,
		compressedAs:  compression,
		hasCompressed: true,
	}
}

// Shape returns the sample's shape without requiring decompression.
func (s *Sample) Shape() []uint64 { return s.array.Shape }

// Dtype returns the sample's dtype without requiring decompression.
func (s *Sample) Dtype() string { return s.array.Dtype }

// CompressedBytes returns the sample's bytes compressed with the named
// codec, recompressing only when compression differs from the form the
// sample already carries - grounded on Sample.compressed_bytes in the
// original implementation's io module, where re-serializing a sample
// already compressed with the requested codec is a pure passthrough.
func (s *Sample) CompressedBytes(compression string) ([]byte, error) {
	if s.hasCompressed && s.compressedAs == compression {
		return s.compressed, nil
	}

	raw, err := s.rawBytes()
	if err != nil {
		return nil, err
	}

	c, err := s.registry.Get(compression)
	if err != nil {
		return nil, err
	}
	out, err := c.Encode(raw, s.array.Shape, s.array.Dtype)
	if err != nil {
		return nil, errors.Wrap(err, "sample: compressing")
	}

	s.compressed = out
	s.compressedAs = compression
	s.hasCompressed = true
	return out, nil
}

// rawBytes returns the sample's uncompressed raw bytes, decompressing
// the cached compressed form on first use if the array's raw bytes were
// never populated directly.
func (s *Sample) rawBytes() ([]byte, error) {
	if s.array.Raw != nil {
		return s.array.Raw, nil
	}
	if !s.hasCompressed {
		return nil, &tserr.SampleDecompressionError{Cause: errors.New("sample carries neither raw bytes nor a compressed form")}
	}

	c, err := s.registry.Get(s.compressedAs)
	if err != nil {
		return nil, err
	}
	raw, err := c.Decode(s.compressed, s.array.Shape, s.array.Dtype)
	if err != nil {
		return nil, err
	}
	s.array.Raw = raw
	return raw, nil
}
