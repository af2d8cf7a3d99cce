// Package tserr defines the typed error taxonomy raised by the chunked
// tensor storage engine. Callers are expected to use errors.As/errors.Is
// against the values here rather than matching on message text.
package tserr

import "fmt"

// FullChunkError is raised when an append would exceed a chunk's maximum
// size. The engine pre-checks capacity before appending, so seeing this
// escape a call is a programmer error, not a user-facing condition.
type FullChunkError struct {
	Incoming int
	Max      int
}

func (e *FullChunkError) Error() string {
	return fmt.Sprintf("chunk does not have space for the incoming bytes (incoming=%d, max=%d)", e.Incoming, e.Max)
}

// CorruptedMetaError is raised when header parsing finds an inconsistency,
// or a non-empty tensor is missing an encoder it should have.
type CorruptedMetaError struct {
	Msg string
}

func (e *CorruptedMetaError) Error() string { return "corrupted meta: " + e.Msg }

// TensorInvalidSampleShapeError is raised when a sample's rank does not
// match the tensor it is being appended to.
type TensorInvalidSampleShapeError struct {
	Got      []uint64
	Expected int
}

func (e *TensorInvalidSampleShapeError) Error() string {
	return fmt.Sprintf("sample shape %v has rank %d, expected rank %d", e.Got, len(e.Got), e.Expected)
}

// SampleCompressionError is raised when a codec fails to encode a sample.
type SampleCompressionError struct {
	Shape       []uint64
	Compression string
	Cause       error
}

func (e *SampleCompressionError) Error() string {
	return fmt.Sprintf("could not compress sample of shape %v with %q: %v", e.Shape, e.Compression, e.Cause)
}

func (e *SampleCompressionError) Unwrap() error { return e.Cause }

// SampleDecompressionError is raised when a codec fails to decode a buffer.
type SampleDecompressionError struct {
	Cause error
}

func (e *SampleDecompressionError) Error() string {
	return fmt.Sprintf("could not decompress sample: %v", e.Cause)
}

func (e *SampleDecompressionError) Unwrap() error { return e.Cause }

// UnsupportedCompressionError is returned by codec.Registry.Get when a
// compression name is not registered with the codec registry. Tensor
// creation (chunkengine.NewTensor) does not check the name, so an
// unregistered compression surfaces on the first append or update that
// encodes a sample with it.
type UnsupportedCompressionError struct {
	Name string
}

func (e *UnsupportedCompressionError) Error() string {
	return fmt.Sprintf("unsupported compression %q", e.Name)
}

// DynamicTensorNumpyError is raised when a caller requests a dense array
// read (aslist=false) but the samples in range have differing shapes.
type DynamicTensorNumpyError struct {
	Key string
}

func (e *DynamicTensorNumpyError) Error() string {
	return fmt.Sprintf("tensor %q has samples with different shapes; read with AsList=true or index a single sample", e.Key)
}

// NotSupportedError is raised for deferred features: updating a sample
// with a different encoded length, or appending a sample that exceeds the
// minimum chunk size.
type NotSupportedError struct {
	Msg string
}

func (e *NotSupportedError) Error() string { return "not supported: " + e.Msg }

// InvalidPathError and SamePathError sit at the ingestion boundary, which
// is out of scope for this module's core, but the taxonomy still names
// them so collaborators built on top of this engine can reuse the same
// error vocabulary.
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string { return fmt.Sprintf("invalid path: %q", e.Path) }

type SamePathError struct {
	Path string
}

func (e *SamePathError) Error() string { return fmt.Sprintf("source and destination are the same path: %q", e.Path) }
