package chunk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorstore/tensorstore/internal/tserr"
)

func TestChunkAppendSampleTracksSpace(t *testing.T) {
	c := New()
	require.NoError(t, c.AppendSample([]byte{1, 2, 3, 4}, 32, []uint64{2, 2}))
	require.Equal(t, uint64(1), c.NumSamples())
	require.Equal(t, 4, c.NumDataBytes())
	require.True(t, c.HasSpaceFor(28, 32))
	require.False(t, c.HasSpaceFor(29, 32))
}

func TestChunkAppendSampleRejectsOverflow(t *testing.T) {
	c := New()
	err := c.AppendSample(make([]byte, 10), 8, []uint64{10})
	require.Error(t, err)
	var fullErr *tserr.FullChunkError
	require.ErrorAs(t, err, &fullErr)
}

func TestChunkAppendEmptySample(t *testing.T) {
	c := New()
	require.NoError(t, c.AppendSample(nil, 32, []uint64{0}))
	require.Equal(t, uint64(1), c.NumSamples())
	require.Equal(t, 0, c.NumDataBytes())
}

func TestChunkUpdateSampleSameShapeAndLength(t *testing.T) {
	c := New()
	require.NoError(t, c.AppendSample([]byte{1, 2, 3, 4}, 64, []uint64{2, 2}))
	require.NoError(t, c.AppendSample([]byte{5, 6, 7, 8}, 64, []uint64{2, 2}))

	before := append([]byte(nil), c.Data()...)
	require.NoError(t, c.UpdateSample(0, []byte{9, 9, 9, 9}, []uint64{2, 2}))

	require.Equal(t, []byte{9, 9, 9, 9, 5, 6, 7, 8}, c.Data())
	require.NotEqual(t, before, c.Data())

	// the second sample's bytes must be untouched by the first's update.
	sb, eb, err := c.BytePositions.Get(1)
	require.NoError(t, err)
	require.Equal(t, []byte{5, 6, 7, 8}, c.Data()[sb:eb])
}

func TestChunkUpdateSampleRejectsDifferentLength(t *testing.T) {
	c := New()
	require.NoError(t, c.AppendSample([]byte{1, 2, 3}, 64, []uint64{3}))

	err := c.UpdateSample(0, []byte{1, 2}, []uint64{3})
	require.Error(t, err)
	var notSupported *tserr.NotSupportedError
	require.ErrorAs(t, err, &notSupported)
}

func TestChunkUpdateSampleRejectsDifferentShape(t *testing.T) {
	c := New()
	require.NoError(t, c.AppendSample([]byte{1, 2, 3, 4}, 64, []uint64{2, 2}))

	err := c.UpdateSample(0, []byte{1, 2, 3, 4}, []uint64{4, 1})
	require.Error(t, err)
}

func TestChunkSerializeDeserializeRoundTrip(t *testing.T) {
	c := New()
	require.NoError(t, c.AppendSample([]byte{1, 2, 3, 4}, 64, []uint64{2, 2}))
	require.NoError(t, c.AppendSample([]byte{5, 6, 7, 8, 9, 10}, 64, []uint64{3, 2}))

	buf := c.Serialize()
	got, err := Deserialize(buf)
	require.NoError(t, err)

	require.Equal(t, c.Data(), got.Data())
	require.Equal(t, c.NumSamples(), got.NumSamples())

	shape, err := got.Shapes.Get(1)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 2}, shape)

	sb, eb, err := got.BytePositions.Get(1)
	require.NoError(t, err)
	require.Equal(t, uint64(4), sb)
	require.Equal(t, uint64(10), eb)
}

func TestDeserializeEmptyBufferYieldsEmptyChunk(t *testing.T) {
	c, err := Deserialize(nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), c.NumSamples())
	require.Equal(t, 0, c.NumDataBytes())
}

func TestDeserializeRejectsCorruptedChecksum(t *testing.T) {
	c := New()
	require.NoError(t, c.AppendSample([]byte{1, 2, 3, 4}, 64, []uint64{2, 2}))
	buf := c.Serialize()
	buf[len(buf)-1] ^= 0xff

	_, err := Deserialize(buf)
	require.Error(t, err)
}
