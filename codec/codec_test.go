package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryDefaultCodecs(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{Uncompressed, "jpeg", "png", "gzip", "snappy", "lz4"} {
		c, err := r.Get(name)
		require.NoError(t, err)
		require.Equal(t, name, c.Name())
	}
}

func TestRegistryUnknownCodec(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("does-not-exist")
	require.Error(t, err)
}

func TestPassthroughRoundTrip(t *testing.T) {
	r := NewRegistry()
	c, err := r.Get(Uncompressed)
	require.NoError(t, err)

	raw := []byte{1, 2, 3, 4, 5}
	enc, err := c.Encode(raw, []uint64{5}, "uint8")
	require.NoError(t, err)
	require.Equal(t, raw, enc)

	dec, err := c.Decode(enc, []uint64{5}, "uint8")
	require.NoError(t, err)
	require.Equal(t, raw, dec)
}

func TestGzipRoundTrip(t *testing.T) {
	r := NewRegistry()
	c, err := r.Get("gzip")
	require.NoError(t, err)

	raw := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for compressibility")
	enc, err := c.Encode(raw, nil, "uint8")
	require.NoError(t, err)

	dec, err := c.Decode(enc, nil, "uint8")
	require.NoError(t, err)
	require.Equal(t, raw, dec)
}

func TestSnappyRoundTrip(t *testing.T) {
	r := NewRegistry()
	c, err := r.Get("snappy")
	require.NoError(t, err)

	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	enc, err := c.Encode(raw, nil, "uint8")
	require.NoError(t, err)

	dec, err := c.Decode(enc, nil, "uint8")
	require.NoError(t, err)
	require.Equal(t, raw, dec)
}

func TestLZ4RoundTrip(t *testing.T) {
	r := NewRegistry()
	c, err := r.Get("lz4")
	require.NoError(t, err)

	raw := []byte("lz4 round trip test data, repeated repeated repeated repeated")
	enc, err := c.Encode(raw, nil, "uint8")
	require.NoError(t, err)

	dec, err := c.Decode(enc, nil, "uint8")
	require.NoError(t, err)
	require.Equal(t, raw, dec)
}

func TestPNGRoundTripPreservesShapeAndValues(t *testing.T) {
	r := NewRegistry()
	c, err := r.Get("png")
	require.NoError(t, err)

	shape := []uint64{4, 4, 3}
	raw := make([]byte, 4*4*3)
	for i := range raw {
		raw[i] = byte(i * 7)
	}

	enc, err := c.Encode(raw, shape, "uint8")
	require.NoError(t, err)

	dec, err := c.Decode(enc, shape, "uint8")
	require.NoError(t, err)
	require.Equal(t, raw, dec)
}

func TestJPEGRoundTripPreservesShape(t *testing.T) {
	r := NewRegistry()
	c, err := r.Get("jpeg")
	require.NoError(t, err)

	shape := []uint64{8, 8, 3}
	raw := make([]byte, 8*8*3)
	for i := range raw {
		raw[i] = byte(i)
	}

	enc, err := c.Encode(raw, shape, "uint8")
	require.NoError(t, err)

	dec, err := c.Decode(enc, shape, "uint8")
	require.NoError(t, err)
	require.Len(t, dec, len(raw))
}
