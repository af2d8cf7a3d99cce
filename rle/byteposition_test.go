package rle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytePositionsEncoderS1(t *testing.T) {
	e := NewBytePositionsEncoder()
	require.NoError(t, e.Register(8, 100))
	require.NoError(t, e.Register(8, 100))

	require.Equal(t, uint64(200), e.NumSamples())
	require.Equal(t, 1, e.Table().NumRows())

	sb, eb, err := e.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), sb)
	require.Equal(t, uint64(8), eb)

	sb, eb, err = e.Get(199)
	require.NoError(t, err)
	require.Equal(t, uint64(1592), sb)
	require.Equal(t, uint64(1600), eb)

	require.NoError(t, e.Register(1, 1000))
	require.Equal(t, uint64(1200), e.NumSamples())
	require.Equal(t, 2, e.Table().NumRows())

	sb, eb, err = e.Get(200)
	require.NoError(t, err)
	require.Equal(t, uint64(1600), sb)
	require.Equal(t, uint64(1601), eb)

	sb, eb, err = e.Get(1199)
	require.NoError(t, err)
	require.Equal(t, uint64(2599), sb)
	require.Equal(t, uint64(2600), eb)
}

func TestBytePositionsEncoderS2(t *testing.T) {
	e := NewBytePositionsEncoder()
	require.NoError(t, e.Register(4960, 1))
	require.NoError(t, e.Register(4961, 1))
	require.NoError(t, e.Register(41, 1))

	require.Equal(t, 3, e.Table().NumRows())

	sb, eb, err := e.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), sb)
	require.Equal(t, uint64(4960), eb)

	sb, eb, err = e.Get(1)
	require.NoError(t, err)
	require.Equal(t, uint64(4960), sb)
	require.Equal(t, uint64(9921), eb)

	sb, eb, err = e.Get(2)
	require.NoError(t, err)
	require.Equal(t, uint64(9921), sb)
	require.Equal(t, uint64(9962), eb)
}

func TestBytePositionsEncoderNumBytesEncodedUnderRow(t *testing.T) {
	e := NewBytePositionsEncoder()
	require.NoError(t, e.Register(10, 3))
	require.NoError(t, e.Register(5, 2))

	n, err := e.NumBytesEncodedUnderRow(0)
	require.NoError(t, err)
	require.Equal(t, uint64(30), n)

	n, err = e.NumBytesEncodedUnderRow(-1)
	require.NoError(t, err)
	require.Equal(t, uint64(40), n)
}
