package rle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShapeEncoderLazyRankBinding(t *testing.T) {
	e := NewShapeEncoder(-1)
	require.Equal(t, uint64(0), e.NumSamples())
	require.Equal(t, -1, e.Rank())

	require.NoError(t, e.Add([]uint64{2, 2}, 3))
	require.Equal(t, 2, e.Rank())
	require.Equal(t, uint64(3), e.NumSamples())

	err := e.Add([]uint64{1, 2, 3}, 1)
	require.Error(t, err)
}

func TestShapeEncoderCombinesEqualShapes(t *testing.T) {
	e := NewShapeEncoder(2)
	require.NoError(t, e.Add([]uint64{2, 2}, 5))
	require.NoError(t, e.Add([]uint64{2, 2}, 5))
	require.Equal(t, 1, e.Table().NumRows())

	require.NoError(t, e.Add([]uint64{2, 3}, 1))
	require.Equal(t, 2, e.Table().NumRows())

	shape, err := e.Get(9)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 2}, shape)

	shape, err = e.Get(10)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, shape)
}

func TestShapeEncoderSetUpdatesSingleton(t *testing.T) {
	e := NewShapeEncoder(2)
	require.NoError(t, e.Add([]uint64{2, 2}, 1))
	require.NoError(t, e.Set(0, []uint64{3, 3}))

	shape, err := e.Get(0)
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 3}, shape)
}

func TestShapeEncoderSetIdempotence(t *testing.T) {
	e := NewShapeEncoder(2)
	require.NoError(t, e.Add([]uint64{2, 2}, 10))

	before := cloneRows(e.Table())
	got, err := e.Get(4)
	require.NoError(t, err)
	require.NoError(t, e.Set(4, got))
	require.Equal(t, before, e.Table().rows)
}
