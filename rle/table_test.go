package rle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustRegister(t *testing.T, tbl *Table, payload []uint64, n uint64, combine CombineFunc) {
	t.Helper()
	require.NoError(t, tbl.Register(payload, n, combine))
}

func TestTableRegisterCombinesEqualRuns(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{8}, 100, combineNBytes)
	mustRegister(t, tbl, []uint64{8}, 100, combineNBytes)

	require.Equal(t, 1, tbl.NumRows())
	require.Equal(t, uint64(200), tbl.NumSamples())
}

func TestTableRegisterOpensNewRowOnChange(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{8}, 200, combineNBytes)
	mustRegister(t, tbl, []uint64{1}, 1000, combineNBytes)

	require.Equal(t, 2, tbl.NumRows())
	require.Equal(t, uint64(1200), tbl.NumSamples())
}

func TestTableTranslateIndexMonotonic(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{1}, 10, combineNBytes)
	mustRegister(t, tbl, []uint64{2}, 10, combineNBytes)
	mustRegister(t, tbl, []uint64{3}, 10, combineNBytes)

	prev := -1
	for g := uint64(0); g < tbl.NumSamples(); g++ {
		row, err := tbl.TranslateIndex(g)
		require.NoError(t, err)
		require.GreaterOrEqual(t, row, prev)
		prev = row
	}
	require.Equal(t, tbl.NumSamples()-1, tbl.Last(tbl.NumRows()-1))
}

func TestTableSetNoChange(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{5}, 10, combineNBytes)

	before := cloneRows(tbl)
	require.NoError(t, tbl.Set(3, []uint64{5}, combineNBytes))
	require.Equal(t, before, tbl.rows)
}

func TestTableSetReplaceSingleton(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{5}, 1, combineNBytes)
	require.NoError(t, tbl.Set(0, []uint64{9}, combineNBytes))
	require.Equal(t, uint64(9), tbl.Payload(0)[0])
}

func TestTableSetSplitMiddle(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{5}, 10, combineNBytes)

	require.NoError(t, tbl.Set(4, []uint64{9}, combineNBytes))
	require.Equal(t, 3, tbl.NumRows())

	row, _, err := tbl.Get(4)
	require.NoError(t, err)
	require.Equal(t, uint64(9), row[0])

	for _, g := range []uint64{0, 1, 2, 3} {
		row, _, err := tbl.Get(g)
		require.NoError(t, err)
		require.Equal(t, uint64(5), row[0])
	}
	for _, g := range []uint64{5, 6, 7, 8, 9} {
		row, _, err := tbl.Get(g)
		require.NoError(t, err)
		require.Equal(t, uint64(5), row[0])
	}
}

func TestTableSetSplitUpAndDown(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{5}, 10, combineNBytes)

	require.NoError(t, tbl.Set(0, []uint64{9}, combineNBytes))
	require.Equal(t, 2, tbl.NumRows())
	row, _, err := tbl.Get(0)
	require.NoError(t, err)
	require.Equal(t, uint64(9), row[0])

	tbl2 := NewTable(1)
	mustRegister(t, tbl2, []uint64{5}, 10, combineNBytes)
	require.NoError(t, tbl2.Set(9, []uint64{9}, combineNBytes))
	require.Equal(t, 2, tbl2.NumRows())
	row, _, err = tbl2.Get(9)
	require.NoError(t, err)
	require.Equal(t, uint64(9), row[0])
}

func TestTableSetSqueeze(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{1}, 1, combineNBytes)
	mustRegister(t, tbl, []uint64{9}, 1, combineNBytes)
	mustRegister(t, tbl, []uint64{1}, 1, combineNBytes)
	require.Equal(t, 3, tbl.NumRows())

	require.NoError(t, tbl.Set(1, []uint64{1}, combineNBytes))
	require.Equal(t, 1, tbl.NumRows())
	require.Equal(t, uint64(2), tbl.Last(0))
}

func TestTableMarshalRoundTrip32(t *testing.T) {
	tbl := NewTable(2)
	mustRegister(t, tbl, []uint64{1, 2}, 5, combineNBytes2)
	mustRegister(t, tbl, []uint64{3, 4}, 7, combineNBytes2)

	buf := tbl.MarshalBinary32()
	got, err := UnmarshalTable32(buf, 2)
	require.NoError(t, err)
	require.Equal(t, tbl.rows, got.rows)
}

func TestTableMarshalRoundTrip64(t *testing.T) {
	tbl := NewTable(1)
	mustRegister(t, tbl, []uint64{1<<40 + 3}, 5, combineNBytes)

	buf := tbl.MarshalBinary64()
	got, err := UnmarshalTable64(buf, 1)
	require.NoError(t, err)
	require.Equal(t, tbl.rows, got.rows)
}

func combineNBytes2(payload, rowPayload []uint64) bool {
	return payload[0] == rowPayload[0] && payload[1] == rowPayload[1]
}

func cloneRows(t *Table) [][]uint64 {
	out := make([][]uint64, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]uint64(nil), r...)
	}
	return out
}
