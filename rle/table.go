// Package rle implements the compact run-length 2-D table shared by the
// shape, byte-position and chunk-id encoders: a table of width payloadCols+1
// where the rightmost column ("LAST") holds the largest global sample index
// a row covers, binary-searched to resolve any sample index to its row in
// O(log N).
package rle

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// CombineFunc reports whether payload may extend (or already matches) the
// row whose payload columns are rowPayload. Each encoder supplies its own
// notion of "same value" - e.g. the byte-positions encoder only compares
// the nbytes-per-sample column, ignoring the row's start-byte column.
type CombineFunc func(payload []uint64, rowPayload []uint64) bool

// Table is the generic run-length table. Row i has payloadCols+1 entries;
// the last entry is the LAST (last-seen-index) column.
type Table struct {
	cols int
	rows [][]uint64
}

// NewTable returns an empty table with the given number of payload columns
// (not counting the LAST column).
func NewTable(payloadCols int) *Table {
	return &Table{cols: payloadCols}
}

// PayloadCols returns the number of payload columns (excluding LAST).
func (t *Table) PayloadCols() int { return t.cols }

// NumRows returns the number of rows currently encoded.
func (t *Table) NumRows() int { return len(t.rows) }

// NumSamples returns 0 if the table is empty, else the LAST column of the
// final row plus one.
func (t *Table) NumSamples() uint64 {
	if len(t.rows) == 0 {
		return 0
	}
	return t.rows[len(t.rows)-1][t.cols] + 1
}

// Row returns the full row (payload columns followed by LAST) at index i.
// The returned slice aliases internal storage and must not be mutated by
// the caller except via the Table's own mutation methods.
func (t *Table) Row(i int) []uint64 { return t.rows[i] }

// Payload returns the payload columns (excluding LAST) of row i.
func (t *Table) Payload(i int) []uint64 { return t.rows[i][:t.cols] }

// Last returns the LAST column of row i.
func (t *Table) Last(i int) uint64 { return t.rows[i][t.cols] }

// NumSamplesAt returns how many samples row i's value covers.
func (t *Table) NumSamplesAt(i int) uint64 {
	var lower uint64
	if i > 0 {
		lower = t.rows[i-1][t.cols] + 1
	}
	return t.rows[i][t.cols] + 1 - lower
}

// TranslateIndex performs a binary search over the LAST column for the
// smallest row whose LAST is >= g. It fails when the table is empty.
func (t *Table) TranslateIndex(g uint64) (int, error) {
	if len(t.rows) == 0 {
		return 0, fmt.Errorf("rle: index %d is out of bounds for an empty encoding", g)
	}
	i := sort.Search(len(t.rows), func(i int) bool {
		return t.rows[i][t.cols] >= g
	})
	if i == len(t.rows) {
		return 0, fmt.Errorf("rle: index %d is out of bounds (num_samples=%d)", g, t.NumSamples())
	}
	return i, nil
}

// Register appends num_samples copies of a row whose payload columns are
// payload. If the table is non-empty and combine reports the new payload
// matches the last row, the last row's LAST column is simply extended;
// otherwise a new row is appended.
func (t *Table) Register(payload []uint64, n uint64, combine CombineFunc) error {
	if n == 0 {
		return fmt.Errorf("rle: num_samples must be > 0")
	}
	if len(payload) != t.cols {
		return fmt.Errorf("rle: payload has %d columns, table has %d", len(payload), t.cols)
	}

	if len(t.rows) == 0 {
		t.appendRow(payload, n-1)
		return nil
	}

	last := t.rows[len(t.rows)-1]
	if combine(payload, last[:t.cols]) {
		last[t.cols] += n
		return nil
	}

	t.appendRow(payload, last[t.cols]+n)
	return nil
}

// RegisterToLast extends the last row's LAST column by n without
// examining its payload. Used by the chunk-id encoder when more samples
// are added to the already-open last chunk.
func (t *Table) RegisterToLast(n uint64) error {
	if len(t.rows) == 0 {
		return fmt.Errorf("rle: cannot register to last row of an empty table")
	}
	t.rows[len(t.rows)-1][t.cols] += n
	return nil
}

func (t *Table) appendRow(payload []uint64, last uint64) {
	row := make([]uint64, t.cols+1)
	copy(row, payload)
	row[t.cols] = last
	t.rows = append(t.rows, row)
}

func (t *Table) insertRow(at int, payload []uint64, last uint64) {
	row := make([]uint64, t.cols+1)
	copy(row, payload)
	row[t.cols] = last

	t.rows = append(t.rows, nil)
	copy(t.rows[at+1:], t.rows[at:])
	t.rows[at] = row
}

// Get resolves the row containing g and returns it along with its row
// index, leaving interpretation (derive) to the caller.
func (t *Table) Get(g uint64) (row []uint64, rowIndex int, err error) {
	rowIndex, err = t.TranslateIndex(g)
	if err != nil {
		return nil, 0, err
	}
	return t.rows[rowIndex], rowIndex, nil
}

// Set applies the eight-action update lattice described for run-length
// encoders: no-change, squeeze, move-up, move-down, replace, split-up,
// split-down, split-middle, in that priority order. combine decides
// whether payload matches a given row's payload.
func (t *Table) Set(g uint64, payload []uint64, combine CombineFunc) error {
	rowIndex, err := t.TranslateIndex(g)
	if err != nil {
		return err
	}

	hasAbove := rowIndex > 0
	hasBelow := rowIndex+1 < len(t.rows)

	canCombineAbove := hasAbove && combine(payload, t.Payload(rowIndex-1))
	canCombineBelow := hasBelow && combine(payload, t.Payload(rowIndex+1))
	combinesHere := combine(payload, t.Payload(rowIndex))

	switch {
	case combinesHere:
		// action 0: no change.
		return nil

	case hasAbove && hasBelow && canCombineAbove && canCombineBelow && t.NumSamplesAt(rowIndex) == 1:
		// action 1: squeeze - the lone sample at rowIndex merges into a
		// single run spanning above.before .. below, by deleting the
		// above row and this row; the below row's existing LAST already
		// covers the freed range.
		t.rows = append(t.rows[:rowIndex-1], t.rows[rowIndex+1:]...)
		return nil

	case canCombineAbove && !canCombineBelow && g == t.Last(rowIndex-1)+1:
		// action 2: move up - g is the first sample of this row; the
		// boundary between above and this row shifts by one sample toward
		// this row, and a row left with no samples is dropped.
		t.rows[rowIndex-1][t.cols]++
		if t.Last(rowIndex-1) == t.Last(rowIndex) {
			t.rows = append(t.rows[:rowIndex], t.rows[rowIndex+1:]...)
		}
		return nil

	case canCombineBelow && !canCombineAbove && g == t.Last(rowIndex):
		// action 3: move down - g is the last sample of this row; the
		// boundary between this row and below shifts by one sample toward
		// above, and a row left with no samples is dropped.
		if t.NumSamplesAt(rowIndex) == 1 {
			t.rows = append(t.rows[:rowIndex], t.rows[rowIndex+1:]...)
		} else {
			t.rows[rowIndex][t.cols]--
		}
		return nil

	case t.NumSamplesAt(rowIndex) == 1:
		// action 4: replace - the row holds exactly one sample, overwrite
		// its payload columns in place.
		copy(t.rows[rowIndex][:t.cols], payload)
		return nil
	}

	var aboveLast uint64
	hadAbove := false
	if hasAbove {
		aboveLast = t.Last(rowIndex - 1)
		hadAbove = true
	}
	rowLast := t.Last(rowIndex)

	switch {
	case (!hadAbove && g == 0) || (hadAbove && g == aboveLast+1):
		// action 5: split up - g is the first sample of the row; insert a
		// new single-sample row immediately before it.
		t.insertRow(rowIndex, payload, g)
		return nil

	case g == rowLast:
		// action 6: split down - g is the last sample of the row; shrink
		// the row by one and insert a new single-sample row after it.
		t.rows[rowIndex][t.cols]--
		t.insertRow(rowIndex+1, payload, g)
		return nil

	default:
		// action 7: split middle - g is interior; split into three rows.
		original := make([]uint64, t.cols)
		copy(original, t.Payload(rowIndex))

		t.rows[rowIndex][t.cols] = g - 1
		t.insertRow(rowIndex+1, payload, g)
		t.insertRow(rowIndex+2, original, rowLast)
		return nil
	}
}

// MarshalBinary32 encodes the table using uint32 cells: a uint32 row
// count, a uint32 column count, then rows*cols uint32 values in row-major
// order, all little-endian. This is the format embedded in the chunk
// header for the shape and byte-position encoders.
func (t *Table) MarshalBinary32() []byte {
	rows := len(t.rows)
	cols := t.cols + 1

	buf := make([]byte, 8+rows*cols*4)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cols))

	off := 8
	for _, row := range t.rows {
		for _, v := range row {
			binary.LittleEndian.PutUint32(buf[off:off+4], uint32(v))
			off += 4
		}
	}
	return buf
}

// UnmarshalTable32 decodes a table previously produced by MarshalBinary32.
// payloadCols must match the column count recorded in the header minus 1.
func UnmarshalTable32(buf []byte, payloadCols int) (*Table, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("rle: truncated table header (%d bytes)", len(buf))
	}
	rows := int(binary.LittleEndian.Uint32(buf[0:4]))
	cols := int(binary.LittleEndian.Uint32(buf[4:8]))
	if cols != payloadCols+1 {
		return nil, fmt.Errorf("rle: table has %d columns, expected %d", cols, payloadCols+1)
	}
	expected := 8 + rows*cols*4
	if len(buf) != expected {
		return nil, fmt.Errorf("rle: table body is %d bytes, expected %d", len(buf), expected)
	}

	t := NewTable(payloadCols)
	off := 8
	for r := 0; r < rows; r++ {
		row := make([]uint64, cols)
		for c := 0; c < cols; c++ {
			row[c] = uint64(binary.LittleEndian.Uint32(buf[off : off+4]))
			off += 4
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// MarshalBinary64 encodes the table using uint64 cells. Used by the
// chunk-id encoder, whose id column needs the full 64 bits spec.md
// requires, independent of the chunk header's uint32 encoder format.
func (t *Table) MarshalBinary64() []byte {
	rows := len(t.rows)
	cols := t.cols + 1

	buf := make([]byte, 8+rows*cols*8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(rows))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(cols))

	off := 8
	for _, row := range t.rows {
		for _, v := range row {
			binary.LittleEndian.PutUint64(buf[off:off+8], v)
			off += 8
		}
	}
	return buf
}

// UnmarshalTable64 decodes a table previously produced by MarshalBinary64.
func UnmarshalTable64(buf []byte, payloadCols int) (*Table, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("rle: truncated table header (%d bytes)", len(buf))
	}
	rows := int(binary.LittleEndian.Uint32(buf[0:4]))
	cols := int(binary.LittleEndian.Uint32(buf[4:8]))
	if cols != payloadCols+1 {
		return nil, fmt.Errorf("rle: table has %d columns, expected %d", cols, payloadCols+1)
	}
	expected := 8 + rows*cols*8
	if len(buf) != expected {
		return nil, fmt.Errorf("rle: table body is %d bytes, expected %d", len(buf), expected)
	}

	t := NewTable(payloadCols)
	off := 8
	for r := 0; r < rows; r++ {
		row := make([]uint64, cols)
		for c := 0; c < cols; c++ {
			row[c] = binary.LittleEndian.Uint64(buf[off : off+8])
			off += 8
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}
