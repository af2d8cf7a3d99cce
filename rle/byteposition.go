package rle

import "fmt"

// byte-positions row layout: [nbytesPerSample, startByte, LAST].
const (
	bpColNBytes = 0
	bpColStart  = 1
	bpCols      = 2
)

// BytePositionsEncoder maps a global sample index to the (start, end)
// byte range it occupies within a chunk's data section, combining runs of
// equal-length samples into a single row.
type BytePositionsEncoder struct {
	table *Table
}

// NewBytePositionsEncoder returns an empty encoder.
func NewBytePositionsEncoder() *BytePositionsEncoder {
	return &BytePositionsEncoder{table: NewTable(bpCols)}
}

// NewBytePositionsEncoderFromTable wraps an already-decoded table.
func NewBytePositionsEncoderFromTable(t *Table) *BytePositionsEncoder {
	return &BytePositionsEncoder{table: t}
}

// Table returns the underlying run-length table.
func (e *BytePositionsEncoder) Table() *Table { return e.table }

// NumSamples returns the number of samples registered.
func (e *BytePositionsEncoder) NumSamples() uint64 { return e.table.NumSamples() }

func combineNBytes(payload, rowPayload []uint64) bool {
	return payload[bpColNBytes] == rowPayload[bpColNBytes]
}

// Register registers n samples of nbytes length each, combining with the
// previous run if the lengths match. The new row's start byte is computed
// as the previous row's end byte.
func (e *BytePositionsEncoder) Register(nbytes uint64, n uint64) error {
	startByte := uint64(0)
	if e.table.NumRows() > 0 {
		lastRow := e.table.Row(e.table.NumRows() - 1)
		prevNBytes := lastRow[bpColNBytes]
		prevStart := lastRow[bpColStart]
		prevCount := e.table.NumSamplesAt(e.table.NumRows() - 1)
		startByte = prevStart + prevNBytes*prevCount
	}
	return e.table.Register([]uint64{nbytes, startByte}, n, combineNBytes)
}

// Get returns the (start, end) byte range for global sample index g.
func (e *BytePositionsEncoder) Get(g uint64) (start, end uint64, err error) {
	row, rowIndex, err := e.table.Get(g)
	if err != nil {
		return 0, 0, err
	}

	var prevLast uint64
	if rowIndex > 0 {
		prevLast = e.table.Last(rowIndex-1) + 1
	}

	nbytes := row[bpColNBytes]
	rowStart := row[bpColStart]

	offsetWithinRow := (g - prevLast) * nbytes
	start = rowStart + offsetWithinRow
	end = start + nbytes
	return start, end, nil
}

// NumBytesEncodedUnderRow returns the cumulative byte extent of all
// samples through (and including) the given row index. Negative indices
// count from the end, as with the python `-1` convention used for "last
// row".
func (e *BytePositionsEncoder) NumBytesEncodedUnderRow(rowIndex int) (uint64, error) {
	n := e.table.NumRows()
	if rowIndex < 0 {
		rowIndex += n
	}
	if rowIndex < 0 || rowIndex >= n {
		return 0, fmt.Errorf("rle: row index %d out of range (have %d rows)", rowIndex, n)
	}
	row := e.table.Row(rowIndex)
	count := e.table.NumSamplesAt(rowIndex)
	return row[bpColStart] + row[bpColNBytes]*count, nil
}
