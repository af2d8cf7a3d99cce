package chunk

import (
	"encoding/binary"
	"hash/crc32"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/tensorstore/tensorstore/rle"
	"github.com/tensorstore/tensorstore/tensormeta"
)

var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// Serialize produces the on-disk chunk format described in spec.md 6.1:
// a length-prefixed version string, the shapes encoder table, the byte
// positions encoder table, the raw data bytes, each framed with a uint64
// byte count, followed by a trailing CRC32 checksum of everything written
// so far.
func (c *Chunk) Serialize() []byte {
	var buf []byte

	buf = appendSection(buf, []byte(tensormeta.Version))

	var shapesTable []byte
	if t := c.Shapes.Table(); t != nil {
		shapesTable = t.MarshalBinary32()
	} else {
		shapesTable = rle.NewTable(0).MarshalBinary32()
	}
	buf = appendSection(buf, shapesTable)

	buf = appendSection(buf, c.BytePositions.Table().MarshalBinary32())
	buf = appendSection(buf, c.data)

	sum := crc32.Checksum(buf, castagnoliTable)
	out := make([]byte, len(buf)+4)
	copy(out, buf)
	binary.LittleEndian.PutUint32(out[len(buf):], sum)
	return out
}

func appendSection(buf, section []byte) []byte {
	var lenBytes [8]byte
	binary.LittleEndian.PutUint64(lenBytes[:], uint64(len(section)))
	buf = append(buf, lenBytes[:]...)
	buf = append(buf, section...)
	return buf
}

// Deserialize parses the format written by Serialize. A zero-length
// buffer yields an empty chunk, per spec.md 6.1.
func Deserialize(buf []byte) (*Chunk, error) {
	if len(buf) == 0 {
		return New(), nil
	}
	if len(buf) < 4 {
		return nil, errors.New("chunk: buffer too short to contain a checksum")
	}

	body := buf[:len(buf)-4]
	expCRC := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	if crc32.Checksum(body, castagnoliTable) != expCRC {
		return nil, errors.New("chunk: checksum mismatch")
	}

	r := &reader{buf: body}

	versionBytes, err := r.section()
	if err != nil {
		return nil, errors.Wrap(err, "chunk: reading version")
	}
	if err := checkVersion(string(versionBytes)); err != nil {
		return nil, err
	}

	shapesBytes, err := r.section()
	if err != nil {
		return nil, errors.Wrap(err, "chunk: reading shapes table")
	}
	bytePosBytes, err := r.section()
	if err != nil {
		return nil, errors.Wrap(err, "chunk: reading byte positions table")
	}
	data, err := r.section()
	if err != nil {
		return nil, errors.Wrap(err, "chunk: reading data")
	}
	if !r.done() {
		return nil, errors.New("chunk: trailing bytes after data section")
	}

	shapesHeader, err := peekCols(shapesBytes)
	if err != nil {
		return nil, errors.Wrap(err, "chunk: shapes table header")
	}
	shapesTable, err := rle.UnmarshalTable32(shapesBytes, shapesHeader)
	if err != nil {
		return nil, errors.Wrap(err, "chunk: decoding shapes table")
	}

	bytePosTable, err := rle.UnmarshalTable32(bytePosBytes, 2)
	if err != nil {
		return nil, errors.Wrap(err, "chunk: decoding byte positions table")
	}

	c := &Chunk{
		Shapes:        rle.NewShapeEncoderFromTable(shapesTable),
		BytePositions: rle.NewBytePositionsEncoderFromTable(bytePosTable),
		data:          data,
		ownData:       false,
	}
	return c, nil
}

// peekCols reads the column count out of a table's header without fully
// decoding it, so the shapes table (whose rank-derived column count
// varies per tensor) can be unmarshaled with the right payloadCols.
func peekCols(buf []byte) (int, error) {
	if len(buf) < 8 {
		if len(buf) == 0 {
			return 0, nil
		}
		return 0, errors.New("truncated table header")
	}
	cols := binary.LittleEndian.Uint32(buf[4:8])
	if cols == 0 {
		return 0, nil
	}
	return int(cols) - 1, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) section() ([]byte, error) {
	if r.off+8 > len(r.buf) {
		return nil, errors.New("truncated section length")
	}
	n := binary.LittleEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	if r.off+int(n) > len(r.buf) {
		return nil, errors.New("truncated section body")
	}
	out := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return out, nil
}

func (r *reader) done() bool { return r.off == len(r.buf) }

// checkVersion rejects chunks written by an incompatible major version.
func checkVersion(v string) error {
	major := func(s string) (int, error) {
		parts := strings.SplitN(s, ".", 2)
		return strconv.Atoi(parts[0])
	}
	got, err := major(v)
	if err != nil {
		return errors.Errorf("chunk: malformed version %q", v)
	}
	want, err := major(tensormeta.Version)
	if err != nil {
		return errors.Wrap(err, "chunk: parsing library version")
	}
	if got != want {
		return errors.Errorf("chunk: unsupported chunk format version %q (library is %q)", v, tensormeta.Version)
	}
	return nil
}
