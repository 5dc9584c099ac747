package codec

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// FormatVersion is the leading byte of every record.
const FormatVersion uint8 = 0

// RecordType tags each record in the stream
type RecordType uint8

const (
	TypeInsert   RecordType = 0
	TypeDelete   RecordType = 1
	TypeUpdate   RecordType = 2
	TypeBeginTxn RecordType = 3
	TypeEndTxn   RecordType = 4
)

// Fixed record sizes, checksum included.
const (
	// Version(1), type(1), txnid(8), sphandle(8), checksum(4)
	BeginTxnSize = 1 + 1 + 8 + 8 + 4
	// Version(1), type(1), sphandle(8), checksum(4)
	EndTxnSize = 1 + 1 + 8 + 4
	// Version(1), type(1), table signature(8), checksum(4)
	RowRecordOverhead = 1 + 1 + 8 + 4

	// ChecksumSize is the trailing CRC-32C
	ChecksumSize = 4
	// RowLengthSize is the length prefix of the row header
	RowLengthSize = 4

	rowPrefixSize = 1 + 1 + 8
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// String returns the record type name
func (t RecordType) String() string {
	switch t {
	case TypeInsert:
		return "INSERT"
	case TypeDelete:
		return "DELETE"
	case TypeUpdate:
		return "UPDATE"
	case TypeBeginTxn:
		return "BEGIN_TXN"
	case TypeEndTxn:
		return "END_TXN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// IsChange reports whether t tags a row change record
func (t RecordType) IsChange() bool {
	return t == TypeInsert || t == TypeDelete || t == TypeUpdate
}

// Checksum computes the CRC-32C of data
func Checksum(data []byte) uint32 {
	return crc32.Checksum(data, castagnoli)
}

// Seal writes the checksum of dst[:n] at dst[n:n+4] and returns n+4.
// The checksum always goes last so a reader can verify a record by
// recomputing it over the preceding bytes.
func Seal(dst []byte, n int) int {
	binary.LittleEndian.PutUint32(dst[n:], Checksum(dst[:n]))
	return n + ChecksumSize
}

// BeginTxn is the BEGIN_TXN transaction marker
type BeginTxn struct {
	TxnID    int64
	SpHandle int64
}

// Size returns the encoded size of the marker
func (BeginTxn) Size() int { return BeginTxnSize }

// Put encodes the marker, checksum included, into dst and returns the
// number of bytes written. dst must hold at least BeginTxnSize bytes.
func (h BeginTxn) Put(dst []byte) int {
	_ = dst[BeginTxnSize-1]
	dst[0] = FormatVersion
	dst[1] = byte(TypeBeginTxn)
	binary.LittleEndian.PutUint64(dst[2:], uint64(h.TxnID))
	binary.LittleEndian.PutUint64(dst[10:], uint64(h.SpHandle))
	return Seal(dst, 18)
}

// EndTxn is the END_TXN transaction marker. The transaction id is implied
// by the BEGIN_TXN it closes.
type EndTxn struct {
	SpHandle int64
}

// Size returns the encoded size of the marker
func (EndTxn) Size() int { return EndTxnSize }

// Put encodes the marker, checksum included, into dst
func (h EndTxn) Put(dst []byte) int {
	_ = dst[EndTxnSize-1]
	dst[0] = FormatVersion
	dst[1] = byte(TypeEndTxn)
	binary.LittleEndian.PutUint64(dst[2:], uint64(h.SpHandle))
	return Seal(dst, 10)
}

// RowHeader is the fixed prefix of a change record. The row payload and
// the checksum follow it.
type RowHeader struct {
	Type           RecordType
	TableSignature uint64
}

// Put writes version, type and table signature into dst and returns the
// offset at which the row payload starts. The checksum is written by Seal
// once the payload is in place.
func (h RowHeader) Put(dst []byte) int {
	_ = dst[rowPrefixSize-1]
	dst[0] = FormatVersion
	dst[1] = byte(h.Type)
	binary.LittleEndian.PutUint64(dst[2:], h.TableSignature)
	return rowPrefixSize
}

// NullMaskSize returns the null bitmap length for columnCount columns
func NullMaskSize(columnCount int) int {
	return (columnCount + 7) / 8
}

// RowHeaderSize returns the row header length: the 4 byte row length
// prefix plus the null bitmap.
func RowHeaderSize(columnCount int) int {
	return RowLengthSize + NullMaskSize(columnCount)
}

// RowRecordSize returns the full encoded size of a change record whose
// tuple has columnCount columns and dataSize bytes of column data.
func RowRecordSize(columnCount, dataSize int) int {
	return RowRecordOverhead + RowHeaderSize(columnCount) + dataSize
}

// EncodeRow builds a complete change record from an already serialized
// row (null mask followed by column data). It allocates and is meant for
// tools and tests; the stream writes records in place.
func EncodeRow(t RecordType, tableSignature uint64, row []byte) ([]byte, error) {
	if !t.IsChange() {
		return nil, fmt.Errorf("%w: %s is not a change record", ErrUnknownType, t)
	}
	buf := make([]byte, RowRecordOverhead+RowLengthSize+len(row))
	n := RowHeader{Type: t, TableSignature: tableSignature}.Put(buf)
	binary.LittleEndian.PutUint32(buf[n:], uint32(len(row)))
	n += RowLengthSize
	n += copy(buf[n:], row)
	Seal(buf, n)
	return buf, nil
}
