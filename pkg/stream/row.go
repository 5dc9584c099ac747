package stream

import (
	"encoding/binary"

	"github.com/ssargent/drlog/pkg/codec"
)

// Tuple is a row that serializes itself by schema
type Tuple interface {
	ColumnCount() int
	// SerializedSize returns the exact byte count SerializeTo writes
	SerializedSize() int
	// SerializeTo writes the column data into dst, sets the bit of every
	// NULL column in the zeroed nullMask and returns the bytes written.
	SerializeTo(dst, nullMask []byte) int
}

// Table identifies the table a change belongs to
type Table interface {
	Signature() uint64
}

// computeOffsets returns the exact encoded size of a change record for t
// and the size of its row header.
func computeOffsets(t Tuple) (recordSize, rowHeaderSize int) {
	rowHeaderSize = codec.RowHeaderSize(t.ColumnCount())
	return codec.RowRecordOverhead + rowHeaderSize + t.SerializedSize(), rowHeaderSize
}

// AppendTuple writes one change record for the open transaction and
// returns its size in bytes. txnID and spHandle must match the open
// transaction. A disabled stream returns 0.
func (s *Stream) AppendTuple(table Table, txnID, spHandle int64, t Tuple, changeType codec.RecordType) (int, error) {
	if s.mode == ModeDisabled {
		return 0, nil
	}
	const op = "AppendTuple"
	s.checkUsable(op)
	if !changeType.IsChange() {
		s.fatalf(op, "%s is not a change record type", changeType)
	}
	if !s.txn.open {
		s.fatalf(op, "%s for txn %d outside a transaction", changeType, txnID)
	}
	if txnID != s.txn.txnID || spHandle != s.txn.spHandle {
		s.fatalf(op, "change for txn %d/spHandle %d while txn %d/spHandle %d is open",
			txnID, spHandle, s.txn.txnID, s.txn.spHandle)
	}

	size, rowHeaderSize := computeOffsets(t)
	if err := s.ensureCapacity(op, size); err != nil {
		return 0, err
	}

	dst := s.reserve(op, size)
	written := s.encodeRow(dst, table.Signature(), t, changeType, rowHeaderSize)
	if written != size {
		s.fatalf(op, "row serialized to %d bytes, computed %d", written, size)
	}
	s.consume(op, written)

	s.metrics.RecordWritten(s.partitionID, changeType.String(), written)
	return written, nil
}

// encodeRow writes the change record into dst, which is exactly the
// computed record size, and returns the number of bytes written. Nothing
// is consumed from the block here.
func (s *Stream) encodeRow(dst []byte, signature uint64, t Tuple, changeType codec.RecordType, rowHeaderSize int) (n int) {
	defer func() {
		if r := recover(); r != nil {
			if IsFatal(r) {
				panic(r)
			}
			s.fatalf("AppendTuple", "row serialization overran its computed size of %d bytes: %v", len(dst), r)
		}
	}()

	n = codec.RowHeader{Type: changeType, TableSignature: signature}.Put(dst)
	lengthAt := n
	header := dst[n : n+rowHeaderSize]
	clear(header)
	n += rowHeaderSize
	n += t.SerializeTo(dst[n:len(dst)-codec.ChecksumSize], header[codec.RowLengthSize:])

	// row length counts the null mask and the column data
	binary.LittleEndian.PutUint32(dst[lengthAt:], uint32(n-lengthAt-codec.RowLengthSize))
	if n+codec.ChecksumSize > len(dst) {
		return n + codec.ChecksumSize
	}
	return codec.Seal(dst, n)
}
