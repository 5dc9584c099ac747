package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var (
	ErrTruncated          = errors.New("record truncated")
	ErrChecksumMismatch   = errors.New("record checksum mismatch")
	ErrUnsupportedVersion = errors.New("unsupported record version")
	ErrUnknownType        = errors.New("unknown record type")
	ErrRowLength          = errors.New("invalid row length")
)

// Record is a decoded record. Row aliases the decoded buffer.
type Record struct {
	Version  uint8
	Type     RecordType
	Checksum uint32
	Size     int // encoded size, checksum included

	// BEGIN_TXN only
	TxnID int64
	// BEGIN_TXN and END_TXN
	SpHandle int64

	// Change records only
	TableSignature uint64
	Row            []byte // null mask followed by column data
}

// Decode parses the record at the start of data and verifies its checksum
func Decode(data []byte) (*Record, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %d bytes, need at least 2", ErrTruncated, len(data))
	}
	if data[0] != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[0])
	}

	r := &Record{Version: data[0], Type: RecordType(data[1])}
	switch {
	case r.Type == TypeBeginTxn:
		if len(data) < BeginTxnSize {
			return nil, fmt.Errorf("%w: begin txn has %d of %d bytes", ErrTruncated, len(data), BeginTxnSize)
		}
		r.TxnID = int64(binary.LittleEndian.Uint64(data[2:]))
		r.SpHandle = int64(binary.LittleEndian.Uint64(data[10:]))
		r.Size = BeginTxnSize
	case r.Type == TypeEndTxn:
		if len(data) < EndTxnSize {
			return nil, fmt.Errorf("%w: end txn has %d of %d bytes", ErrTruncated, len(data), EndTxnSize)
		}
		r.SpHandle = int64(binary.LittleEndian.Uint64(data[2:]))
		r.Size = EndTxnSize
	case r.Type.IsChange():
		if len(data) < RowRecordOverhead+RowLengthSize {
			return nil, fmt.Errorf("%w: row header has %d bytes", ErrTruncated, len(data))
		}
		r.TableSignature = binary.LittleEndian.Uint64(data[2:])
		rowLen := binary.LittleEndian.Uint32(data[rowPrefixSize:])
		if int64(rowLen) > int64(len(data)) {
			return nil, fmt.Errorf("%w: row length %d exceeds %d available bytes", ErrTruncated, rowLen, len(data))
		}
		start := rowPrefixSize + RowLengthSize
		end := start + int(rowLen)
		if end+ChecksumSize > len(data) {
			return nil, fmt.Errorf("%w: row record needs %d bytes, have %d", ErrTruncated, end+ChecksumSize, len(data))
		}
		r.Row = data[start:end]
		r.Size = end + ChecksumSize
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, data[1])
	}

	body := r.Size - ChecksumSize
	r.Checksum = binary.LittleEndian.Uint32(data[body:])
	if got := Checksum(data[:body]); got != r.Checksum {
		return nil, fmt.Errorf("%w: %s stored %08x computed %08x", ErrChecksumMismatch, r.Type, r.Checksum, got)
	}
	return r, nil
}

// MaxPrefixSize is the most leading bytes RecordLength needs
const MaxPrefixSize = rowPrefixSize + RowLengthSize

// RecordLength returns the encoded size of the record starting at prefix.
// Transaction markers need 2 bytes of prefix, change records
// MaxPrefixSize. The checksum is not verified.
func RecordLength(prefix []byte) (int, error) {
	if len(prefix) < 2 {
		return 0, fmt.Errorf("%w: %d byte prefix", ErrTruncated, len(prefix))
	}
	if prefix[0] != FormatVersion {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedVersion, prefix[0])
	}
	switch t := RecordType(prefix[1]); {
	case t == TypeBeginTxn:
		return BeginTxnSize, nil
	case t == TypeEndTxn:
		return EndTxnSize, nil
	case t.IsChange():
		if len(prefix) < MaxPrefixSize {
			return 0, fmt.Errorf("%w: %d byte row prefix", ErrTruncated, len(prefix))
		}
		rowLen := binary.LittleEndian.Uint32(prefix[rowPrefixSize:])
		if int64(rowLen) > math.MaxInt32-RowRecordOverhead {
			return 0, fmt.Errorf("%w: %d", ErrRowLength, rowLen)
		}
		return MaxPrefixSize + int(rowLen) + ChecksumSize, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, prefix[1])
	}
}

// Scanner walks a byte stream of back-to-back records
type Scanner struct {
	data   []byte
	offset int
	record *Record
	err    error
}

// NewScanner returns a scanner over data
func NewScanner(data []byte) *Scanner {
	return &Scanner{data: data}
}

// Next decodes the next record. It returns false at the end of the data
// or on the first error; Err tells the two apart.
func (s *Scanner) Next() bool {
	if s.err != nil || s.offset >= len(s.data) {
		return false
	}
	r, err := Decode(s.data[s.offset:])
	if err != nil {
		s.err = fmt.Errorf("offset %d: %w", s.offset, err)
		s.record = nil
		return false
	}
	s.record = r
	s.offset += r.Size
	return true
}

// Record returns the record decoded by the last call to Next
func (s *Scanner) Record() *Record {
	return s.record
}

// Offset returns the number of bytes consumed so far
func (s *Scanner) Offset() int {
	return s.offset
}

// Err returns the first decode error, if any
func (s *Scanner) Err() error {
	return s.err
}

// DecodeAll decodes every record in data
func DecodeAll(data []byte) ([]*Record, error) {
	var out []*Record
	sc := NewScanner(data)
	for sc.Next() {
		out = append(out, sc.Record())
	}
	return out, sc.Err()
}
