package tuple

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Decode rebuilds a tuple from a row (null mask followed by column data)
// written by SerializeTo.
func Decode(schema *Schema, row []byte) (*Tuple, error) {
	cols := schema.ColumnCount()
	maskLen := (cols + 7) / 8
	if len(row) < maskLen {
		return nil, fmt.Errorf("%w: %d bytes, null mask needs %d", ErrMalformedRow, len(row), maskLen)
	}
	mask, data := row[:maskLen], row[maskLen:]

	t := New(schema)
	n := 0
	need := func(col Column, k int) error {
		if n+k > len(data) {
			return fmt.Errorf("%w: column %s needs %d bytes at %d, row has %d", ErrMalformedRow, col.Name, k, n, len(data))
		}
		return nil
	}

	if pad := cols % 8; pad != 0 && mask[maskLen-1]&(0xFF>>pad) != 0 {
		return nil, fmt.Errorf("%w: null mask padding bits set", ErrMalformedRow)
	}

	for i := 0; i < cols; i++ {
		col := schema.Column(i)
		if mask[i/8]&(0x80>>(i%8)) != 0 {
			if !col.Nullable {
				return nil, fmt.Errorf("%w: %s", ErrNotNullable, col.Name)
			}
			continue
		}
		if col.Type.Variable() {
			if err := need(col, 4); err != nil {
				return nil, err
			}
			l := int(binary.LittleEndian.Uint32(data[n:]))
			n += 4
			if err := need(col, l); err != nil {
				return nil, err
			}
			if col.Type == Varchar {
				t.values[i] = string(data[n : n+l])
			} else {
				t.values[i] = append([]byte{}, data[n:n+l]...)
			}
			n += l
			continue
		}

		if err := need(col, col.Type.FixedSize()); err != nil {
			return nil, err
		}
		switch col.Type {
		case TinyInt:
			t.values[i] = int8(data[n])
		case SmallInt:
			t.values[i] = int16(binary.LittleEndian.Uint16(data[n:]))
		case Integer:
			t.values[i] = int32(binary.LittleEndian.Uint32(data[n:]))
		case BigInt:
			t.values[i] = int64(binary.LittleEndian.Uint64(data[n:]))
		case Float:
			t.values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[n:]))
		case Timestamp:
			t.values[i] = time.UnixMicro(int64(binary.LittleEndian.Uint64(data[n:]))).UTC()
		}
		n += col.Type.FixedSize()
	}

	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformedRow, len(data)-n)
	}
	return t, nil
}
