package tuple

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Tuple is one row of a table. A nil value is SQL NULL.
//
// Accepted Go types per column: TINYINT int8, SMALLINT int16, INTEGER
// int32, BIGINT int64, FLOAT float64, TIMESTAMP time.Time, VARCHAR string,
// VARBINARY []byte.
type Tuple struct {
	schema *Schema
	values []any
}

// New returns a tuple of the schema with every column NULL
func New(schema *Schema) *Tuple {
	return &Tuple{schema: schema, values: make([]any, schema.ColumnCount())}
}

// Of builds a tuple from values in column order
func Of(schema *Schema, values ...any) (*Tuple, error) {
	if len(values) != schema.ColumnCount() {
		return nil, fmt.Errorf("%w: %d values for %d columns", ErrColumnIndex, len(values), schema.ColumnCount())
	}
	t := New(schema)
	for i, v := range values {
		if err := t.Set(i, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Schema returns the tuple's schema
func (t *Tuple) Schema() *Schema { return t.schema }

// ColumnCount returns the number of columns
func (t *Tuple) ColumnCount() int { return len(t.values) }

// Value returns column i
func (t *Tuple) Value(i int) any { return t.values[i] }

// Set assigns column i after checking v against the column type
func (t *Tuple) Set(i int, v any) error {
	if i < 0 || i >= len(t.values) {
		return fmt.Errorf("%w: %d", ErrColumnIndex, i)
	}
	col := t.schema.Column(i)
	if v == nil {
		if !col.Nullable {
			return fmt.Errorf("%w: %s", ErrNotNullable, col.Name)
		}
		t.values[i] = nil
		return nil
	}

	ok := false
	switch col.Type {
	case TinyInt:
		_, ok = v.(int8)
	case SmallInt:
		_, ok = v.(int16)
	case Integer:
		_, ok = v.(int32)
	case BigInt:
		_, ok = v.(int64)
	case Float:
		_, ok = v.(float64)
	case Timestamp:
		_, ok = v.(time.Time)
	case Varchar:
		_, ok = v.(string)
	case Varbinary:
		_, ok = v.([]byte)
	}
	if !ok {
		return fmt.Errorf("%w: %s is %s, got %T", ErrTypeMismatch, col.Name, col.Type, v)
	}
	t.values[i] = v
	return nil
}

// SerializedSize returns the exact number of column data bytes
// SerializeTo writes. The null mask is not included.
func (t *Tuple) SerializedSize() int {
	size := 0
	for i, v := range t.values {
		if v == nil {
			continue
		}
		typ := t.schema.Column(i).Type
		switch val := v.(type) {
		case string:
			size += 4 + len(val)
		case []byte:
			size += 4 + len(val)
		default:
			size += typ.FixedSize()
		}
	}
	return size
}

// SerializeTo writes the column data into dst and flags NULL columns in
// nullMask, bit i%8 (most significant first) of byte i/8. nullMask must be
// zeroed by the caller. It returns the number of bytes written to dst.
func (t *Tuple) SerializeTo(dst []byte, nullMask []byte) int {
	n := 0
	for i, v := range t.values {
		if v == nil {
			nullMask[i/8] |= 0x80 >> (i % 8)
			continue
		}
		switch val := v.(type) {
		case int8:
			dst[n] = byte(val)
			n++
		case int16:
			binary.LittleEndian.PutUint16(dst[n:], uint16(val))
			n += 2
		case int32:
			binary.LittleEndian.PutUint32(dst[n:], uint32(val))
			n += 4
		case int64:
			binary.LittleEndian.PutUint64(dst[n:], uint64(val))
			n += 8
		case float64:
			binary.LittleEndian.PutUint64(dst[n:], math.Float64bits(val))
			n += 8
		case time.Time:
			binary.LittleEndian.PutUint64(dst[n:], uint64(val.UnixMicro()))
			n += 8
		case string:
			binary.LittleEndian.PutUint32(dst[n:], uint32(len(val)))
			n += 4
			n += copy(dst[n:], val)
		case []byte:
			binary.LittleEndian.PutUint32(dst[n:], uint32(len(val)))
			n += 4
			n += copy(dst[n:], val)
		}
	}
	return n
}

// Marshal returns the null mask followed by the column data, the row
// layout of a change record without its length prefix.
func (t *Tuple) Marshal() []byte {
	maskLen := (len(t.values) + 7) / 8
	buf := make([]byte, maskLen+t.SerializedSize())
	t.SerializeTo(buf[maskLen:], buf[:maskLen])
	return buf
}
