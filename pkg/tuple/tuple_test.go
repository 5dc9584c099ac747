package tuple

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTypesSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(
		Column{Name: "a", Type: TinyInt},
		Column{Name: "b", Type: SmallInt},
		Column{Name: "c", Type: Integer},
		Column{Name: "d", Type: BigInt},
		Column{Name: "e", Type: Float},
		Column{Name: "f", Type: Timestamp},
		Column{Name: "g", Type: Varchar, Nullable: true},
		Column{Name: "h", Type: Varbinary, Nullable: true},
		Column{Name: "i", Type: BigInt, Nullable: true},
	)
	require.NoError(t, err)
	return s
}

func TestNewSchema(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		s, err := NewSchema(Column{Name: "id", Type: BigInt}, Column{Name: "name", Type: Varchar, Nullable: true})
		require.NoError(t, err)
		assert.Equal(t, 2, s.ColumnCount())
		assert.Equal(t, "id BIGINT, name VARCHAR NULL", s.String())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewSchema()
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("duplicate", func(t *testing.T) {
		_, err := NewSchema(Column{Name: "id", Type: BigInt}, Column{Name: "id", Type: Integer})
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewSchema(Column{Name: "id", Type: ColumnType(99)})
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})
}

func TestParseColumnType(t *testing.T) {
	typ, err := ParseColumnType(" varchar ")
	require.NoError(t, err)
	assert.Equal(t, Varchar, typ)

	_, err = ParseColumnType("GEOGRAPHY")
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestTuple_Set(t *testing.T) {
	s := allTypesSchema(t)
	tup := New(s)

	assert.NoError(t, tup.Set(0, int8(1)))
	assert.ErrorIs(t, tup.Set(0, 1), ErrTypeMismatch)
	assert.ErrorIs(t, tup.Set(1, nil), ErrNotNullable)
	assert.NoError(t, tup.Set(6, nil))
	assert.ErrorIs(t, tup.Set(42, int8(1)), ErrColumnIndex)
}

func TestTuple_SerializeDecodeRoundTrip(t *testing.T) {
	s := allTypesSchema(t)
	ts := time.Date(2024, 3, 1, 12, 30, 0, 123000, time.UTC)

	testCases := []struct {
		name     string
		values   []any
		wantSize int
	}{
		{
			name:     "all set",
			values:   []any{int8(-3), int16(300), int32(-70000), int64(1 << 40), 3.5, ts, "héllo", []byte{0, 1, 2}, int64(9)},
			wantSize: 1 + 2 + 4 + 8 + 8 + 8 + (4 + 6) + (4 + 3) + 8,
		},
		{
			name:     "nulls",
			values:   []any{int8(1), int16(2), int32(3), int64(4), 0.0, ts, nil, nil, nil},
			wantSize: 1 + 2 + 4 + 8 + 8 + 8,
		},
		{
			name:     "empty strings",
			values:   []any{int8(1), int16(2), int32(3), int64(4), 0.0, ts, "", []byte{}, nil},
			wantSize: 1 + 2 + 4 + 8 + 8 + 8 + 4 + 4,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tup, err := Of(s, tc.values...)
			require.NoError(t, err)
			assert.Equal(t, tc.wantSize, tup.SerializedSize())

			row := tup.Marshal()
			assert.Len(t, row, 2+tc.wantSize) // 9 columns -> 2 byte null mask

			decoded, err := Decode(s, row)
			require.NoError(t, err)
			for i, want := range tc.values {
				assert.Equal(t, want, decoded.Value(i), "column %d", i)
			}
		})
	}
}

func TestTuple_NullMaskBits(t *testing.T) {
	s := allTypesSchema(t)
	tup, err := Of(s, int8(1), int16(2), int32(3), int64(4), 0.0, time.Unix(0, 0).UTC(), nil, []byte("x"), nil)
	require.NoError(t, err)

	row := tup.Marshal()
	// column 6 is bit 1 of byte 0, column 8 is bit 7 of byte 1
	assert.Equal(t, byte(0x02), row[0])
	assert.Equal(t, byte(0x80), row[1])
}

func TestDecode_Malformed(t *testing.T) {
	s, err := NewSchema(Column{Name: "id", Type: BigInt}, Column{Name: "name", Type: Varchar})
	require.NoError(t, err)
	tup, err := Of(s, int64(7), "seven")
	require.NoError(t, err)
	row := tup.Marshal()

	_, err = Decode(s, row[:len(row)-1])
	assert.ErrorIs(t, err, ErrMalformedRow)

	_, err = Decode(s, append(row, 0xFF))
	assert.ErrorIs(t, err, ErrMalformedRow)

	_, err = Decode(s, nil)
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestDecode_NullMask(t *testing.T) {
	s, err := NewSchema(
		Column{Name: "id", Type: BigInt},
		Column{Name: "note", Type: Varchar, Nullable: true},
	)
	require.NoError(t, err)
	tup, err := Of(s, int64(7), nil)
	require.NoError(t, err)
	row := tup.Marshal()
	require.Equal(t, byte(0x40), row[0])

	decoded, err := Decode(s, row)
	require.NoError(t, err)
	assert.Nil(t, decoded.Value(1))

	t.Run("null in non-nullable column", func(t *testing.T) {
		bad := append([]byte{}, row...)
		bad[0] |= 0x80
		_, err := Decode(s, bad)
		assert.ErrorIs(t, err, ErrNotNullable)
	})

	t.Run("padding bits set", func(t *testing.T) {
		bad := append([]byte{}, row...)
		bad[0] |= 0x01
		_, err := Decode(s, bad)
		assert.ErrorIs(t, err, ErrMalformedRow)
	})
}
