// Package tuple holds the in-memory row representation handed to the DR
// stream and its schema-driven binary serialization.
package tuple

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSchema = errors.New("invalid schema")
	ErrTypeMismatch  = errors.New("value does not match column type")
	ErrNotNullable   = errors.New("null value in non-nullable column")
	ErrColumnIndex   = errors.New("column index out of range")
	ErrMalformedRow  = errors.New("malformed row")
)

// ColumnType is the storage type of a column
type ColumnType uint8

const (
	TinyInt ColumnType = iota + 1
	SmallInt
	Integer
	BigInt
	Float
	Timestamp
	Varchar
	Varbinary
)

var typeNames = map[ColumnType]string{
	TinyInt:   "TINYINT",
	SmallInt:  "SMALLINT",
	Integer:   "INTEGER",
	BigInt:    "BIGINT",
	Float:     "FLOAT",
	Timestamp: "TIMESTAMP",
	Varchar:   "VARCHAR",
	Varbinary: "VARBINARY",
}

func (t ColumnType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TYPE(%d)", uint8(t))
}

// ParseColumnType maps a SQL type name to its ColumnType
func ParseColumnType(name string) (ColumnType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == upper {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown column type %q", ErrInvalidSchema, name)
}

// FixedSize returns the serialized width of fixed-size types and 0 for
// variable-length ones.
func (t ColumnType) FixedSize() int {
	switch t {
	case TinyInt:
		return 1
	case SmallInt:
		return 2
	case Integer:
		return 4
	case BigInt, Float, Timestamp:
		return 8
	default:
		return 0
	}
}

// Variable reports whether values carry a length prefix
func (t ColumnType) Variable() bool {
	return t == Varchar || t == Varbinary
}

// Column describes one column of a table
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema is the ordered column list of a table
type Schema struct {
	columns []Column
}

// NewSchema validates and builds a schema
func NewSchema(columns ...Column) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrInvalidSchema)
	}
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: column %d has no name", ErrInvalidSchema, i)
		}
		if _, ok := typeNames[c.Type]; !ok {
			return nil, fmt.Errorf("%w: column %q has unknown type %d", ErrInvalidSchema, c.Name, c.Type)
		}
		if _, dup := seen[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrInvalidSchema, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return &Schema{columns: append([]Column(nil), columns...)}, nil
}

// ColumnCount returns the number of columns
func (s *Schema) ColumnCount() int { return len(s.columns) }

// Column returns column i
func (s *Schema) Column(i int) Column { return s.columns[i] }

// Columns returns a copy of the column list
func (s *Schema) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// String renders the schema as "name TYPE [NULL], ..."; the catalog hashes
// it into the table signature.
func (s *Schema) String() string {
	var sb strings.Builder
	for i, c := range s.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.Name)
		sb.WriteByte(' ')
		sb.WriteString(c.Type.String())
		if c.Nullable {
			sb.WriteString(" NULL")
		}
	}
	return sb.String()
}
