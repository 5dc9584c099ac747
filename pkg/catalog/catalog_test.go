package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/drlog/pkg/tuple"
)

func testSchema(t *testing.T, cols ...tuple.Column) *tuple.Schema {
	t.Helper()
	s, err := tuple.NewSchema(cols...)
	require.NoError(t, err)
	return s
}

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	s := testSchema(t, tuple.Column{Name: "id", Type: tuple.BigInt})

	orders, err := r.Register("orders", s)
	require.NoError(t, err)
	assert.Equal(t, "orders", orders.Name())
	assert.Equal(t, Signature("orders", s), orders.Signature())

	got, err := r.Lookup("ORDERS")
	require.NoError(t, err)
	assert.Same(t, orders, got)

	got, err = r.BySignature(orders.Signature())
	require.NoError(t, err)
	assert.Same(t, orders, got)

	_, err = r.Register("Orders", s)
	assert.ErrorIs(t, err, ErrTableExists)

	_, err = r.Lookup("missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
	_, err = r.BySignature(1)
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestSignature_ChangesWithSchema(t *testing.T) {
	a := testSchema(t, tuple.Column{Name: "id", Type: tuple.BigInt})
	b := testSchema(t, tuple.Column{Name: "id", Type: tuple.Integer})

	assert.Equal(t, Signature("t", a), Signature("T", a), "names are case-insensitive")
	assert.NotEqual(t, Signature("t", a), Signature("t", b))
	assert.NotEqual(t, Signature("t", a), Signature("u", a))
}

func TestRegistry_Tables(t *testing.T) {
	r := NewRegistry()
	s := testSchema(t, tuple.Column{Name: "id", Type: tuple.BigInt})
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := r.Register(name, s)
		require.NoError(t, err)
	}

	tables := r.Tables()
	require.Len(t, tables, 3)
	assert.Equal(t, "alpha", tables[0].Name())
	assert.Equal(t, "zeta", tables[2].Name())
}
