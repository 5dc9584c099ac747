// Package catalog maps replicated tables to the 8 byte signature carried
// by every DR change record.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/ssargent/drlog/pkg/tuple"
)

var (
	ErrTableNotFound      = errors.New("table not found")
	ErrTableExists        = errors.New("table already registered")
	ErrSignatureCollision = errors.New("table signature collision")
)

// Table is a replicated table
type Table struct {
	name      string
	schema    *tuple.Schema
	signature uint64
}

// Name returns the table name as registered
func (t *Table) Name() string { return t.name }

// Schema returns the table schema
func (t *Table) Schema() *tuple.Schema { return t.schema }

// Signature returns the table identity written into change records
func (t *Table) Signature() uint64 { return t.signature }

// Signature derives a table signature from its name and column layout, so
// a schema change yields a new signature replicas can detect.
func Signature(name string, schema *tuple.Schema) uint64 {
	return xxhash.Sum64String(strings.ToUpper(name) + "|" + schema.String())
}

// Registry is a concurrency-safe table lookup
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Table
	bySig  map[uint64]*Table
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Table),
		bySig:  make(map[uint64]*Table),
	}
}

// Register adds a table. Names are case-insensitive.
func (r *Registry) Register(name string, schema *tuple.Schema) (*Table, error) {
	if name == "" || schema == nil {
		return nil, fmt.Errorf("catalog: table needs a name and a schema")
	}
	key := strings.ToUpper(name)
	t := &Table{name: name, schema: schema, signature: Signature(name, schema)}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrTableExists, name)
	}
	if other, ok := r.bySig[t.signature]; ok {
		return nil, fmt.Errorf("%w: %s and %s share %016x", ErrSignatureCollision, name, other.name, t.signature)
	}
	r.byName[key] = t
	r.bySig[t.signature] = t
	return t, nil
}

// Lookup finds a table by name
func (r *Registry) Lookup(name string) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byName[strings.ToUpper(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// BySignature finds a table by the signature in a change record
func (r *Registry) BySignature(sig uint64) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.bySig[sig]
	if !ok {
		return nil, fmt.Errorf("%w: signature %016x", ErrTableNotFound, sig)
	}
	return t, nil
}

// Tables returns every registered table sorted by name
func (r *Registry) Tables() []*Table {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Table, 0, len(r.byName))
	for _, t := range r.byName {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
