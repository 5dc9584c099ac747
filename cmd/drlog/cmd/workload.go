/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ssargent/drlog/pkg/catalog"
	"github.com/ssargent/drlog/pkg/codec"
	"github.com/ssargent/drlog/pkg/stream"
	"github.com/ssargent/drlog/pkg/tuple"
)

// workload drives synthetic transactions through a stream
type workload struct {
	Transactions int
	RowsPerTxn   int
	// RollbackEvery rolls back every Nth transaction instead of committing it
	RollbackEvery int
	// UndoEvery undoes every Nth statement inside its transaction
	UndoEvery int
	Seed      int64
}

// workloadResult summarizes a run
type workloadResult struct {
	Committed  int   `json:"committed"`
	RolledBack int   `json:"rolled_back"`
	Rows       int   `json:"rows"`
	Undone     int   `json:"undone"`
	Bytes      int64 `json:"bytes"`
}

var changeTypes = []codec.RecordType{codec.TypeInsert, codec.TypeUpdate, codec.TypeDelete}

// run executes the workload. publish, when set, receives the stream stats
// after every transaction. The stream is left open.
func (w workload) run(ctx context.Context, s *stream.Stream, tables []*catalog.Table, publish func(stream.Stats)) (res workloadResult, err error) {
	if len(tables) == 0 {
		return res, fmt.Errorf("no tables configured")
	}
	defer recoverFatal(&err)

	rng := rand.New(rand.NewSource(w.Seed))
	spHandle := s.LastCommittedSpHandle()
	statement := 0

	for i := 1; i <= w.Transactions; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		spHandle++
		txnID := int64(i)
		if err := s.BeginTransaction(txnID, spHandle); err != nil {
			return res, err
		}

		for r := 0; r < w.RowsPerTxn; r++ {
			statement++
			table := tables[rng.Intn(len(tables))]
			row, err := randomTuple(rng, table.Schema())
			if err != nil {
				return res, err
			}

			mark := s.USO()
			if _, err := s.AppendTuple(table, txnID, spHandle, row, changeTypes[rng.Intn(len(changeTypes))]); err != nil {
				return res, err
			}
			if w.UndoEvery > 0 && statement%w.UndoEvery == 0 {
				s.RollbackTo(mark)
				res.Undone++
				continue
			}
			res.Rows++
		}

		if w.RollbackEvery > 0 && i%w.RollbackEvery == 0 {
			s.Rollback()
			res.RolledBack++
		} else {
			if err := s.EndTransaction(spHandle); err != nil {
				return res, err
			}
			res.Committed++
		}

		if err := s.PeriodicFlush(time.Now()); err != nil {
			return res, err
		}
		if publish != nil {
			publish(s.Stats())
		}
	}

	res.Bytes = s.USO()
	return res, nil
}

// recoverFatal turns a stream invariant violation into an error
func recoverFatal(err *error) {
	if r := recover(); r != nil {
		fe, ok := r.(*stream.FatalError)
		if !ok {
			panic(r)
		}
		*err = fe
	}
}

// randomTuple fills every column of schema with a value of its type. About
// one in ten nullable columns is NULL.
func randomTuple(rng *rand.Rand, schema *tuple.Schema) (*tuple.Tuple, error) {
	values := make([]any, schema.ColumnCount())
	for i, col := range schema.Columns() {
		if col.Nullable && rng.Intn(10) == 0 {
			continue
		}
		switch col.Type {
		case tuple.TinyInt:
			values[i] = int8(rng.Intn(128))
		case tuple.SmallInt:
			values[i] = int16(rng.Intn(1 << 15))
		case tuple.Integer:
			values[i] = rng.Int31()
		case tuple.BigInt:
			values[i] = rng.Int63()
		case tuple.Float:
			values[i] = rng.Float64() * 1000
		case tuple.Timestamp:
			values[i] = time.UnixMicro(1_700_000_000_000_000 + rng.Int63n(1_000_000_000_000))
		case tuple.Varchar:
			values[i] = fmt.Sprintf("%s-%d", col.Name, rng.Intn(1_000_000))
		case tuple.Varbinary:
			b := make([]byte, rng.Intn(32))
			rng.Read(b)
			values[i] = b
		}
	}
	return tuple.Of(schema, values...)
}
