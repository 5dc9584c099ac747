// Package stream encodes committed row changes of one database partition
// into the DR change log.
//
// A Stream is driven by the single thread that owns the partition:
//
//	s.Configure(partitionID)
//	s.BeginTransaction(txnID, spHandle)
//	s.AppendTuple(table, txnID, spHandle, row, codec.TypeInsert)
//	s.EndTransaction(spHandle)
//
// Records are written in place into the active block.StreamBlock. When a
// block cannot hold the next record it is sealed and handed to the Pusher,
// but only up to the end of the last committed transaction: the bytes of
// an open transaction move into the next block, so a pushed block never
// holds a BEGIN_TXN without its END_TXN. A transaction that aborts before
// EndTransaction is removed with Rollback or RollbackTo, which truncate
// the active block back to a captured stream offset.
//
// Contract violations (appending outside a transaction, nesting
// transactions, records larger than the configured maximum, a row whose
// serialized size differs from its probe) are bugs in the caller or the
// schema layer. They are logged and raised as a panic carrying a
// *FatalError. Only sink failures are returned as errors.
//
// A Stream built with NewDisabled accepts the same calls and does nothing,
// so callers never branch on whether replication is enabled.
//
// Streams are not safe for concurrent use.
package stream
