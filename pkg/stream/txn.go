package stream

import (
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/codec"
)

// txnWindow is the open transaction: its identifiers and the stream
// offset of its BEGIN_TXN.
type txnWindow struct {
	open     bool
	txnID    int64
	spHandle int64
	startUSO int64
}

// BeginTransaction writes a BEGIN_TXN record and opens the transaction.
// Opening a transaction while one is open, or with a spHandle below the
// watermark, is fatal. If handing off a full block fails the error is
// returned and the transaction is not opened.
func (s *Stream) BeginTransaction(txnID, spHandle int64) error {
	if s.mode == ModeDisabled {
		return nil
	}
	const op = "BeginTransaction"
	s.checkUsable(op)
	if s.txn.open {
		s.fatalf(op, "txn %d begins while txn %d is open", txnID, s.txn.txnID)
	}
	if spHandle < s.committedSpHandle {
		s.fatalf(op, "spHandle %d moving backwards, last committed %d", spHandle, s.committedSpHandle)
	}

	if err := s.ensureCapacity(op, codec.BeginTxnSize); err != nil {
		return err
	}

	s.used = true
	s.txn = txnWindow{open: true, txnID: txnID, spHandle: spHandle, startUSO: s.uso}
	s.curr.RecordLastBeginTxnOffset()
	dst := s.reserve(op, codec.BeginTxnSize)
	n := codec.BeginTxn{TxnID: txnID, SpHandle: spHandle}.Put(dst)
	s.consume(op, n)

	s.metrics.TransactionOpened(s.partitionID)
	s.metrics.RecordWritten(s.partitionID, codec.TypeBeginTxn.String(), n)
	return nil
}

// EndTransaction writes the END_TXN record, advances the watermark to
// spHandle and closes the transaction. spHandle must be the one the
// transaction began with.
func (s *Stream) EndTransaction(spHandle int64) error {
	if s.mode == ModeDisabled {
		return nil
	}
	const op = "EndTransaction"
	s.checkUsable(op)
	if !s.txn.open {
		s.fatalf(op, "no open transaction to end at spHandle %d", spHandle)
	}
	if spHandle != s.txn.spHandle {
		s.fatalf(op, "spHandle %d does not match open txn %d spHandle %d", spHandle, s.txn.txnID, s.txn.spHandle)
	}

	if err := s.ensureCapacity(op, codec.EndTxnSize); err != nil {
		return err
	}
	dst := s.reserve(op, codec.EndTxnSize)
	n := codec.EndTxn{SpHandle: spHandle}.Put(dst)
	s.consume(op, n)

	s.committedSpHandle = spHandle
	s.committedUSO = s.uso
	s.txn = txnWindow{}

	s.metrics.RecordWritten(s.partitionID, codec.TypeEndTxn.String(), n)
	s.metrics.TransactionCommitted(s.partitionID, spHandle)
	return nil
}

// RollbackTo discards every byte written after stream offset mark. A mark
// at the start of the open transaction removes its BEGIN_TXN and closes
// it; a later mark undoes individual changes and leaves it open. Marks
// past the current offset or inside committed data are fatal.
func (s *Stream) RollbackTo(mark int64) {
	if s.mode == ModeDisabled {
		return
	}
	const op = "RollbackTo"
	s.checkUsable(op)
	if mark > s.uso {
		s.fatalf(op, "truncating the future: mark %d, uso %d", mark, s.uso)
	}
	if mark < s.committedUSO {
		s.fatalf(op, "mark %d is inside committed data ending at %d", mark, s.committedUSO)
	}

	discarded := s.uso - mark
	if discarded > 0 {
		uso, err := s.curr.TruncateTo(mark)
		if err != nil {
			s.fatalf(op, "truncate active block: %v", err)
		}
		s.uso = uso
	}

	closed := false
	if s.txn.open && mark <= s.txn.startUSO {
		s.logger.Debug("dr transaction rolled back",
			zap.Int64("txn_id", s.txn.txnID),
			zap.Int64("sp_handle", s.txn.spHandle),
			zap.Int64("discarded_bytes", discarded),
		)
		s.txn = txnWindow{}
		closed = true
	}
	s.metrics.RolledBack(s.partitionID, discarded, closed)
}

// Rollback discards the open transaction, BEGIN_TXN included, restoring
// the stream to its state before BeginTransaction. Without an open
// transaction it does nothing.
func (s *Stream) Rollback() {
	if s.mode == ModeDisabled || !s.txn.open {
		return
	}
	s.RollbackTo(s.txn.startUSO)
}
