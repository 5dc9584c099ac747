package stream

import (
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/metrics"
)

// ensureCapacity makes sure the active block can take n more bytes. A
// record that cannot fit in MaxBufferSize together with the rest of its
// transaction is fatal.
func (s *Stream) ensureCapacity(op string, n int) error {
	pending := s.pendingBytes()
	if int64(pending)+int64(n) > int64(s.cfg.MaxBufferSize) {
		s.fatalf(op, "%d byte record with %d bytes of open transaction exceeds max buffer size %d",
			n, pending, s.cfg.MaxBufferSize)
	}
	if s.curr != nil && s.curr.Remaining() >= n {
		return nil
	}
	return s.extendBufferChain(pending+n, false, metrics.ReasonFull)
}

// pendingBytes is the size of the open transaction written so far
func (s *Stream) pendingBytes() int {
	if !s.txn.open {
		return 0
	}
	return int(s.uso - s.txn.startUSO)
}

// extendBufferChain replaces the active block. The committed part of the
// old block is sealed and pushed; an open transaction moves into the new
// block, which holds at least minLength bytes. With nothing open and
// minLength 0 the new block is allocated lazily on the next write.
func (s *Stream) extendBufferChain(minLength int, sync bool, reason string) error {
	old := s.curr
	s.curr = nil

	if s.txn.open || minLength > 0 {
		capacity := s.cfg.DefaultCapacity
		if minLength > capacity {
			capacity = minLength
		}
		next, err := block.New(s.committedUSO, capacity)
		if err != nil {
			s.fatalf("extendBufferChain", "allocate block: %v", err)
		}
		if s.txn.open {
			s.carryOpenTransaction(old, next)
		}
		s.curr = next
	}

	if old == nil || old.Offset() == 0 {
		return nil
	}
	return s.push(old, sync, false, reason)
}

// carryOpenTransaction moves the open transaction's bytes from old to next
// and truncates old at the transaction start, so old only holds whole
// transactions.
func (s *Stream) carryOpenTransaction(old, next *block.StreamBlock) {
	const op = "extendBufferChain"
	if old == nil {
		return
	}
	if s.txn.startUSO < old.StartUSO() {
		s.fatalf(op, "open txn %d starts at %d, before the active block at %d", s.txn.txnID, s.txn.startUSO, old.StartUSO())
	}
	pending := old.Bytes()[s.txn.startUSO-old.StartUSO():]
	next.RecordLastBeginTxnOffset()
	if _, err := next.Append(pending); err != nil {
		s.fatalf(op, "carry %d bytes of txn %d: %v", len(pending), s.txn.txnID, err)
	}
	if _, err := old.TruncateTo(s.txn.startUSO); err != nil {
		s.fatalf(op, "truncate block at txn %d start: %v", s.txn.txnID, err)
	}
}

// reserve returns the next n bytes of the active block
func (s *Stream) reserve(op string, n int) []byte {
	dst, err := s.curr.Reserve(n)
	if err != nil {
		s.fatalf(op, "reserve %d bytes: %v", n, err)
	}
	return dst
}

// consume commits n reserved bytes and advances the stream offset
func (s *Stream) consume(op string, n int) {
	uso, err := s.curr.Consumed(n)
	if err != nil {
		s.fatalf(op, "consume %d bytes: %v", n, err)
	}
	s.uso = uso
}

// push hands a block off and drops every reference to it
func (s *Stream) push(b *block.StreamBlock, sync, endOfStream bool, reason string) error {
	size := b.Offset()
	err := s.PushExportBuffer(b, sync, endOfStream)
	s.blocksPushed++
	s.lastFlush = s.now()
	s.metrics.BlockPushed(s.partitionID, reason, size, err)
	return err
}

// hasCommittedBytes reports whether the active block holds a whole
// transaction that has not been pushed yet.
func (s *Stream) hasCommittedBytes() bool {
	return s.curr != nil && s.committedUSO > s.curr.StartUSO()
}

// Flush seals every committed transaction in the active block and pushes
// it. An open transaction stays buffered and is carried into a new block.
func (s *Stream) Flush(sync bool) error {
	if s.mode == ModeDisabled {
		return nil
	}
	s.checkUsable("Flush")
	if !s.hasCommittedBytes() {
		return nil
	}
	return s.extendBufferChain(s.pendingBytes(), sync, metrics.ReasonFlush)
}

// PeriodicFlush pushes committed data once FlushInterval has passed since
// the last push. The owning engine calls it from its idle loop.
func (s *Stream) PeriodicFlush(now time.Time) error {
	if s.mode == ModeDisabled || s.cfg.FlushInterval <= 0 {
		return nil
	}
	s.checkUsable("PeriodicFlush")
	if now.Sub(s.lastFlush) < s.cfg.FlushInterval {
		return nil
	}
	if !s.hasCommittedBytes() {
		s.lastFlush = now
		return nil
	}
	return s.extendBufferChain(s.pendingBytes(), false, metrics.ReasonPeriodic)
}

// Close pushes the final block flagged as end of stream, even when it is
// empty. Closing with an open transaction is fatal, as is any operation
// after Close.
func (s *Stream) Close() error {
	if s.mode == ModeDisabled {
		return nil
	}
	const op = "Close"
	s.checkUsable(op)
	if s.txn.open {
		s.fatalf(op, "end of stream with txn %d open", s.txn.txnID)
	}

	last := s.curr
	if last == nil {
		var err error
		if last, err = block.New(s.uso, 0); err != nil {
			s.fatalf(op, "allocate terminal block: %v", err)
		}
	}
	s.curr = nil
	s.closed = true
	s.logger.Info("dr stream closed",
		zap.Int64("uso", s.uso),
		zap.Int64("last_committed_sp_handle", s.committedSpHandle),
	)
	return s.push(last, true, true, metrics.ReasonEnd)
}
