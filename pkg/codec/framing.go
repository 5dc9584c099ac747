package codec

import (
	"errors"
	"fmt"
)

var ErrFraming = errors.New("invalid transaction framing")

// FramingChecker validates the order of records in a stream: every change
// record sits between a BEGIN_TXN and its END_TXN, transactions never nest
// and END_TXN repeats the spHandle of its BEGIN_TXN.
type FramingChecker struct {
	open     bool
	txnID    int64
	spHandle int64

	Transactions int
	Changes      int
}

// Check feeds the next record to the checker
func (c *FramingChecker) Check(r *Record) error {
	switch {
	case r.Type == TypeBeginTxn:
		if c.open {
			return fmt.Errorf("%w: begin txn %d while txn %d is open", ErrFraming, r.TxnID, c.txnID)
		}
		c.open = true
		c.txnID = r.TxnID
		c.spHandle = r.SpHandle
	case r.Type == TypeEndTxn:
		if !c.open {
			return fmt.Errorf("%w: end txn sphandle %d without begin", ErrFraming, r.SpHandle)
		}
		if r.SpHandle != c.spHandle {
			return fmt.Errorf("%w: end txn sphandle %d, begin had %d", ErrFraming, r.SpHandle, c.spHandle)
		}
		c.open = false
		c.Transactions++
	case r.Type.IsChange():
		if !c.open {
			return fmt.Errorf("%w: %s outside a transaction", ErrFraming, r.Type)
		}
		c.Changes++
	default:
		return fmt.Errorf("%w: %s", ErrUnknownType, r.Type)
	}
	return nil
}

// Open reports whether a BEGIN_TXN is waiting for its END_TXN
func (c *FramingChecker) Open() bool {
	return c.open
}

// Finish fails if the stream ended inside a transaction
func (c *FramingChecker) Finish() error {
	if c.open {
		return fmt.Errorf("%w: txn %d not terminated", ErrFraming, c.txnID)
	}
	return nil
}

// CheckFraming decodes data and validates checksums and framing. data must
// hold whole transactions, like a sealed stream block.
func CheckFraming(data []byte) (*FramingChecker, error) {
	c := &FramingChecker{}
	sc := NewScanner(data)
	for sc.Next() {
		if err := c.Check(sc.Record()); err != nil {
			return c, fmt.Errorf("offset %d: %w", sc.Offset()-sc.Record().Size, err)
		}
	}
	if err := sc.Err(); err != nil {
		return c, err
	}
	return c, c.Finish()
}
