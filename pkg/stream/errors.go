package stream

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrPushFailed wraps errors returned by the Pusher. The block has been
// handed off regardless and is not retried.
var ErrPushFailed = errors.New("stream block push failed")

// FatalError is the panic value of a stream contract violation
type FatalError struct {
	Op        string
	Partition int32
	Msg       string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("drlog: fatal error in %s on partition %d: %s", e.Op, e.Partition, e.Msg)
}

// IsFatal reports whether v, typically a recovered panic value, is a
// *FatalError.
func IsFatal(v any) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var fe *FatalError
	return errors.As(err, &fe)
}

func (s *Stream) fatalf(op, format string, args ...any) {
	err := &FatalError{Op: op, Partition: s.partitionID, Msg: fmt.Sprintf(format, args...)}
	s.logger.Error("dr stream contract violation",
		zap.String("op", op),
		zap.Int32("partition", s.partitionID),
		zap.Int64("uso", s.uso),
		zap.Error(err),
	)
	panic(err)
}
