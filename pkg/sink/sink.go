// Package sink provides the push endpoints sealed DR stream blocks are
// handed to: segment files on disk, a pebble database, a Kafka topic and
// an in-memory buffer for tests.
//
// Every sink implements stream.Pusher. Pushed blocks are sealed and owned
// by the sink; their bytes are copied or written out before PushBlock
// returns.
package sink

import (
	"errors"
	"fmt"
	"time"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/metrics"
)

var (
	ErrClosed      = errors.New("sink is closed")
	ErrUnknownType = errors.New("unknown sink type")
	// ErrStreamEnded is returned for blocks pushed to a partition after its
	// end-of-stream block.
	ErrStreamEnded = errors.New("partition stream already ended")
)

// Sink types
const (
	TypeFile   = "file"
	TypePebble = "pebble"
	TypeKafka  = "kafka"
	TypeMemory = "memory"
)

// Sink is a block push endpoint shared by any number of partition streams
type Sink interface {
	PushBlock(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) error
	Close() error
}

// observe records one push in m
func observe(m *metrics.SinkMetrics, sink string, size int, start time.Time, err error) {
	m.Observe(sink, size, time.Since(start).Seconds(), err)
}

func checkSealed(b *block.StreamBlock) error {
	if !b.Sealed() {
		return fmt.Errorf("block at uso %d pushed before it was sealed", b.StartUSO())
	}
	return nil
}
