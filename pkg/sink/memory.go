package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/metrics"
)

// Pushed is a copy of one pushed block
type Pushed struct {
	PartitionID int32
	StartUSO    int64
	Data        []byte
	Sync        bool
	EndOfStream bool
}

// Memory keeps copies of every pushed block
type Memory struct {
	mu      sync.Mutex
	blocks  []Pushed
	ended   map[int32]bool
	metrics *metrics.SinkMetrics
	closed  bool
}

// NewMemory creates an empty memory sink
func NewMemory(opts ...Option) *Memory {
	o := buildOptions(TypeMemory, opts)
	return &Memory{ended: make(map[int32]bool), metrics: o.metrics}
}

// PushBlock copies the block
func (m *Memory) PushBlock(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) (err error) {
	start := time.Now()
	defer func() { observe(m.metrics, TypeMemory, b.Offset(), start, err) }()

	if err = checkSealed(b); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.ended[partitionID] {
		return fmt.Errorf("%w: partition %d", ErrStreamEnded, partitionID)
	}
	if endOfStream {
		m.ended[partitionID] = true
	}

	m.blocks = append(m.blocks, Pushed{
		PartitionID: partitionID,
		StartUSO:    b.StartUSO(),
		Data:        append([]byte(nil), b.Bytes()...),
		Sync:        sync,
		EndOfStream: endOfStream,
	})
	return nil
}

// Blocks returns the pushed blocks in push order
func (m *Memory) Blocks() []Pushed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Pushed(nil), m.blocks...)
}

// Bytes returns the concatenated stream of a partition
func (m *Memory) Bytes(partitionID int32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []byte
	for _, b := range m.blocks {
		if b.PartitionID == partitionID {
			out = append(out, b.Data...)
		}
	}
	return out
}

// Close rejects further pushes
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
