package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/metrics"
)

// Key layout:
//
//	'b' partition(4, big-endian) startUSO(8, big-endian) -> block bytes
//	'e' partition(4, big-endian)                         -> end offset(8)
const (
	blockPrefix byte = 'b'
	endPrefix   byte = 'e'
)

// StoredBlock is a block read back from the pebble sink
type StoredBlock struct {
	PartitionID int32
	StartUSO    int64
	Data        []byte
}

// Pebble stores every pushed block as one key in a pebble database, in
// stream offset order per partition.
type Pebble struct {
	mu      sync.Mutex
	db      *pebble.DB
	logger  *zap.Logger
	metrics *metrics.SinkMetrics
	closed  bool
}

// OpenPebble opens or creates the database at path
func OpenPebble(path string, opts ...Option) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble sink: %w", err)
	}
	o := buildOptions(TypePebble, opts)
	return &Pebble{db: db, logger: o.logger, metrics: o.metrics}, nil
}

func partitionKey(prefix byte, partitionID int32) []byte {
	key := make([]byte, 5, 13)
	key[0] = prefix
	binary.BigEndian.PutUint32(key[1:], uint32(partitionID))
	return key
}

func blockKey(partitionID int32, startUSO int64) []byte {
	return binary.BigEndian.AppendUint64(partitionKey(blockPrefix, partitionID), uint64(startUSO))
}

func writeOptions(sync bool) *pebble.WriteOptions {
	if sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

// PushBlock writes the block, and the end marker for an end-of-stream
// block, in one batch.
func (p *Pebble) PushBlock(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) (err error) {
	start := time.Now()
	data := b.Bytes()
	defer func() { observe(p.metrics, TypePebble, len(data), start, err) }()

	if err = checkSealed(b); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	if _, ended, lookupErr := p.endOffset(partitionID); lookupErr != nil {
		return lookupErr
	} else if ended {
		return fmt.Errorf("%w: partition %d", ErrStreamEnded, partitionID)
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	if len(data) > 0 {
		if err = batch.Set(blockKey(partitionID, b.StartUSO()), data, nil); err != nil {
			return err
		}
	}
	if endOfStream {
		end := binary.BigEndian.AppendUint64(nil, uint64(b.USO()))
		if err = batch.Set(partitionKey(endPrefix, partitionID), end, nil); err != nil {
			return err
		}
	}
	if err = batch.Commit(writeOptions(sync || endOfStream)); err != nil {
		return fmt.Errorf("commit block at uso %d: %w", b.StartUSO(), err)
	}

	if endOfStream {
		p.logger.Info("dr partition stream ended", zap.Int32("partition", partitionID), zap.Int64("uso", b.USO()))
	}
	return nil
}

// Blocks returns the stored blocks of a partition in stream order
func (p *Pebble) Blocks(partitionID int32) ([]StoredBlock, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	lower := partitionKey(blockPrefix, partitionID)
	upper := append(partitionKey(blockPrefix, partitionID), 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var blocks []StoredBlock
	for it.First(); it.Valid(); it.Next() {
		key := it.Key()
		blocks = append(blocks, StoredBlock{
			PartitionID: partitionID,
			StartUSO:    int64(binary.BigEndian.Uint64(key[5:])),
			Data:        append([]byte(nil), it.Value()...),
		})
	}
	return blocks, it.Error()
}

// EndOffset returns the final stream offset of a partition whose stream
// has ended.
func (p *Pebble) EndOffset(partitionID int32) (int64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, false, ErrClosed
	}
	return p.endOffset(partitionID)
}

func (p *Pebble) endOffset(partitionID int32) (int64, bool, error) {
	value, closer, err := p.db.Get(partitionKey(endPrefix, partitionID))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer closer.Close()
	return int64(binary.BigEndian.Uint64(value)), true, nil
}

// Close closes the database
func (p *Pebble) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.db.Close()
}
