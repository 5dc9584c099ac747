package sink

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/metrics"
)

// Kafka message headers
const (
	HeaderStartUSO    = "dr-start-uso"
	HeaderEndOfStream = "dr-end-of-stream"
)

const defaultWriteTimeout = 10 * time.Second

// KafkaConfig holds configuration for the Kafka sink
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes one message per block. The message key is the partition
// id, so the blocks of a partition land on one Kafka partition in order.
type Kafka struct {
	mu      sync.Mutex
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.SinkMetrics
	closed  bool
}

// NewKafka creates a Kafka sink writing synchronously with acks from all
// in-sync replicas.
func NewKafka(cfg KafkaConfig, opts ...Option) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka sink: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka sink: topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
	return newKafka(w, cfg.WriteTimeout, opts...), nil
}

func newKafka(w messageWriter, timeout time.Duration, opts ...Option) *Kafka {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	o := buildOptions(TypeKafka, opts)
	return &Kafka{writer: w, timeout: timeout, logger: o.logger, metrics: o.metrics}
}

// BlockMessage builds the Kafka message for a block
func BlockMessage(partitionID int32, b *block.StreamBlock, endOfStream bool) kafka.Message {
	eos := "false"
	if endOfStream {
		eos = "true"
	}
	return kafka.Message{
		Key:   []byte(strconv.Itoa(int(partitionID))),
		Value: append([]byte(nil), b.Bytes()...),
		Headers: []kafka.Header{
			{Key: HeaderStartUSO, Value: binary.BigEndian.AppendUint64(nil, uint64(b.StartUSO()))},
			{Key: HeaderEndOfStream, Value: []byte(eos)},
		},
	}
}

// PushBlock publishes the block. Writes are always synchronous, so sync
// needs no extra work.
func (k *Kafka) PushBlock(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) (err error) {
	start := time.Now()
	size := b.Offset()
	defer func() { observe(k.metrics, TypeKafka, size, start, err) }()

	if err = checkSealed(b); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	if err = k.writer.WriteMessages(ctx, BlockMessage(partitionID, b, endOfStream)); err != nil {
		return fmt.Errorf("publish block at uso %d: %w", b.StartUSO(), err)
	}

	if endOfStream {
		k.logger.Info("dr partition stream ended", zap.Int32("partition", partitionID), zap.Int64("uso", b.USO()))
	}
	return nil
}

// Close flushes and closes the writer
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.writer.Close()
}
