package stream

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/codec"
	"github.com/ssargent/drlog/pkg/metrics"
)

const (
	DefaultCapacity      = 2 * 1024 * 1024
	DefaultMaxBufferSize = 50 * 1024 * 1024
)

// Mode selects between an encoding stream and a no-op one
type Mode uint8

const (
	ModeActive Mode = iota
	ModeDisabled
)

func (m Mode) String() string {
	if m == ModeDisabled {
		return "disabled"
	}
	return "active"
}

// Pusher receives sealed blocks. It is called exactly once per sealed
// block, on the stream's thread, and owns the block afterwards. sync asks
// for the block to be made durable before returning; endOfStream marks the
// last block the stream will ever push.
type Pusher interface {
	PushBlock(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) error
}

// PusherFunc adapts a function to Pusher
type PusherFunc func(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) error

// PushBlock calls f
func (f PusherFunc) PushBlock(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) error {
	return f(partitionID, b, sync, endOfStream)
}

// Config sizes the stream's blocks
type Config struct {
	// DefaultCapacity is the size of a freshly allocated block
	DefaultCapacity int
	// MaxBufferSize bounds any block. A record, together with the rest of
	// its open transaction, must fit in it.
	MaxBufferSize int
	// FlushInterval is the PeriodicFlush period; 0 disables it
	FlushInterval time.Duration
}

// DefaultConfig returns the stock block sizing
func DefaultConfig() Config {
	return Config{
		DefaultCapacity: DefaultCapacity,
		MaxBufferSize:   DefaultMaxBufferSize,
		FlushInterval:   time.Second,
	}
}

// Validate checks the sizing is usable
func (c Config) Validate() error {
	minCapacity := codec.BeginTxnSize + codec.EndTxnSize
	if c.DefaultCapacity < minCapacity {
		return fmt.Errorf("default capacity %d is below the %d bytes of an empty transaction", c.DefaultCapacity, minCapacity)
	}
	if c.MaxBufferSize < c.DefaultCapacity {
		return fmt.Errorf("max buffer size %d is below default capacity %d", c.MaxBufferSize, c.DefaultCapacity)
	}
	if c.FlushInterval < 0 {
		return errors.New("flush interval must not be negative")
	}
	return nil
}

// Option customizes a Stream
type Option func(*Stream)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Stream) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the Prometheus instrumentation
func WithMetrics(m *metrics.StreamMetrics) Option {
	return func(s *Stream) { s.metrics = m }
}

// WithClock replaces time.Now for PeriodicFlush bookkeeping
func WithClock(now func() time.Time) Option {
	return func(s *Stream) {
		if now != nil {
			s.now = now
		}
	}
}

// Stream is the DR change-log encoder of one partition
type Stream struct {
	mode    Mode
	cfg     Config
	pusher  Pusher
	base    *zap.Logger
	logger  *zap.Logger
	metrics *metrics.StreamMetrics
	now     func() time.Time

	partitionID int32
	configured  bool
	used        bool
	closed      bool

	curr         *block.StreamBlock
	uso          int64
	committedUSO int64
	// watermark
	committedSpHandle int64
	txn               txnWindow

	lastFlush    time.Time
	blocksPushed int64
}

// New returns an active stream that hands sealed blocks to pusher.
// Configure must be called before any other operation.
func New(cfg Config, pusher Pusher, opts ...Option) (*Stream, error) {
	if pusher == nil {
		return nil, errors.New("stream: pusher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("stream: %w", err)
	}
	s := newStream(ModeActive, opts...)
	s.cfg = cfg
	s.pusher = pusher
	s.lastFlush = s.now()
	return s, nil
}

// NewDisabled returns a stream for partitions that do not replicate.
// Every operation is a no-op: AppendTuple returns 0 and nothing is ever
// pushed.
func NewDisabled(opts ...Option) *Stream {
	return newStream(ModeDisabled, opts...)
}

func newStream(mode Mode, opts ...Option) *Stream {
	s := &Stream{
		mode:   mode,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.base = s.logger
	return s
}

// Configure sets the partition identity. It may be repeated until the
// first transaction begins.
func (s *Stream) Configure(partitionID int32) {
	if s.used && partitionID != s.partitionID {
		s.fatalf("Configure", "partition %d already in use, cannot become %d", s.partitionID, partitionID)
	}
	s.partitionID = partitionID
	s.configured = true
	s.logger = s.base.With(zap.Int32("partition", partitionID))
}

// Mode returns the stream mode
func (s *Stream) Mode() Mode { return s.mode }

// Enabled reports whether the stream encodes anything
func (s *Stream) Enabled() bool { return s.mode == ModeActive }

// PartitionID returns the configured partition identity
func (s *Stream) PartitionID() int32 { return s.partitionID }

// USO returns the current universal stream offset: the position at which
// the next record will be written. It is a valid RollbackTo mark.
func (s *Stream) USO() int64 { return s.uso }

// LastCommittedSpHandle returns the watermark: the spHandle of the last
// transaction whose END_TXN has been written.
func (s *Stream) LastCommittedSpHandle() int64 { return s.committedSpHandle }

// InTransaction reports whether a transaction is open
func (s *Stream) InTransaction() bool { return s.txn.open }

// Stats is a point-in-time view of a stream
type Stats struct {
	PartitionID           int32  `json:"partition_id"`
	Mode                  string `json:"mode"`
	USO                   int64  `json:"uso"`
	CommittedUSO          int64  `json:"committed_uso"`
	LastCommittedSpHandle int64  `json:"last_committed_sp_handle"`
	InTransaction         bool   `json:"in_transaction"`
	OpenTxnID             int64  `json:"open_txn_id,omitempty"`
	BufferedBytes         int    `json:"buffered_bytes"`
	BlocksPushed          int64  `json:"blocks_pushed"`
	Closed                bool   `json:"closed"`
}

// Stats returns a snapshot of the stream state
func (s *Stream) Stats() Stats {
	st := Stats{
		PartitionID:           s.partitionID,
		Mode:                  s.mode.String(),
		USO:                   s.uso,
		CommittedUSO:          s.committedUSO,
		LastCommittedSpHandle: s.committedSpHandle,
		InTransaction:         s.txn.open,
		BlocksPushed:          s.blocksPushed,
		Closed:                s.closed,
	}
	if s.txn.open {
		st.OpenTxnID = s.txn.txnID
	}
	if s.curr != nil {
		st.BufferedBytes = s.curr.Offset()
	}
	return st
}

// PushExportBuffer seals b and hands it to the pusher. On a disabled
// stream it does nothing.
func (s *Stream) PushExportBuffer(b *block.StreamBlock, sync, endOfStream bool) error {
	if s.mode == ModeDisabled {
		return nil
	}
	b.Seal()
	s.logger.Debug("pushing dr block",
		zap.Int64("start_uso", b.StartUSO()),
		zap.Int("bytes", b.Offset()),
		zap.Bool("sync", sync),
		zap.Bool("end_of_stream", endOfStream),
	)
	if err := s.pusher.PushBlock(s.partitionID, b, sync, endOfStream); err != nil {
		s.logger.Error("dr block push failed", zap.Int64("start_uso", b.StartUSO()), zap.Error(err))
		return fmt.Errorf("%w: partition %d block at uso %d: %w", ErrPushFailed, s.partitionID, b.StartUSO(), err)
	}
	return nil
}

// checkUsable guards every encoding operation of an active stream
func (s *Stream) checkUsable(op string) {
	if !s.configured {
		s.fatalf(op, "stream used before Configure")
	}
	if s.closed {
		s.fatalf(op, "stream used after end of stream")
	}
}
