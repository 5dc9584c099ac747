package sink

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/block"
	"github.com/ssargent/drlog/pkg/metrics"
)

const (
	DefaultSegmentSize = 64 * 1024 * 1024
	defaultBufferSize  = 64 * 1024
)

// FileConfig holds configuration for the file sink
type FileConfig struct {
	Dir         string
	SegmentSize int64
	BufferSize  int
}

// File spools blocks into append-only segment files, one directory per
// partition. A segment is rotated when the next block would push it past
// SegmentSize, or when a block does not continue at the segment's end.
type File struct {
	mu      sync.Mutex
	cfg     FileConfig
	logger  *zap.Logger
	metrics *metrics.SinkMetrics

	open   map[int32]*segmentWriter
	ended  map[int32]bool
	closed bool
}

// NewFile creates a file sink rooted at cfg.Dir
func NewFile(cfg FileConfig, opts ...Option) (*File, error) {
	if cfg.Dir == "" {
		return nil, errors.New("file sink: directory is required")
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	o := buildOptions(TypeFile, opts)
	return &File{
		cfg:     cfg,
		logger:  o.logger,
		metrics: o.metrics,
		open:    make(map[int32]*segmentWriter),
		ended:   make(map[int32]bool),
	}, nil
}

// Dir returns the root directory of the sink
func (f *File) Dir() string {
	return f.cfg.Dir
}

// PushBlock appends the block to the partition's active segment
func (f *File) PushBlock(partitionID int32, b *block.StreamBlock, sync, endOfStream bool) (err error) {
	start := time.Now()
	data := b.Bytes()
	defer func() { observe(f.metrics, TypeFile, len(data), start, err) }()

	if err = checkSealed(b); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.ended[partitionID] {
		return fmt.Errorf("%w: partition %d", ErrStreamEnded, partitionID)
	}

	w := f.open[partitionID]
	if w != nil && f.shouldRotate(w, b.StartUSO(), len(data)) {
		if err = f.closeSegment(partitionID, w, "rotated"); err != nil {
			return err
		}
		w = nil
	}

	if w == nil && len(data) > 0 {
		w, err = createSegment(f.partitionDir(partitionID), b.StartUSO(), f.cfg.BufferSize)
		if err != nil {
			return fmt.Errorf("create segment: %w", err)
		}
		f.open[partitionID] = w
	}

	if w != nil && len(data) > 0 {
		if err = w.write(data); err != nil {
			return fmt.Errorf("write segment %s: %w", w.path, err)
		}
		if sync {
			if err = w.sync(); err != nil {
				return fmt.Errorf("sync segment %s: %w", w.path, err)
			}
		}
	}

	if endOfStream {
		f.ended[partitionID] = true
		if w != nil {
			return f.closeSegment(partitionID, w, "end of stream")
		}
	}
	return nil
}

func (f *File) shouldRotate(w *segmentWriter, startUSO int64, n int) bool {
	if w.nextUSO() != startUSO {
		return true
	}
	return w.size > 0 && w.size+int64(n) > f.cfg.SegmentSize
}

func (f *File) closeSegment(partitionID int32, w *segmentWriter, why string) error {
	delete(f.open, partitionID)
	if err := w.close(); err != nil {
		return fmt.Errorf("close segment %s: %w", w.path, err)
	}
	f.logger.Info("dr segment closed",
		zap.Int32("partition", partitionID),
		zap.String("path", w.path),
		zap.Int64("start_uso", w.startUSO),
		zap.Int64("bytes", w.size),
		zap.String("reason", why),
	)
	return nil
}

func (f *File) partitionDir(partitionID int32) string {
	return filepath.Join(f.cfg.Dir, strconv.Itoa(int(partitionID)))
}

// Sync flushes and fsyncs every open segment
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	for _, w := range f.open {
		err = multierr.Append(err, w.sync())
	}
	return err
}

// Close syncs and closes every open segment
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	for partitionID, w := range f.open {
		err = multierr.Append(err, f.closeSegment(partitionID, w, "sink closed"))
	}
	return err
}
