package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/drlog/pkg/codec"
)

// SegmentExt is the file extension of DR segment files
const SegmentExt = ".drlog"

var ErrSegmentName = errors.New("invalid segment file name")

// Segment describes one segment file. Segments live in a directory per
// partition and are named <startUSO>-<ksuid>.drlog; the ksuid keeps names
// unique when a restarted stream writes the same offsets again.
type Segment struct {
	Partition int32       `json:"partition"`
	StartUSO  int64       `json:"start_uso"`
	ID        ksuid.KSUID `json:"id"`
	Path      string      `json:"path"`
	Size      int64       `json:"size"`
}

// SegmentName returns a fresh segment file name for a segment starting at
// startUSO.
func SegmentName(startUSO int64) string {
	return fmt.Sprintf("%020d-%s%s", startUSO, ksuid.New().String(), SegmentExt)
}

// ParseSegmentName extracts the start offset and id of a segment file name
func ParseSegmentName(name string) (int64, ksuid.KSUID, error) {
	base, ok := strings.CutSuffix(filepath.Base(name), SegmentExt)
	if !ok {
		return 0, ksuid.Nil, fmt.Errorf("%w: %s", ErrSegmentName, name)
	}
	usoPart, idPart, ok := strings.Cut(base, "-")
	if !ok {
		return 0, ksuid.Nil, fmt.Errorf("%w: %s", ErrSegmentName, name)
	}
	uso, err := strconv.ParseInt(usoPart, 10, 64)
	if err != nil {
		return 0, ksuid.Nil, fmt.Errorf("%w: %s: %v", ErrSegmentName, name, err)
	}
	id, err := ksuid.Parse(idPart)
	if err != nil {
		return 0, ksuid.Nil, fmt.Errorf("%w: %s: %v", ErrSegmentName, name, err)
	}
	return uso, id, nil
}

// ListSegments returns the segments under dir ordered by partition, start
// offset and creation time. Files that are not segments are skipped.
func ListSegments(dir string) ([]Segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var segments []Segment
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		partition, err := strconv.ParseInt(entry.Name(), 10, 32)
		if err != nil {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			if file.IsDir() || filepath.Ext(file.Name()) != SegmentExt {
				continue
			}
			uso, id, err := ParseSegmentName(file.Name())
			if err != nil {
				continue
			}
			info, err := file.Info()
			if err != nil {
				return nil, err
			}
			segments = append(segments, Segment{
				Partition: int32(partition),
				StartUSO:  uso,
				ID:        id,
				Path:      filepath.Join(dir, entry.Name(), file.Name()),
				Size:      info.Size(),
			})
		}
	}

	sort.Slice(segments, func(i, j int) bool {
		a, b := segments[i], segments[j]
		if a.Partition != b.Partition {
			return a.Partition < b.Partition
		}
		if a.StartUSO != b.StartUSO {
			return a.StartUSO < b.StartUSO
		}
		return a.ID.Time().Before(b.ID.Time())
	})
	return segments, nil
}

// segmentWriter appends blocks to one segment file
type segmentWriter struct {
	file     *os.File
	writer   *bufio.Writer
	path     string
	startUSO int64
	size     int64
}

func createSegment(dir string, startUSO int64, bufferSize int) (*segmentWriter, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, SegmentName(startUSO))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &segmentWriter{
		file:     file,
		writer:   bufio.NewWriterSize(file, bufferSize),
		path:     path,
		startUSO: startUSO,
	}, nil
}

// nextUSO is the stream offset the next contiguous block starts at
func (w *segmentWriter) nextUSO() int64 {
	return w.startUSO + w.size
}

func (w *segmentWriter) write(p []byte) error {
	n, err := w.writer.Write(p)
	w.size += int64(n)
	return err
}

func (w *segmentWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Sync()
}

func (w *segmentWriter) close() error {
	if err := w.sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

// SegmentReader reads the records of a segment file sequentially
type SegmentReader struct {
	file   *os.File
	reader *bufio.Reader
	offset int64
	path   string
}

// OpenSegment opens a segment file for reading
func OpenSegment(path string) (*SegmentReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &SegmentReader{
		file:   file,
		reader: bufio.NewReader(file),
		path:   path,
	}, nil
}

// ReadNext returns the next record, or io.EOF at the clean end of the
// file. A partial or corrupted record returns a codec error.
func (r *SegmentReader) ReadNext() (*codec.Record, error) {
	prefix, err := r.reader.Peek(codec.MaxPrefixSize)
	if len(prefix) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	n, err := codec.RecordLength(prefix)
	if err != nil {
		return nil, fmt.Errorf("%s offset %d: %w", r.path, r.offset, err)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r.reader, data); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%s offset %d: %w", r.path, r.offset, codec.ErrTruncated)
		}
		return nil, err
	}

	record, err := codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s offset %d: %w", r.path, r.offset, err)
	}
	r.offset += int64(n)
	return record, nil
}

// Offset returns the number of bytes read so far
func (r *SegmentReader) Offset() int64 {
	return r.offset
}

// Close closes the segment file
func (r *SegmentReader) Close() error {
	return r.file.Close()
}
