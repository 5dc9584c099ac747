// Package block provides the fixed-capacity buffers a DR stream is written
// into.
//
// A StreamBlock covers a contiguous range of the partition's universal
// stream offset (USO): byte i of the block sits at stream offset
// StartUSO()+i. Writers reserve space, fill it, then mark it consumed;
// every cursor move returns the resulting stream offset so callers can
// capture marks and truncate back to them later.
package block

import (
	"errors"
	"fmt"
)

var (
	ErrSealed      = errors.New("stream block is sealed")
	ErrCapacity    = errors.New("stream block capacity exceeded")
	ErrOutOfRange  = errors.New("stream offset outside block")
	ErrBadCapacity = errors.New("invalid stream block capacity")
)

// StreamBlock is a fixed-capacity byte region with a write cursor. It is
// owned by a single writer until sealed; a sealed block is immutable.
type StreamBlock struct {
	data     []byte
	offset   int
	startUSO int64
	sealed   bool

	lastBeginTxnOffset int
}

// New allocates an empty block of the given capacity starting at stream
// offset startUSO. A zero capacity block carries no data and is only
// useful as an end-of-stream marker.
func New(startUSO int64, capacity int) (*StreamBlock, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadCapacity, capacity)
	}
	return &StreamBlock{
		data:     make([]byte, capacity),
		startUSO: startUSO,
	}, nil
}

// Capacity returns the size of the block in bytes
func (b *StreamBlock) Capacity() int { return len(b.data) }

// Offset returns the number of bytes written
func (b *StreamBlock) Offset() int { return b.offset }

// Remaining returns the unused capacity
func (b *StreamBlock) Remaining() int { return len(b.data) - b.offset }

// StartUSO returns the stream offset of the first byte
func (b *StreamBlock) StartUSO() int64 { return b.startUSO }

// USO returns the stream offset just past the last written byte
func (b *StreamBlock) USO() int64 { return b.startUSO + int64(b.offset) }

// Sealed reports whether the block has been sealed
func (b *StreamBlock) Sealed() bool { return b.sealed }

// Bytes returns the written portion of the block. Callers must not modify
// it.
func (b *StreamBlock) Bytes() []byte { return b.data[:b.offset] }

// Reserve returns the next n writable bytes without moving the cursor.
// The bytes become part of the block once Consumed is called.
func (b *StreamBlock) Reserve(n int) ([]byte, error) {
	if b.sealed {
		return nil, ErrSealed
	}
	if n < 0 || n > b.Remaining() {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrCapacity, n, b.Remaining())
	}
	return b.data[b.offset : b.offset+n], nil
}

// Consumed advances the cursor by n bytes and returns the new stream
// offset.
func (b *StreamBlock) Consumed(n int) (int64, error) {
	if b.sealed {
		return 0, ErrSealed
	}
	if n < 0 || n > b.Remaining() {
		return 0, fmt.Errorf("%w: consume %d, have %d", ErrCapacity, n, b.Remaining())
	}
	b.offset += n
	return b.USO(), nil
}

// Append copies p into the block and returns the new stream offset
func (b *StreamBlock) Append(p []byte) (int64, error) {
	dst, err := b.Reserve(len(p))
	if err != nil {
		return 0, err
	}
	copy(dst, p)
	return b.Consumed(len(p))
}

// TruncateTo moves the cursor back to stream offset mark, discarding every
// byte written after it. mark must lie inside the written range.
func (b *StreamBlock) TruncateTo(mark int64) (int64, error) {
	if b.sealed {
		return 0, ErrSealed
	}
	if mark < b.startUSO || mark > b.USO() {
		return 0, fmt.Errorf("%w: mark %d, block covers [%d, %d]", ErrOutOfRange, mark, b.startUSO, b.USO())
	}
	b.offset = int(mark - b.startUSO)
	if b.lastBeginTxnOffset > b.offset {
		b.lastBeginTxnOffset = b.offset
	}
	return b.USO(), nil
}

// RecordLastBeginTxnOffset remembers the current offset as the start of
// the open transaction.
func (b *StreamBlock) RecordLastBeginTxnOffset() {
	b.lastBeginTxnOffset = b.offset
}

// LastBeginTxnOffset returns the offset recorded by
// RecordLastBeginTxnOffset.
func (b *StreamBlock) LastBeginTxnOffset() int { return b.lastBeginTxnOffset }

// Seal marks the block immutable
func (b *StreamBlock) Seal() {
	b.sealed = true
}
