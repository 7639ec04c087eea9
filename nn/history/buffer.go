// Package history implements the channel x time ring buffer that feeds a
// dilated convolution.
//
// A Buffer holds lookback+window columns. New frames are written at the
// cursor; the lookback columns before the cursor are the receptive field.
// When the next block would overrun the end, Rewind copies the trailing
// lookback columns to the front and moves the cursor back, so the visible
// history is identical before and after a rewind.
package history

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-nam/internal/mat"
	"gonum.org/v1/gonum/blas/blas32"
)

// ErrInvalidSize is returned for inconsistent buffer dimensions.
var ErrInvalidSize = errors.New("history: invalid size")

// Buffer is a rewinding history of channels x frames.
type Buffer struct {
	m         blas32.General
	lookback  int
	maxFrames int
	start     int
	cursor    int
	rewinds   int
}

// New returns a zeroed buffer. stagger selects one of window/maxFrames
// initial cursor slots so that buffers created in sequence rewind on
// different blocks.
func New(channels, lookback, window, maxFrames, stagger int) (*Buffer, error) {
	if channels < 1 || lookback < 0 || maxFrames < 1 || window < maxFrames || stagger < 0 {
		return nil, fmt.Errorf("%w: channels=%d lookback=%d window=%d maxFrames=%d stagger=%d",
			ErrInvalidSize, channels, lookback, window, maxFrames, stagger)
	}

	size := lookback + window
	slots := window / maxFrames
	start := size - maxFrames*(stagger%slots+1)

	return &Buffer{
		m:         mat.New(channels, size),
		lookback:  lookback,
		maxFrames: maxFrames,
		start:     start,
		cursor:    start,
	}, nil
}

// Matrix returns the whole backing matrix.
func (b *Buffer) Matrix() blas32.General { return b.m }

// Cursor returns the column of the next frame to be written.
func (b *Buffer) Cursor() int { return b.cursor }

// Lookback returns the number of past frames kept before the cursor.
func (b *Buffer) Lookback() int { return b.lookback }

// Size returns the total number of columns.
func (b *Buffer) Size() int { return b.m.Cols }

// Rewinds returns how many times the buffer has been compacted.
func (b *Buffer) Rewinds() int { return b.rewinds }

// Input returns the n columns at the cursor, where the next block is written.
func (b *Buffer) Input(n int) blas32.General {
	return mat.Cols(b.m, b.cursor, n)
}

// Window returns the lookback columns before the cursor plus the n columns
// at the cursor.
func (b *Buffer) Window(n int) blas32.General {
	return mat.Cols(b.m, b.cursor-b.lookback, b.lookback+n)
}

// Advance moves the cursor past n written frames, rewinding when a full
// block of maxFrames would no longer fit. n must not exceed maxFrames.
func (b *Buffer) Advance(n int) {
	b.cursor += n
	if b.cursor+b.maxFrames > b.m.Cols {
		b.Rewind()
	}
}

// Rewind copies the lookback columns before the cursor to the front of the
// buffer and moves the cursor to lookback.
func (b *Buffer) Rewind() {
	from := b.cursor - b.lookback
	for r := 0; r < b.m.Rows; r++ {
		row := mat.Row(b.m, r)
		copy(row[:b.lookback], row[from:b.cursor])
	}

	b.cursor = b.lookback
	b.rewinds++
}

// Reset zeroes the history and restores the initial cursor.
func (b *Buffer) Reset() {
	clear(b.m.Data)
	b.cursor = b.start
	b.rewinds = 0
}
