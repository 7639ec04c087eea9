// Package weights reads the flat float32 weight blobs consumed by the
// network layers.
//
// Layers pull their parameters from a Reader in a fixed traversal order.
// A blob that runs out early fails with ErrShortBlob; a blob with values
// left over after the last layer fails with ErrLengthMismatch. Neither case
// is ever truncated silently.
package weights

import (
	"errors"
	"fmt"
)

var (
	// ErrShortBlob is returned when a layer requests more values than remain.
	ErrShortBlob = errors.New("weights: blob exhausted")
	// ErrLengthMismatch is returned when values remain after loading.
	ErrLengthMismatch = errors.New("weights: blob length mismatch")
)

// Reader consumes a weight blob sequentially.
type Reader struct {
	data []float32
	pos  int
}

// NewReader returns a Reader over data. The slice is not copied.
func NewReader(data []float32) *Reader {
	return &Reader{data: data}
}

// Next returns the next value.
func (r *Reader) Next() (float32, error) {
	if r.pos >= len(r.data) {
		return 0, fmt.Errorf("%w: need 1 value at offset %d of %d", ErrShortBlob, r.pos, len(r.data))
	}

	v := r.data[r.pos]
	r.pos++

	return v, nil
}

// Read fills dst with the next len(dst) values.
func (r *Reader) Read(dst []float32) error {
	if r.Remaining() < len(dst) {
		return fmt.Errorf("%w: need %d values at offset %d of %d", ErrShortBlob, len(dst), r.pos, len(r.data))
	}

	r.pos += copy(dst, r.data[r.pos:])

	return nil
}

// Remaining returns the number of unread values.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// Consumed returns the number of values read so far.
func (r *Reader) Consumed() int {
	return r.pos
}

// Done returns ErrLengthMismatch if any values are left unread.
func (r *Reader) Done() error {
	if n := r.Remaining(); n != 0 {
		return fmt.Errorf("%w: consumed %d of %d values", ErrLengthMismatch, r.pos, len(r.data))
	}

	return nil
}
