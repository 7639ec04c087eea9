package weights

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/x448/float16"
)

// Encoding names the element type of a raw weight blob.
type Encoding int

const (
	Float32LE Encoding = iota
	Float16LE
)

var (
	// ErrBadEncoding is returned for unknown encodings or misaligned blobs.
	ErrBadEncoding = errors.New("weights: bad raw encoding")
	// ErrInvalidValue is returned by Flatten for nulls and non-numbers.
	ErrInvalidValue = errors.New("weights: invalid value in nested array")
)

func (e Encoding) String() string {
	switch e {
	case Float32LE:
		return "f32"
	case Float16LE:
		return "f16"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ParseEncoding maps "f32" or "f16" to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f32", "float32":
		return Float32LE, nil
	case "f16", "float16":
		return Float16LE, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrBadEncoding, s)
	}
}

// Size returns the number of bytes per element.
func (e Encoding) Size() int {
	switch e {
	case Float32LE:
		return 4
	case Float16LE:
		return 2
	default:
		return 0
	}
}

// DecodeRaw converts a little-endian byte blob into float32 values.
func DecodeRaw(b []byte, enc Encoding) ([]float32, error) {
	size := enc.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: encoding %d", ErrBadEncoding, enc)
	}

	if len(b)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrBadEncoding, len(b), size)
	}

	out := make([]float32, len(b)/size)
	for i := range out {
		chunk := b[i*size:]
		switch enc {
		case Float32LE:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(chunk))
		case Float16LE:
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(chunk)).Float32()
		}
	}

	return out, nil
}

// EncodeRaw converts values into a little-endian byte blob.
func EncodeRaw(v []float32, enc Encoding) ([]byte, error) {
	size := enc.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: encoding %d", ErrBadEncoding, enc)
	}

	out := make([]byte, len(v)*size)
	for i, x := range v {
		chunk := out[i*size:]
		switch enc {
		case Float32LE:
			binary.LittleEndian.PutUint32(chunk, math.Float32bits(x))
		case Float16LE:
			binary.LittleEndian.PutUint16(chunk, float16.Fromfloat32(x).Bits())
		}
	}

	return out, nil
}

// Flatten walks nested JSON arrays (as decoded into any) depth-first and
// returns the numbers in order.
func Flatten(v any) ([]float32, error) {
	var out []float32
	if err := flatten(v, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func flatten(v any, out *[]float32) error {
	switch x := v.(type) {
	case []any:
		for _, e := range x {
			if err := flatten(e, out); err != nil {
				return err
			}
		}
	case []float32:
		*out = append(*out, x...)
	case []float64:
		for _, f := range x {
			*out = append(*out, float32(f))
		}
	case float64:
		*out = append(*out, float32(x))
	case float32:
		*out = append(*out, x)
	case int64:
		*out = append(*out, float32(x))
	case int:
		*out = append(*out, float32(x))
	case nil:
		return fmt.Errorf("%w: null after %d values", ErrInvalidValue, len(*out))
	default:
		return fmt.Errorf("%w: unexpected %T", ErrInvalidValue, v)
	}

	return nil
}
