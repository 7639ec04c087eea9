// Package dense implements the fully connected layer used for channel
// mixing, conditioning and output heads.
package dense

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-nam/internal/mat"
	"github.com/cwbudde/algo-nam/nn/weights"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ErrInvalidShape is returned for non-positive layer dimensions.
var ErrInvalidShape = errors.New("dense: invalid shape")

// Layer computes out = W*in (+ b) for column blocks of frames.
type Layer struct {
	in, out int
	bias    bool
	w       blas32.General
	b       []float32
}

// New returns a zero-weight layer mapping in channels to out channels.
func New(in, out int, bias bool) (*Layer, error) {
	if in < 1 || out < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidShape, out, in)
	}

	l := &Layer{in: in, out: out, bias: bias, w: mat.New(out, in)}
	if bias {
		l.b = make([]float32, out)
	}

	return l, nil
}

// InSize returns the number of input channels.
func (l *Layer) InSize() int { return l.in }

// OutSize returns the number of output channels.
func (l *Layer) OutSize() int { return l.out }

// HasBias reports whether the layer adds a bias.
func (l *Layer) HasBias() bool { return l.bias }

// NumWeights returns the number of blob values SetWeights consumes.
func (l *Layer) NumWeights() int {
	n := l.in * l.out
	if l.bias {
		n += l.out
	}
	return n
}

// SetWeights reads W in (out, in) row-major order followed by the bias.
func (l *Layer) SetWeights(r *weights.Reader) error {
	if err := r.Read(l.w.Data); err != nil {
		return fmt.Errorf("dense %dx%d weights: %w", l.out, l.in, err)
	}

	if l.bias {
		if err := r.Read(l.b); err != nil {
			return fmt.Errorf("dense %dx%d bias: %w", l.out, l.in, err)
		}
	}

	return nil
}

// AppendWeights appends the parameters to dst in SetWeights order.
func (l *Layer) AppendWeights(dst []float32) []float32 {
	dst = append(dst, l.w.Data...)
	if l.bias {
		dst = append(dst, l.b...)
	}
	return dst
}

// Weights returns the weight matrix. The matrix is shared with the layer.
func (l *Layer) Weights() blas32.General { return l.w }

// Bias returns the bias vector, or nil when the layer has none.
func (l *Layer) Bias() []float32 { return l.b }

// Process overwrites out with W*in (+ b). in is InSize x n, out is
// OutSize x n.
func (l *Layer) Process(in, out blas32.General) {
	l.gemm(in, out, 0)
}

// ProcessAcc accumulates W*in (+ b) into out.
func (l *Layer) ProcessAcc(in, out blas32.General) {
	l.gemm(in, out, 1)
}

func (l *Layer) gemm(in, out blas32.General, beta float32) {
	if out.Cols == 0 {
		return
	}

	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, l.w, in, beta, out)

	if l.bias {
		mat.AddColumn(out, l.b)
	}
}

// ProcessVector computes y = W*x (+ b) for a single frame.
func (l *Layer) ProcessVector(x, y []float32) {
	copy(y, l.b)
	beta := float32(1)
	if !l.bias {
		beta = 0
	}

	blas32.Gemv(blas.NoTrans, 1, l.w,
		blas32.Vector{N: l.in, Inc: 1, Data: x},
		beta,
		blas32.Vector{N: l.out, Inc: 1, Data: y})
}
