package lstm

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-nam/internal/mat"
	"github.com/cwbudde/algo-nam/nn/activation"
	"github.com/cwbudde/algo-nam/nn/weights"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ErrInvalidShape is returned for bad layer sizes or weight matrix shapes.
var ErrInvalidShape = errors.New("lstm: invalid shape")

// Layout describes how split gate kernels are stored.
type Layout int

const (
	// LayoutKeras stores kernels as in x 4H (one row per input).
	LayoutKeras Layout = iota
	// LayoutTorch stores kernels as 4H x in (one row per gate unit).
	LayoutTorch
)

// Layer is one LSTM cell. Gates are packed input, forget, cell candidate,
// output at offsets 0, H, 2H and 3H.
type Layer struct {
	in, hidden int
	w          blas32.General // 4H x (in+H), input columns first
	b          []float32
	xh         []float32
	gates      []float32
	c, h       []float32
	c0, h0     []float32
	tanhC      []float32
	act        activation.Funcs
}

// NewLayer returns a zero-weight layer with zero initial state.
func NewLayer(in, hidden int, kind activation.Kind) (*Layer, error) {
	if in < 1 || hidden < 1 {
		return nil, fmt.Errorf("%w: in=%d hidden=%d", ErrInvalidShape, in, hidden)
	}

	return &Layer{
		in:     in,
		hidden: hidden,
		w:      mat.New(4*hidden, in+hidden),
		b:      make([]float32, 4*hidden),
		xh:     make([]float32, in+hidden),
		gates:  make([]float32, 4*hidden),
		c:      make([]float32, hidden),
		h:      make([]float32, hidden),
		c0:     make([]float32, hidden),
		h0:     make([]float32, hidden),
		tanhC:  make([]float32, hidden),
		act:    activation.For(kind),
	}, nil
}

// InSize returns the input width.
func (l *Layer) InSize() int { return l.in }

// HiddenSize returns H.
func (l *Layer) HiddenSize() int { return l.hidden }

// NumWeights returns the blob span of SetWeights with or without the
// initial state.
func (l *Layer) NumWeights(initialState bool) int {
	n := 4*l.hidden*(l.in+l.hidden) + 4*l.hidden
	if initialState {
		n += 2 * l.hidden
	}
	return n
}

// SetWeights reads the fused 4H x (in+H) kernel row-major, the gate bias
// and, when initialState is set, the initial hidden and cell vectors.
func (l *Layer) SetWeights(r *weights.Reader, initialState bool) error {
	if err := r.Read(l.w.Data); err != nil {
		return fmt.Errorf("kernel: %w", err)
	}

	if err := r.Read(l.b); err != nil {
		return fmt.Errorf("bias: %w", err)
	}

	clear(l.h0)
	clear(l.c0)

	if initialState {
		if err := r.Read(l.h0); err != nil {
			return fmt.Errorf("initial hidden: %w", err)
		}

		if err := r.Read(l.c0); err != nil {
			return fmt.Errorf("initial cell: %w", err)
		}
	}

	l.Reset()

	return nil
}

// AppendWeights appends the kernel, bias and, when initialState is set,
// the initial hidden and cell vectors to dst.
func (l *Layer) AppendWeights(dst []float32, initialState bool) []float32 {
	dst = append(dst, l.w.Data...)
	dst = append(dst, l.b...)
	if initialState {
		dst = append(dst, l.h0...)
		dst = append(dst, l.c0...)
	}
	return dst
}

// SetSplitWeights loads separate input and recurrent kernels and a gate
// bias. The initial state is zero.
func (l *Layer) SetSplitWeights(input, recurrent, bias []float32, layout Layout) error {
	g := 4 * l.hidden
	if len(input) != g*l.in || len(recurrent) != g*l.hidden || len(bias) != g {
		return fmt.Errorf("%w: input %d, recurrent %d, bias %d values for in=%d hidden=%d",
			ErrInvalidShape, len(input), len(recurrent), len(bias), l.in, l.hidden)
	}

	l.setBlock(input, 0, l.in, layout)
	l.setBlock(recurrent, l.in, l.hidden, layout)
	copy(l.b, bias)

	clear(l.h0)
	clear(l.c0)
	l.Reset()

	return nil
}

func (l *Layer) setBlock(src []float32, col0, cols int, layout Layout) {
	g := 4 * l.hidden
	for i := 0; i < g; i++ {
		row := mat.Row(l.w, i)
		for j := 0; j < cols; j++ {
			if layout == LayoutKeras {
				row[col0+j] = src[j*g+i]
			} else {
				row[col0+j] = src[i*cols+j]
			}
		}
	}
}

// Process advances the cell by one step with input x (len InSize).
func (l *Layer) Process(x []float32) {
	H := l.hidden

	copy(l.xh, x)
	copy(l.xh[l.in:], l.h)
	copy(l.gates, l.b)

	blas32.Gemv(blas.NoTrans, 1, l.w,
		blas32.Vector{N: l.in + H, Inc: 1, Data: l.xh},
		1,
		blas32.Vector{N: 4 * H, Inc: 1, Data: l.gates})

	ig := l.gates[:H]
	fg := l.gates[H : 2*H]
	gg := l.gates[2*H : 3*H]
	og := l.gates[3*H:]

	l.act.Sigmoid(l.gates[:2*H])
	l.act.Tanh(gg)
	l.act.Sigmoid(og)

	for j := range l.c {
		l.c[j] = fg[j]*l.c[j] + ig[j]*gg[j]
	}

	copy(l.tanhC, l.c)
	l.act.Tanh(l.tanhC)

	for j := range l.h {
		l.h[j] = og[j] * l.tanhC[j]
	}
}

// Hidden returns the current hidden state. The slice is owned by the layer.
func (l *Layer) Hidden() []float32 { return l.h }

// Cell returns the current cell state. The slice is owned by the layer.
func (l *Layer) Cell() []float32 { return l.c }

// Reset restores the initial hidden and cell state.
func (l *Layer) Reset() {
	copy(l.h, l.h0)
	copy(l.c, l.c0)
}
