// Package conv implements the causal dilated 1D convolution of the
// convolutional network stack.
package conv

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-nam/internal/mat"
	"github.com/cwbudde/algo-nam/nn/weights"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// ErrInvalidKernel is returned for non-positive sizes or dilations.
var ErrInvalidKernel = errors.New("conv: invalid kernel")

// Conv1D convolves a channel x time history with K taps spaced D frames
// apart. Tap k reads the frame at offset D*(k+1-K) from the output frame,
// so the last tap is the current frame.
type Conv1D struct {
	in, out  int
	kernel   int
	dilation int
	bias     bool
	w        []blas32.General // one out x in matrix per tap
	b        []float32
}

// New returns a zero-weight convolution.
func New(in, out, kernelSize, dilation int, bias bool) (*Conv1D, error) {
	if in < 1 || out < 1 || kernelSize < 1 || dilation < 1 {
		return nil, fmt.Errorf("%w: in=%d out=%d kernel=%d dilation=%d",
			ErrInvalidKernel, in, out, kernelSize, dilation)
	}

	c := &Conv1D{
		in:       in,
		out:      out,
		kernel:   kernelSize,
		dilation: dilation,
		bias:     bias,
		w:        make([]blas32.General, kernelSize),
	}

	for k := range c.w {
		c.w[k] = mat.New(out, in)
	}

	if bias {
		c.b = make([]float32, out)
	}

	return c, nil
}

// InSize returns the number of input channels.
func (c *Conv1D) InSize() int { return c.in }

// OutSize returns the number of output channels.
func (c *Conv1D) OutSize() int { return c.out }

// KernelSize returns the number of taps.
func (c *Conv1D) KernelSize() int { return c.kernel }

// Dilation returns the tap spacing in frames.
func (c *Conv1D) Dilation() int { return c.dilation }

// ReceptiveField returns the number of past frames a single output frame
// depends on: (K-1)*D.
func (c *Conv1D) ReceptiveField() int {
	return (c.kernel - 1) * c.dilation
}

// NumWeights returns the number of blob values SetWeights consumes.
func (c *Conv1D) NumWeights() int {
	n := c.kernel * c.in * c.out
	if c.bias {
		n += c.out
	}
	return n
}

// SetWeights reads the taps in (out, in, k) nested order with k innermost,
// followed by the bias.
func (c *Conv1D) SetWeights(r *weights.Reader) error {
	for i := 0; i < c.out; i++ {
		for j := 0; j < c.in; j++ {
			for k := 0; k < c.kernel; k++ {
				v, err := r.Next()
				if err != nil {
					return fmt.Errorf("conv weights: %w", err)
				}

				c.w[k].Data[i*c.in+j] = v
			}
		}
	}

	if c.bias {
		if err := r.Read(c.b); err != nil {
			return fmt.Errorf("conv bias: %w", err)
		}
	}

	return nil
}

// AppendWeights appends the taps and bias to dst in SetWeights order.
func (c *Conv1D) AppendWeights(dst []float32) []float32 {
	for i := 0; i < c.out; i++ {
		for j := 0; j < c.in; j++ {
			for k := 0; k < c.kernel; k++ {
				dst = append(dst, c.w[k].Data[i*c.in+j])
			}
		}
	}

	if c.bias {
		dst = append(dst, c.b...)
	}

	return dst
}

// Process writes n output frames into out (OutSize x n). The output frame
// j reads history columns start+j-ReceptiveField() through start+j; the
// caller guarantees those columns exist.
func (c *Conv1D) Process(history blas32.General, start, n int, out blas32.General) {
	if n == 0 {
		return
	}

	for k, w := range c.w {
		src := mat.Cols(history, start+c.dilation*(k+1-c.kernel), n)

		beta := float32(1)
		if k == 0 {
			beta = 0
		}

		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, w, src, beta, out)
	}

	if c.bias {
		mat.AddColumn(out, c.b)
	}
}
