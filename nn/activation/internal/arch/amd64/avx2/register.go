//go:build amd64 && !purego

package avx2

import (
	"github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"
	"github.com/cwbudde/algo-nam/nn/activation/internal/rational"
	"github.com/cwbudde/algo-vecmath/cpu"
)

func init() {
	registry.Global.Register(registry.OpEntry{
		Name:      "avx2",
		SIMDLevel: cpu.SIMDAVX2,
		Priority:  20,
		Tanh:      tanhBlock,
		Sigmoid:   sigmoidBlock,
	})
}

// tanhBlock is a 4x-unrolled scalar kernel selected for AVX2-capable CPUs.
// TODO: replace with explicit AVX2 asm kernel.
func tanhBlock(x []float32) {
	i := 0
	n := len(x)
	for ; i+3 < n; i += 4 {
		y0 := rational.Tanh(x[i])
		y1 := rational.Tanh(x[i+1])
		y2 := rational.Tanh(x[i+2])
		y3 := rational.Tanh(x[i+3])
		x[i] = y0
		x[i+1] = y1
		x[i+2] = y2
		x[i+3] = y3
	}

	for ; i < n; i++ {
		x[i] = rational.Tanh(x[i])
	}
}

func sigmoidBlock(x []float32) {
	i := 0
	n := len(x)
	for ; i+3 < n; i += 4 {
		y0 := rational.Sigmoid(x[i])
		y1 := rational.Sigmoid(x[i+1])
		y2 := rational.Sigmoid(x[i+2])
		y3 := rational.Sigmoid(x[i+3])
		x[i] = y0
		x[i+1] = y1
		x[i+2] = y2
		x[i+3] = y3
	}

	for ; i < n; i++ {
		x[i] = rational.Sigmoid(x[i])
	}
}
