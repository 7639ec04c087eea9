//go:build arm64 && !purego

package neon

import (
	"github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"
	"github.com/cwbudde/algo-nam/nn/activation/internal/rational"
	"github.com/cwbudde/algo-vecmath/cpu"
)

func init() {
	registry.Global.Register(registry.OpEntry{
		Name:      "neon",
		SIMDLevel: cpu.SIMDNEON,
		Priority:  15,
		Tanh:      tanhBlock,
		Sigmoid:   sigmoidBlock,
	})
}

// tanhBlock processes pairs of samples; NEON-capable cores dual-issue the
// two independent rational evaluations.
func tanhBlock(x []float32) {
	i := 0
	n := len(x)
	for ; i+1 < n; i += 2 {
		y0 := rational.Tanh(x[i])
		y1 := rational.Tanh(x[i+1])
		x[i] = y0
		x[i+1] = y1
	}

	if i < n {
		x[i] = rational.Tanh(x[i])
	}
}

func sigmoidBlock(x []float32) {
	i := 0
	n := len(x)
	for ; i+1 < n; i += 2 {
		y0 := rational.Sigmoid(x[i])
		y1 := rational.Sigmoid(x[i+1])
		x[i] = y0
		x[i+1] = y1
	}

	if i < n {
		x[i] = rational.Sigmoid(x[i])
	}
}
