package generic

import (
	"github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"
	"github.com/cwbudde/algo-nam/nn/activation/internal/rational"
	"github.com/cwbudde/algo-vecmath/cpu"
)

func init() {
	registry.Global.Register(registry.OpEntry{
		Name:      "generic",
		SIMDLevel: cpu.SIMDNone,
		Priority:  0,
		Tanh:      tanhBlock,
		Sigmoid:   sigmoidBlock,
	})
}

func tanhBlock(x []float32) {
	for i, v := range x {
		x[i] = rational.Tanh(v)
	}
}

func sigmoidBlock(x []float32) {
	for i, v := range x {
		x[i] = rational.Sigmoid(v)
	}
}
