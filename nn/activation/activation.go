package activation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chewxy/math32"
	"github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"
	"github.com/cwbudde/algo-nam/nn/activation/internal/rational"
	"github.com/cwbudde/algo-vecmath/cpu"
	"github.com/meko-christian/algo-approx"
)

// Kind selects an activation implementation.
type Kind int

const (
	KindFast Kind = iota
	KindExact
	KindApprox
)

// expLimit bounds the exponent argument of the approximate sigmoid.
const expLimit = 40

// String returns the lower-case name of k.
func (k Kind) String() string {
	switch k {
	case KindFast:
		return "fast"
	case KindExact:
		return "exact"
	case KindApprox:
		return "approx"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k names a known implementation.
func (k Kind) Valid() bool {
	return k >= KindFast && k <= KindApprox
}

// ParseKind parses "fast", "exact" or "approx" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "":
		return KindFast, nil
	case "exact":
		return KindExact, nil
	case "approx":
		return KindApprox, nil
	default:
		return 0, fmt.Errorf("activation: unknown kind %q", s)
	}
}

// BlockFn applies an activation to x in place.
type BlockFn func(x []float32)

// Funcs bundles the block kernels of one Kind.
type Funcs struct {
	Kind    Kind
	Tanh    BlockFn
	Sigmoid BlockFn
}

var (
	fastEntry    *registry.OpEntry
	fastInitOnce sync.Once
)

// For returns the kernels for kind. Unknown kinds resolve to KindFast.
func For(kind Kind) Funcs {
	switch kind {
	case KindExact:
		return Funcs{Kind: KindExact, Tanh: exactTanhBlock, Sigmoid: exactSigmoidBlock}
	case KindApprox:
		return Funcs{Kind: KindApprox, Tanh: approxTanhBlock, Sigmoid: approxSigmoidBlock}
	default:
		fastInitOnce.Do(initFastKernels)
		return Funcs{Kind: KindFast, Tanh: BlockFn(fastEntry.Tanh), Sigmoid: BlockFn(fastEntry.Sigmoid)}
	}
}

// Backend reports the name of the fast kernel set selected for this CPU.
func Backend() string {
	fastInitOnce.Do(initFastKernels)
	return fastEntry.Name
}

func initFastKernels() {
	entry := registry.Global.Lookup(cpu.DetectFeatures())
	if entry == nil {
		panic("activation: no kernel registered (missing generic fallback?)")
	}

	if entry.Tanh == nil || entry.Sigmoid == nil {
		panic("activation: selected kernel set is incomplete")
	}

	fastEntry = entry
}

// Tanh returns the exact hyperbolic tangent of x.
func Tanh(x float32) float32 {
	return math32.Tanh(x)
}

// Sigmoid returns the exact logistic function of x.
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// FastTanh returns the rational approximation of tanh(x).
func FastTanh(x float32) float32 {
	return rational.Tanh(x)
}

// FastSigmoid returns 0.5*(FastTanh(x/2)+1).
func FastSigmoid(x float32) float32 {
	return rational.Sigmoid(x)
}

// ApproxSigmoid returns the logistic function of x evaluated with the
// algo-approx exponential.
func ApproxSigmoid(x float32) float32 {
	v := float64(-x)
	if v > expLimit {
		v = expLimit
	} else if v < -expLimit {
		v = -expLimit
	}

	return float32(1 / (1 + approx.FastExp(v)))
}

// ApproxTanh returns 2*ApproxSigmoid(2x)-1.
func ApproxTanh(x float32) float32 {
	return 2*ApproxSigmoid(2*x) - 1
}

func exactTanhBlock(x []float32) {
	for i, v := range x {
		x[i] = math32.Tanh(v)
	}
}

func exactSigmoidBlock(x []float32) {
	for i, v := range x {
		x[i] = Sigmoid(v)
	}
}

func approxTanhBlock(x []float32) {
	for i, v := range x {
		x[i] = ApproxTanh(v)
	}
}

func approxSigmoidBlock(x []float32) {
	for i, v := range x {
		x[i] = ApproxSigmoid(v)
	}
}
