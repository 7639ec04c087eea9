package wavenet

import (
	"math"
	"math/rand"
)

// blob64 reads weights in the same order as Model.SetWeights.
type blob64 struct {
	data []float32
	pos  int
}

func (b *blob64) next() float64 {
	v := float64(b.data[b.pos])
	b.pos++
	return v
}

func (b *blob64) matrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = b.next()
		}
	}
	return m
}

func (b *blob64) vector(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = b.next()
	}
	return v
}

func zeros(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}

// matmul returns w * x (+ bias) for x of shape in x T.
func matmul(w [][]float64, x [][]float64, bias []float64) [][]float64 {
	T := len(x[0])
	out := zeros(len(w), T)
	for i := range w {
		for t := 0; t < T; t++ {
			s := 0.0
			for j := range w[i] {
				s += w[i][j] * x[j][t]
			}
			if bias != nil {
				s += bias[i]
			}
			out[i][t] = s
		}
	}
	return out
}

type layerWeights struct {
	conv     [][][]float64 // [k][out][in]
	convBias []float64
	mixin    [][]float64
	w11      [][]float64
	b11      []float64
}

type arrayWeights struct {
	rechannel [][]float64
	layers    []layerWeights
	head      [][]float64
	headBias  []float64
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// referenceOutput evaluates the whole model over the full input at once,
// without history buffers, in float64.
func referenceOutput(cfg Config, blob []float32, in []float32) []float64 {
	T := len(in)
	b := &blob64{data: blob}

	input := zeros(1, T)
	for t, v := range in {
		input[0][t] = float64(v)
	}

	all := make([]arrayWeights, len(cfg.Arrays))
	for ai, ac := range cfg.Arrays {
		aw := &all[ai]
		convOut := ac.convChannels()
		aw.rechannel = b.matrix(ac.Channels, ac.InputSize)
		aw.layers = make([]layerWeights, len(ac.Dilations))

		for li := range ac.Dilations {
			lw := &aw.layers[li]
			lw.conv = make([][][]float64, ac.KernelSize)
			for k := range lw.conv {
				lw.conv[k] = zeros(convOut, ac.Channels)
			}
			for i := 0; i < convOut; i++ {
				for j := 0; j < ac.Channels; j++ {
					for k := 0; k < ac.KernelSize; k++ {
						lw.conv[k][i][j] = b.next()
					}
				}
			}
			lw.convBias = b.vector(convOut)
			lw.mixin = b.matrix(convOut, ac.ConditionSize)
			lw.w11 = b.matrix(ac.Channels, ac.Channels)
			lw.b11 = b.vector(ac.Channels)
		}

		aw.head = b.matrix(ac.HeadSize, ac.Channels)
		if ac.HeadBias {
			aw.headBias = b.vector(ac.HeadSize)
		}
	}
	scale := b.next()

	var prevOut, prevHead [][]float64
	for ai, ac := range cfg.Arrays {
		aw := all[ai]

		x, headIn := input, zeros(ac.Channels, T)
		if ai > 0 {
			x, headIn = prevOut, prevHead
		}

		layerIn := matmul(aw.rechannel, x, nil)
		for li, d := range ac.Dilations {
			lw := aw.layers[li]
			convOut := ac.convChannels()

			z := zeros(convOut, T)
			for t := 0; t < T; t++ {
				for k := 0; k < ac.KernelSize; k++ {
					src := t + d*(k+1-ac.KernelSize)
					if src < 0 {
						continue
					}
					for i := 0; i < convOut; i++ {
						for j := 0; j < ac.Channels; j++ {
							z[i][t] += lw.conv[k][i][j] * layerIn[j][src]
						}
					}
				}
				for i := 0; i < convOut; i++ {
					z[i][t] += lw.convBias[i] + lw.mixin[i][0]*input[0][t]
				}
			}

			act := zeros(ac.Channels, T)
			for i := 0; i < ac.Channels; i++ {
				for t := 0; t < T; t++ {
					if ac.Gated {
						act[i][t] = math.Tanh(z[i][t]) * sigmoid(z[i+ac.Channels][t])
					} else {
						act[i][t] = math.Tanh(z[i][t])
					}
					headIn[i][t] += act[i][t]
				}
			}

			out := matmul(lw.w11, act, lw.b11)
			for i := range out {
				for t := range out[i] {
					out[i][t] += layerIn[i][t]
				}
			}
			layerIn = out
		}

		prevOut = layerIn
		prevHead = matmul(aw.head, headIn, aw.headBias)
	}

	out := make([]float64, T)
	for t := range out {
		out[t] = scale * prevHead[0][t]
	}
	return out
}

func randomBlob(seed int64, n int, amplitude float32) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = (rng.Float32()*2 - 1) * amplitude
	}
	return out
}
