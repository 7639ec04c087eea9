package wavenet

import (
	"fmt"

	"github.com/cwbudde/algo-nam/internal/mat"
	"github.com/cwbudde/algo-nam/nn/core"
	"github.com/cwbudde/algo-nam/nn/dense"
	"github.com/cwbudde/algo-nam/nn/weights"
	"gonum.org/v1/gonum/blas/blas32"
)

// LayerArray is a rechannel projection, a chain of layers with one dilation
// each and a head projection of the accumulated layer activations.
type LayerArray struct {
	cfg           LayerArrayConfig
	rechannel     *dense.Layer
	layers        []*Layer
	headRechannel *dense.Layer
	outputs       blas32.General
	headOutputs   blas32.General
}

// newLayerArray builds the array; stagger is the allocation index of its
// first layer and the returned int is the index after its last layer.
func newLayerArray(cfg LayerArrayConfig, pc core.ProcessorConfig, stagger int) (*LayerArray, int, error) {
	rechannel, err := dense.New(cfg.InputSize, cfg.Channels, false)
	if err != nil {
		return nil, stagger, err
	}

	headRechannel, err := dense.New(cfg.Channels, cfg.HeadSize, cfg.HeadBias)
	if err != nil {
		return nil, stagger, err
	}

	a := &LayerArray{
		cfg:           cfg,
		rechannel:     rechannel,
		headRechannel: headRechannel,
		outputs:       mat.New(cfg.Channels, pc.MaxFrames),
		headOutputs:   mat.New(cfg.HeadSize, pc.MaxFrames),
	}

	for _, d := range cfg.Dilations {
		l, err := newLayer(cfg, d, pc, stagger)
		if err != nil {
			return nil, stagger, fmt.Errorf("dilation %d: %w", d, err)
		}

		a.layers = append(a.layers, l)
		stagger++
	}

	return a, stagger, nil
}

// Config returns the array topology.
func (a *LayerArray) Config() LayerArrayConfig { return a.cfg }

// Layers returns the layers in dilation order.
func (a *LayerArray) Layers() []*Layer { return a.layers }

func (a *LayerArray) setWeights(r *weights.Reader) error {
	if err := a.rechannel.SetWeights(r); err != nil {
		return fmt.Errorf("rechannel: %w", err)
	}

	for i, l := range a.layers {
		if err := l.setWeights(r); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}

	if err := a.headRechannel.SetWeights(r); err != nil {
		return fmt.Errorf("head rechannel: %w", err)
	}

	return nil
}

func (a *LayerArray) appendWeights(dst []float32) []float32 {
	dst = a.rechannel.AppendWeights(dst)
	for _, l := range a.layers {
		dst = l.appendWeights(dst)
	}
	return a.headRechannel.AppendWeights(dst)
}

// Process runs n frames. in is InputSize x n, condition is
// ConditionSize x n and headInput (Channels x n) accumulates every layer's
// activations before the head projection.
func (a *LayerArray) Process(in, condition, headInput blas32.General, n int) {
	a.rechannel.Process(in, a.layers[0].hist.Input(n))

	last := len(a.layers) - 1
	for i, l := range a.layers {
		var out blas32.General
		if i == last {
			out = mat.Cols(a.outputs, 0, n)
		} else {
			out = a.layers[i+1].hist.Input(n)
		}

		l.Process(condition, headInput, out, n)
	}

	a.headRechannel.Process(headInput, mat.Cols(a.headOutputs, 0, n))
}

// Outputs returns the first n columns of the last layer's output.
func (a *LayerArray) Outputs(n int) blas32.General {
	return mat.Cols(a.outputs, 0, n)
}

// HeadOutputs returns the first n columns of the head projection.
func (a *LayerArray) HeadOutputs(n int) blas32.General {
	return mat.Cols(a.headOutputs, 0, n)
}

func (a *LayerArray) reset() {
	for _, l := range a.layers {
		l.reset()
	}

	mat.Zero(a.outputs)
	mat.Zero(a.headOutputs)
}
