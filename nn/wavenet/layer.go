package wavenet

import (
	"fmt"

	"github.com/cwbudde/algo-nam/internal/mat"
	"github.com/cwbudde/algo-nam/nn/activation"
	"github.com/cwbudde/algo-nam/nn/conv"
	"github.com/cwbudde/algo-nam/nn/core"
	"github.com/cwbudde/algo-nam/nn/dense"
	"github.com/cwbudde/algo-nam/nn/history"
	"github.com/cwbudde/algo-nam/nn/weights"
	"gonum.org/v1/gonum/blas/blas32"
)

// Layer is one gated or ungated dilated convolution with conditioning,
// a residual connection and a contribution to the head accumulator.
type Layer struct {
	channels int
	gated    bool
	conv     *conv.Conv1D
	mixin    *dense.Layer
	oneByOne *dense.Layer
	hist     *history.Buffer
	state    blas32.General
	act      activation.Funcs
}

func newLayer(cfg LayerArrayConfig, dilation int, pc core.ProcessorConfig, stagger int) (*Layer, error) {
	convOut := cfg.convChannels()

	c, err := conv.New(cfg.Channels, convOut, cfg.KernelSize, dilation, true)
	if err != nil {
		return nil, err
	}

	mixin, err := dense.New(cfg.ConditionSize, convOut, false)
	if err != nil {
		return nil, err
	}

	oneByOne, err := dense.New(cfg.Channels, cfg.Channels, true)
	if err != nil {
		return nil, err
	}

	hist, err := history.New(cfg.Channels, c.ReceptiveField(), pc.HistoryWindow, pc.MaxFrames, stagger)
	if err != nil {
		return nil, err
	}

	return &Layer{
		channels: cfg.Channels,
		gated:    cfg.Gated,
		conv:     c,
		mixin:    mixin,
		oneByOne: oneByOne,
		hist:     hist,
		state:    mat.New(convOut, pc.MaxFrames),
		act:      activation.For(pc.Activation),
	}, nil
}

// ReceptiveField returns (K-1)*D for this layer.
func (l *Layer) ReceptiveField() int { return l.conv.ReceptiveField() }

// History exposes the layer's input history.
func (l *Layer) History() *history.Buffer { return l.hist }

func (l *Layer) setWeights(r *weights.Reader) error {
	if err := l.conv.SetWeights(r); err != nil {
		return err
	}

	if err := l.mixin.SetWeights(r); err != nil {
		return fmt.Errorf("mixin: %w", err)
	}

	if err := l.oneByOne.SetWeights(r); err != nil {
		return fmt.Errorf("1x1: %w", err)
	}

	return nil
}

func (l *Layer) appendWeights(dst []float32) []float32 {
	dst = l.conv.AppendWeights(dst)
	dst = l.mixin.AppendWeights(dst)
	return l.oneByOne.AppendWeights(dst)
}

// Process runs n frames whose input has already been written at the
// history cursor. The activated state is added to headInput and the layer
// output, 1x1(state) plus the layer input, is written to out.
func (l *Layer) Process(condition, headInput, out blas32.General, n int) {
	st := mat.Cols(l.state, 0, n)

	l.conv.Process(l.hist.Matrix(), l.hist.Cursor(), n, st)
	l.mixin.ProcessAcc(condition, st)

	top := mat.Rows(st, 0, l.channels)
	if l.gated {
		bottom := mat.Rows(st, l.channels, l.channels)
		mat.Apply(top, l.act.Tanh)
		mat.Apply(bottom, l.act.Sigmoid)
		mat.Mul(top, bottom)
	} else {
		mat.Apply(top, l.act.Tanh)
	}

	mat.Add(headInput, top)

	l.oneByOne.Process(top, out)
	mat.Add(out, l.hist.Input(n))

	l.hist.Advance(n)
}

func (l *Layer) reset() {
	l.hist.Reset()
	mat.Zero(l.state)
}
