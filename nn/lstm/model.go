// Package lstm implements the stacked LSTM network with a dense output head.
//
// The first layer reads the mono input sample, every later layer reads the
// hidden state of the layer before it, and the head projects the last
// hidden state to one output sample. Processing is strictly per sample, so
// the output never depends on how the input is split into blocks.
package lstm

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-nam/nn/core"
	"github.com/cwbudde/algo-nam/nn/dense"
	"github.com/cwbudde/algo-nam/nn/weights"
)

// ErrInvalidConfig is returned for unusable topologies.
var ErrInvalidConfig = errors.New("lstm: invalid config")

// Config describes a stacked LSTM.
type Config struct {
	NumLayers  int
	HiddenSize int
	// InitialState marks blobs that carry initial hidden and cell vectors
	// after each layer's bias.
	InitialState bool
	// InputSkip adds the input sample to the head output.
	InputSkip bool
}

// Validate checks the sizes.
func (c Config) Validate() error {
	if c.NumLayers < 1 || c.HiddenSize < 1 {
		return fmt.Errorf("%w: %d layers of %d units", ErrInvalidConfig, c.NumLayers, c.HiddenSize)
	}
	return nil
}

// NumWeights returns the blob length SetWeights consumes.
func (c Config) NumWeights() int {
	H := c.HiddenSize
	n := 0
	in := 1
	for range c.NumLayers {
		n += 4*H*(in+H) + 4*H
		if c.InitialState {
			n += 2 * H
		}
		in = H
	}
	return n + H + 1
}

// Model is a stack of Layers plus a dense head.
type Model struct {
	cfg    Config
	pc     core.ProcessorConfig
	layers []*Layer
	head   *dense.Layer
	x      [1]float32
	y      [1]float32
	zeros  []float32
	sink   []float32
}

// New returns a zero-weight model.
func New(cfg Config, opts ...core.ProcessorOption) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pc, err := core.ApplyProcessorOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("lstm: %w", err)
	}

	head, err := dense.New(cfg.HiddenSize, 1, true)
	if err != nil {
		return nil, err
	}

	m := &Model{
		cfg:   cfg,
		pc:    pc,
		head:  head,
		zeros: make([]float32, pc.MaxFrames),
		sink:  make([]float32, pc.MaxFrames),
	}

	in := 1
	for i := range cfg.NumLayers {
		l, err := NewLayer(in, cfg.HiddenSize, pc.Activation)
		if err != nil {
			return nil, fmt.Errorf("lstm: layer %d: %w", i, err)
		}

		m.layers = append(m.layers, l)
		in = cfg.HiddenSize
	}

	return m, nil
}

// Config returns the model topology.
func (m *Model) Config() Config { return m.cfg }

// Layers returns the layers in processing order.
func (m *Model) Layers() []*Layer { return m.layers }

// MaxFrames returns the prewarm block size.
func (m *Model) MaxFrames() int { return m.pc.MaxFrames }

// ReceptiveField is zero: the recurrent state carries all history.
func (m *Model) ReceptiveField() int { return 0 }

// NumWeights returns the expected blob length.
func (m *Model) NumWeights() int { return m.cfg.NumWeights() }

// SetWeights loads the fused blob: per layer kernel, bias and optional
// initial state, then H head weights and the head bias. The blob must be
// consumed exactly.
func (m *Model) SetWeights(blob []float32) error {
	r := weights.NewReader(blob)

	for i, l := range m.layers {
		if err := l.SetWeights(r, m.cfg.InitialState); err != nil {
			return fmt.Errorf("lstm: layer %d: %w", i, err)
		}
	}

	if err := m.head.SetWeights(r); err != nil {
		return fmt.Errorf("lstm: head: %w", err)
	}

	if err := r.Done(); err != nil {
		return fmt.Errorf("lstm: %w", err)
	}

	return nil
}

// Weights returns the loaded parameters in the fused layout SetWeights
// accepts.
func (m *Model) Weights() []float32 {
	dst := make([]float32, 0, m.NumWeights())
	for _, l := range m.layers {
		dst = l.AppendWeights(dst, m.cfg.InitialState)
	}
	return m.head.AppendWeights(dst)
}

// SetHead loads the head weights and bias directly.
func (m *Model) SetHead(w []float32, bias float32) error {
	if len(w) != m.cfg.HiddenSize {
		return fmt.Errorf("%w: head has %d weights, want %d", ErrInvalidShape, len(w), m.cfg.HiddenSize)
	}

	blob := make([]float32, 0, len(w)+1)
	blob = append(blob, w...)
	blob = append(blob, bias)

	return m.head.SetWeights(weights.NewReader(blob))
}

// ProcessSample runs one sample through the stack.
func (m *Model) ProcessSample(x float32) float32 {
	m.x[0] = x
	m.layers[0].Process(m.x[:])
	for i := 1; i < len(m.layers); i++ {
		m.layers[i].Process(m.layers[i-1].h)
	}

	m.head.ProcessVector(m.layers[len(m.layers)-1].h, m.y[:])

	if m.cfg.InputSkip {
		return m.y[0] + x
	}

	return m.y[0]
}

// Process runs len(in) samples into out. Zero-alloc.
func (m *Model) Process(in, out []float32) {
	for i, x := range in {
		out[i] = m.ProcessSample(x)
	}
}

// Reset restores every layer's initial state.
func (m *Model) Reset() {
	for _, l := range m.layers {
		l.Reset()
	}
}

// Prewarm resets the model and feeds DefaultPrewarmSamples of silence.
func (m *Model) Prewarm() {
	m.Reset()

	for range core.PrewarmBlocks(0, m.pc.MaxFrames) {
		m.Process(m.zeros, m.sink)
	}
}

// PrewarmSamples resets the model and feeds numSamples of silence.
func (m *Model) PrewarmSamples(numSamples, blockSize int) {
	m.Reset()

	if blockSize < 1 || blockSize > m.pc.MaxFrames {
		blockSize = m.pc.MaxFrames
	}

	for numSamples > 0 {
		n := min(numSamples, blockSize)
		m.Process(m.zeros[:n], m.sink[:n])
		numSamples -= n
	}
}
