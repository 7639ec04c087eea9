package wavenet

import (
	"fmt"

	"github.com/cwbudde/algo-nam/internal/mat"
	"github.com/cwbudde/algo-nam/nn/core"
	"github.com/cwbudde/algo-nam/nn/weights"
	"gonum.org/v1/gonum/blas/blas32"
)

// Model chains layer arrays and scales the final head output.
type Model struct {
	cfg       Config
	pc        core.ProcessorConfig
	arrays    []*LayerArray
	headScale float32
	headArray blas32.General
	input     blas32.General
	zeros     []float32
	sink      []float32
}

// New builds a zero-weight model for cfg.
func New(cfg Config, opts ...core.ProcessorOption) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pc, err := core.ApplyProcessorOptions(opts...)
	if err != nil {
		return nil, fmt.Errorf("wavenet: %w", err)
	}

	m := &Model{
		cfg:       cfg,
		pc:        pc,
		headArray: mat.New(cfg.Arrays[0].Channels, pc.MaxFrames),
		input:     mat.New(1, pc.MaxFrames),
		zeros:     make([]float32, pc.MaxFrames),
		sink:      make([]float32, pc.MaxFrames),
	}

	stagger := 0
	for i, ac := range cfg.Arrays {
		a, next, err := newLayerArray(ac, pc, stagger)
		if err != nil {
			return nil, fmt.Errorf("wavenet: layer array %d: %w", i, err)
		}

		m.arrays = append(m.arrays, a)
		stagger = next
	}

	return m, nil
}

// Config returns the model topology.
func (m *Model) Config() Config { return m.cfg }

// Arrays returns the layer arrays in processing order.
func (m *Model) Arrays() []*LayerArray { return m.arrays }

// MaxFrames returns the largest block processed in one pass.
func (m *Model) MaxFrames() int { return m.pc.MaxFrames }

// ReceptiveField returns the number of past samples an output depends on.
func (m *Model) ReceptiveField() int { return m.cfg.ReceptiveField() }

// NumWeights returns the expected weight blob length.
func (m *Model) NumWeights() int { return m.cfg.NumWeights() }

// HeadScale returns the output scale read from the end of the blob.
func (m *Model) HeadScale() float32 { return m.headScale }

// SetWeights loads the blob: per array the rechannel, per layer the
// convolution, its bias, the condition mixin and the 1x1 projection with its
// bias, then the head projection; after all arrays a single head scale.
// The blob must be consumed exactly.
func (m *Model) SetWeights(blob []float32) error {
	r := weights.NewReader(blob)

	for i, a := range m.arrays {
		if err := a.setWeights(r); err != nil {
			return fmt.Errorf("wavenet: layer array %d: %w", i, err)
		}
	}

	scale, err := r.Next()
	if err != nil {
		return fmt.Errorf("wavenet: head scale: %w", err)
	}

	if err := r.Done(); err != nil {
		return fmt.Errorf("wavenet: %w", err)
	}

	m.headScale = scale

	return nil
}

// Weights returns the loaded parameters as a blob SetWeights accepts.
func (m *Model) Weights() []float32 {
	dst := make([]float32, 0, m.NumWeights())
	for _, a := range m.arrays {
		dst = a.appendWeights(dst)
	}
	return append(dst, m.headScale)
}

// Process runs len(in) samples into out. Blocks longer than MaxFrames are
// processed in pieces. out must be at least as long as in. Zero-alloc.
func (m *Model) Process(in, out []float32) {
	for len(in) > 0 {
		n := min(len(in), m.pc.MaxFrames)
		m.processBlock(in[:n], out[:n])
		in = in[n:]
		out = out[n:]
	}
}

func (m *Model) processBlock(in, out []float32) {
	n := len(in)

	cond := mat.Cols(m.input, 0, n)
	copy(cond.Data, in)

	head := mat.Cols(m.headArray, 0, n)
	mat.Zero(head)

	m.arrays[0].Process(cond, cond, head, n)
	for i := 1; i < len(m.arrays); i++ {
		prev := m.arrays[i-1]
		m.arrays[i].Process(prev.Outputs(n), cond, prev.HeadOutputs(n), n)
	}

	final := mat.Row(m.arrays[len(m.arrays)-1].HeadOutputs(n), 0)
	for i, v := range final {
		out[i] = m.headScale * v
	}
}

// Reset clears every history buffer and restores the initial cursors.
func (m *Model) Reset() {
	for _, a := range m.arrays {
		a.reset()
	}

	mat.Zero(m.headArray)
	mat.Zero(m.input)
}

// Prewarm resets the model and feeds enough silence to cover the receptive
// field, so the first real output starts from the settled zero-input state.
func (m *Model) Prewarm() {
	m.Reset()

	blocks := core.PrewarmBlocks(m.ReceptiveField(), m.pc.MaxFrames)
	for range blocks {
		m.Process(m.zeros, m.sink)
	}
}

// PrewarmSamples resets the model and feeds numSamples of silence in blocks
// of blockSize.
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

// Rewinds returns the total number of history rewinds since the last Reset.
func (m *Model) Rewinds() int {
	total := 0
	for _, a := range m.arrays {
		for _, l := range a.layers {
			total += l.hist.Rewinds()
		}
	}
	return total
}
