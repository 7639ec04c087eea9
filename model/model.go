// Package model loads neural amp models from disk and wraps the network
// packages behind one processing interface.
//
// A Loader parses NAM (.nam), Keras/RTNeural JSON and CoreAudioML JSON
// files, checks the declared topology against a Registry of known
// architectures and builds the matching nn/wavenet or nn/lstm network.
// Whether a model matched the registry is reported by Model.IsStatic; both
// paths run the same numeric code.
//
// A Model is not safe for concurrent use. Process does not allocate, lock
// or log, so it can run on an audio thread. Replacing a model while audio
// is running is up to the caller, for example by building the new Model on
// another goroutine and swapping an atomic.Pointer between blocks.
package model

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-nam/nn/lstm"
	"github.com/cwbudde/algo-nam/nn/wavenet"
)

var (
	// ErrUnsupported is returned for architectures, activations or file
	// formats the engine cannot run.
	ErrUnsupported = errors.New("model: unsupported")
	// ErrNoMatch is returned under LoadRequireStatic when the declared
	// topology is not in the registry.
	ErrNoMatch = errors.New("model: no matching architecture")
	// ErrInvalidModel is returned for malformed model files.
	ErrInvalidModel = errors.New("model: invalid model file")
)

type network interface {
	Process(in, out []float32)
	Reset()
	Prewarm()
	PrewarmSamples(numSamples, blockSize int)
	ReceptiveField() int
	MaxFrames() int
	NumWeights() int
	Weights() []float32
}

var (
	_ network = (*wavenet.Model)(nil)
	_ network = (*lstm.Model)(nil)
)

// Metadata holds the optional values a model file declares about itself.
type Metadata struct {
	Name          string
	SampleRate    float64
	Loudness      *float64
	InputLevelDBu *float64
}

// Model is a loaded, ready-to-run network.
type Model struct {
	net          network
	family       Family
	architecture string
	static       bool
	meta         Metadata
	hostInputDBu float64
}

func newModel(net network, family Family, architecture string, static bool, meta Metadata, cfg config) *Model {
	if meta.SampleRate <= 0 {
		meta.SampleRate = DefaultSampleRate
	}

	return &Model{
		net:          net,
		family:       family,
		architecture: architecture,
		static:       static,
		meta:         meta,
		hostInputDBu: cfg.inputLevelDBu,
	}
}

// Process runs len(in) samples into out, splitting long buffers into
// blocks of at most MaxBlockSize. out must be at least as long as in.
func (m *Model) Process(in, out []float32) {
	if len(out) < len(in) {
		panic(fmt.Sprintf("model: output buffer of %d samples for %d input samples", len(out), len(in)))
	}
	m.net.Process(in, out[:len(in)])
}

// Prewarm resets the model and settles it on silence.
func (m *Model) Prewarm() { m.net.Prewarm() }

// PrewarmSamples resets the model and feeds numSamples of silence in
// blocks of blockSize.
func (m *Model) PrewarmSamples(numSamples, blockSize int) {
	m.net.PrewarmSamples(numSamples, blockSize)
}

// Reset clears all state without feeding samples.
func (m *Model) Reset() { m.net.Reset() }

// Family returns the network type.
func (m *Model) Family() Family { return m.family }

// Architecture returns the registry entry name for static models and a
// topology description otherwise.
func (m *Model) Architecture() string { return m.architecture }

// IsStatic reports whether the topology matched a registry entry.
func (m *Model) IsStatic() bool { return m.static }

// SampleRate returns the rate the model was trained at.
func (m *Model) SampleRate() float64 { return m.meta.SampleRate }

// MaxBlockSize returns the largest block processed in one pass.
func (m *Model) MaxBlockSize() int { return m.net.MaxFrames() }

// ReceptiveField returns the number of past samples a WaveNet output
// depends on. LSTMs report zero.
func (m *Model) ReceptiveField() int { return m.net.ReceptiveField() }

// NumWeights returns the number of parameters in NAM blob order.
func (m *Model) NumWeights() int { return m.net.NumWeights() }

// Weights returns a copy of the network parameters in the NAM blob order.
// For a static model whose length equals the registered architecture's
// NumWeights, the result can be fed back through Loader.LoadRaw.
func (m *Model) Weights() []float32 { return m.net.Weights() }

// Metadata returns the values declared by the model file.
func (m *Model) Metadata() Metadata { return m.meta }

// RecommendedInputDBAdjustment returns the gain in dB to apply before
// Process so that the host's input level matches the level the model was
// captured at. Zero when the model does not declare one.
func (m *Model) RecommendedInputDBAdjustment() float64 {
	if m.meta.InputLevelDBu == nil {
		return 0
	}
	return m.hostInputDBu - *m.meta.InputLevelDBu
}

// RecommendedOutputDBAdjustment returns the gain in dB that brings the
// model's declared loudness to TargetLoudnessDB. Zero when undeclared.
func (m *Model) RecommendedOutputDBAdjustment() float64 {
	if m.meta.Loudness == nil {
		return 0
	}
	return TargetLoudnessDB - *m.meta.Loudness
}
