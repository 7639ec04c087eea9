package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cwbudde/algo-nam/nn/lstm"
	"github.com/cwbudde/algo-nam/nn/wavenet"
)

// ErrDuplicate is returned when registering a name or topology twice.
var ErrDuplicate = errors.New("model: duplicate architecture")

// Family names a network type.
type Family int

const (
	FamilyLSTM Family = iota
	FamilyWaveNet
)

func (f Family) String() string {
	switch f {
	case FamilyLSTM:
		return "LSTM"
	case FamilyWaveNet:
		return "WaveNet"
	default:
		return fmt.Sprintf("Family(%d)", int(f))
	}
}

// Architecture is a known-good topology. Only the field matching Family is
// used.
type Architecture struct {
	Name    string
	Family  Family
	LSTM    lstm.Config
	WaveNet wavenet.Config
}

// NumWeights returns the blob length of the NAM encoding of the topology.
func (a Architecture) NumWeights() int {
	if a.Family == FamilyWaveNet {
		return a.WaveNet.NumWeights()
	}
	cfg := a.LSTM
	cfg.InitialState = true
	return cfg.NumWeights()
}

// Registry holds architectures that loaded models are matched against.
// A Registry is not safe for concurrent Register calls; lookups on a fully
// built registry may run concurrently.
type Registry struct {
	entries []Architecture
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a. Names and topologies must be unique within a family.
func (r *Registry) Register(a Architecture) error {
	switch a.Family {
	case FamilyLSTM:
		if err := a.LSTM.Validate(); err != nil {
			return fmt.Errorf("model: register %q: %w", a.Name, err)
		}
	case FamilyWaveNet:
		if err := a.WaveNet.Validate(); err != nil {
			return fmt.Errorf("model: register %q: %w", a.Name, err)
		}
	default:
		return fmt.Errorf("model: register %q: %w: %v", a.Name, ErrUnsupported, a.Family)
	}

	for _, e := range r.entries {
		if e.Name == a.Name {
			return fmt.Errorf("%w: name %q", ErrDuplicate, a.Name)
		}
		if e.Family == a.Family && sameTopology(e, a) {
			return fmt.Errorf("%w: %q has the topology of %q", ErrDuplicate, a.Name, e.Name)
		}
	}

	r.entries = append(r.entries, a)

	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(a Architecture) {
	if err := r.Register(a); err != nil {
		panic(err)
	}
}

// Lookup finds the entry registered under name.
func (r *Registry) Lookup(name string) (Architecture, bool) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Architecture{}, false
}

// LookupLSTM finds the LSTM entry with the given layer count and width.
func (r *Registry) LookupLSTM(numLayers, hiddenSize int) (Architecture, bool) {
	for _, e := range r.entries {
		if e.Family == FamilyLSTM && e.LSTM.NumLayers == numLayers && e.LSTM.HiddenSize == hiddenSize {
			return e, true
		}
	}
	return Architecture{}, false
}

// LookupWaveNet finds the WaveNet entry equal to cfg.
func (r *Registry) LookupWaveNet(cfg wavenet.Config) (Architecture, bool) {
	for _, e := range r.entries {
		if e.Family == FamilyWaveNet && e.WaveNet.Equal(cfg) {
			return e, true
		}
	}
	return Architecture{}, false
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	return names
}

// Architectures returns a copy of the entries.
func (r *Registry) Architectures() []Architecture {
	return slices.Clone(r.entries)
}

func sameTopology(a, b Architecture) bool {
	if a.Family == FamilyWaveNet {
		return a.WaveNet.Equal(b.WaveNet)
	}
	return a.LSTM.NumLayers == b.LSTM.NumLayers && a.LSTM.HiddenSize == b.LSTM.HiddenSize
}

var (
	standardDilations = []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512}
	liteDilations1    = []int{1, 2, 4, 8, 16, 32, 64}
	liteDilations2    = []int{128, 256, 512, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512}
)

// WaveNetTwoArray returns the two-array layout shared by the NAM training
// presets: a gateless tanh array of the given width feeding a narrower
// array whose single-row head carries a bias.
func WaveNetTwoArray(channels, headSize int, dilations1, dilations2 []int) wavenet.Config {
	return wavenet.Config{Arrays: []wavenet.LayerArrayConfig{
		{
			InputSize:     1,
			ConditionSize: 1,
			HeadSize:      headSize,
			Channels:      channels,
			KernelSize:    3,
			Dilations:     slices.Clone(dilations1),
		},
		{
			InputSize:     channels,
			ConditionSize: 1,
			HeadSize:      1,
			Channels:      headSize,
			KernelSize:    3,
			Dilations:     slices.Clone(dilations2),
			HeadBias:      true,
		},
	}}
}

// DefaultRegistry returns a new registry holding the LSTM sizes and
// WaveNet presets commonly produced by the NAM trainer.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	for _, s := range []struct{ layers, hidden int }{
		{1, 8}, {1, 12}, {1, 16}, {1, 24}, {2, 8}, {2, 12}, {2, 16},
	} {
		r.MustRegister(Architecture{
			Name:   fmt.Sprintf("lstm-%dx%d", s.layers, s.hidden),
			Family: FamilyLSTM,
			LSTM:   lstm.Config{NumLayers: s.layers, HiddenSize: s.hidden},
		})
	}

	r.MustRegister(Architecture{
		Name:    "wavenet-standard",
		Family:  FamilyWaveNet,
		WaveNet: WaveNetTwoArray(16, 8, standardDilations, standardDilations),
	})

	for _, p := range []struct {
		name           string
		channels, head int
	}{
		{"wavenet-lite", 12, 6},
		{"wavenet-feather", 8, 4},
		{"wavenet-nano", 4, 2},
	} {
		r.MustRegister(Architecture{
			Name:    p.name,
			Family:  FamilyWaveNet,
			WaveNet: WaveNetTwoArray(p.channels, p.head, liteDilations1, liteDilations2),
		})
	}

	return r
}
