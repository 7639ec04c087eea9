package model

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-nam/nn/lstm"
	"github.com/cwbudde/algo-nam/nn/wavenet"
	"github.com/goccy/go-json"
)

type namFile struct {
	Version      string          `json:"version"`
	Architecture string          `json:"architecture"`
	Config       json.RawMessage `json:"config"`
	Weights      []float32       `json:"weights"`
	SampleRate   *float64        `json:"sample_rate"`
	Metadata     *namMetadata    `json:"metadata"`
}

type namMetadata struct {
	Name          string   `json:"name"`
	Loudness      *float64 `json:"loudness"`
	InputLevelDBu *float64 `json:"input_level_dbu"`
}

type namLSTMConfig struct {
	NumLayers  int `json:"num_layers"`
	InputSize  int `json:"input_size"`
	HiddenSize int `json:"hidden_size"`
}

type namWaveNetConfig struct {
	Layers    []namLayerArray `json:"layers"`
	Head      json.RawMessage `json:"head"`
	HeadScale float64         `json:"head_scale"`
}

type namLayerArray struct {
	InputSize     int    `json:"input_size"`
	ConditionSize int    `json:"condition_size"`
	HeadSize      int    `json:"head_size"`
	Channels      int    `json:"channels"`
	KernelSize    int    `json:"kernel_size"`
	Dilations     []int  `json:"dilations"`
	Activation    string `json:"activation"`
	Gated         bool   `json:"gated"`
	HeadBias      bool   `json:"head_bias"`
}

func (f *namFile) metadata() Metadata {
	var meta Metadata
	if f.SampleRate != nil {
		meta.SampleRate = *f.SampleRate
	}
	if f.Metadata != nil {
		meta.Name = f.Metadata.Name
		meta.Loudness = f.Metadata.Loudness
		meta.InputLevelDBu = f.Metadata.InputLevelDBu
	}
	return meta
}

func (l *Loader) loadNAM(data []byte) (*Model, error) {
	var f namFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	if len(f.Config) == 0 {
		return nil, fmt.Errorf("%w: missing config", ErrInvalidModel)
	}

	l.cfg.logger.Debug("NAM file", "version", f.Version, "architecture", f.Architecture, "weights", len(f.Weights))

	switch f.Architecture {
	case "LSTM":
		return l.loadNAMLSTM(&f)
	case "WaveNet":
		return l.loadNAMWaveNet(&f)
	default:
		return nil, fmt.Errorf("%w: architecture %q", ErrUnsupported, f.Architecture)
	}
}

func (l *Loader) loadNAMLSTM(f *namFile) (*Model, error) {
	var nc namLSTMConfig
	if err := json.Unmarshal(f.Config, &nc); err != nil {
		return nil, fmt.Errorf("%w: LSTM config: %w", ErrInvalidModel, err)
	}

	if nc.InputSize != 1 {
		return nil, fmt.Errorf("%w: LSTM input size %d", ErrUnsupported, nc.InputSize)
	}

	cfg := lstm.Config{NumLayers: nc.NumLayers, HiddenSize: nc.HiddenSize, InitialState: true}

	name, static, err := l.resolve(FamilyLSTM, lstmTopology(cfg), func() (Architecture, bool) {
		return l.cfg.registry.LookupLSTM(cfg.NumLayers, cfg.HiddenSize)
	})
	if err != nil {
		return nil, err
	}

	net, err := lstm.New(cfg, l.cfg.processorOptions()...)
	if err != nil {
		return nil, err
	}

	if err := net.SetWeights(f.Weights); err != nil {
		return nil, err
	}

	return newModel(net, FamilyLSTM, name, static, f.metadata(), l.cfg), nil
}

func (l *Loader) loadNAMWaveNet(f *namFile) (*Model, error) {
	var nc namWaveNetConfig
	if err := json.Unmarshal(f.Config, &nc); err != nil {
		return nil, fmt.Errorf("%w: WaveNet config: %w", ErrInvalidModel, err)
	}

	if len(nc.Head) > 0 && string(nc.Head) != "null" {
		return nil, fmt.Errorf("%w: WaveNet post-head", ErrUnsupported)
	}

	cfg := wavenet.Config{Arrays: make([]wavenet.LayerArrayConfig, 0, len(nc.Layers))}
	for i, a := range nc.Layers {
		if !strings.EqualFold(a.Activation, "Tanh") {
			return nil, fmt.Errorf("%w: layer array %d activation %q", ErrUnsupported, i, a.Activation)
		}

		cfg.Arrays = append(cfg.Arrays, wavenet.LayerArrayConfig{
			InputSize:     a.InputSize,
			ConditionSize: a.ConditionSize,
			HeadSize:      a.HeadSize,
			Channels:      a.Channels,
			KernelSize:    a.KernelSize,
			Dilations:     a.Dilations,
			Gated:         a.Gated,
			HeadBias:      a.HeadBias,
		})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name, static, err := l.resolve(FamilyWaveNet, waveNetTopology(cfg), func() (Architecture, bool) {
		return l.cfg.registry.LookupWaveNet(cfg)
	})
	if err != nil {
		return nil, err
	}

	net, err := wavenet.New(cfg, l.cfg.processorOptions()...)
	if err != nil {
		return nil, err
	}

	if err := net.SetWeights(f.Weights); err != nil {
		return nil, err
	}

	if nc.HeadScale != 0 && float32(nc.HeadScale) != net.HeadScale() {
		l.cfg.logger.Debug("head scale in config differs from weights",
			"config", nc.HeadScale, "weights", net.HeadScale())
	}

	return newModel(net, FamilyWaveNet, name, static, f.metadata(), l.cfg), nil
}

func lstmTopology(cfg lstm.Config) string {
	return fmt.Sprintf("lstm-%dx%d", cfg.NumLayers, cfg.HiddenSize)
}

func waveNetTopology(cfg wavenet.Config) string {
	var b strings.Builder
	b.WriteString("wavenet")
	for _, a := range cfg.Arrays {
		fmt.Fprintf(&b, "-%dc%dh%dk%dl", a.Channels, a.HeadSize, a.KernelSize, len(a.Dilations))
		if a.Gated {
			b.WriteString("g")
		}
	}
	return b.String()
}
