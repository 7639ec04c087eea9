package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cwbudde/algo-nam/nn/lstm"
	"github.com/cwbudde/algo-nam/nn/wavenet"
	"github.com/cwbudde/algo-nam/nn/weights"
)

// Loader builds Models from model files. A Loader is immutable after
// NewLoader and may be shared between goroutines.
type Loader struct {
	cfg config
}

// NewLoader returns a loader configured by opts.
func NewLoader(opts ...Option) (*Loader, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Loader{cfg: cfg}, nil
}

// Registry returns the registry models are matched against.
func (l *Loader) Registry() *Registry { return l.cfg.registry }

// LoadFile is a convenience wrapper around NewLoader and Loader.LoadFile.
func LoadFile(path string, opts ...Option) (*Model, error) {
	l, err := NewLoader(opts...)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(path)
}

// LoadFile reads and loads the model at path.
func (l *Loader) LoadFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	return l.Load(data, filepath.Base(path))
}

// Load parses data. name is used for format detection by extension and in
// errors: ".nam" files are always NAM, anything else is recognized by its
// top-level keys.
func (l *Loader) Load(data []byte, name string) (*Model, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidModel, name, err)
	}

	var (
		m   *Model
		err error
	)

	_, hasArch := keys["architecture"]
	_, hasLayers := keys["layers"]
	_, hasModelData := keys["model_data"]

	switch {
	case strings.EqualFold(filepath.Ext(name), ".nam") || hasArch:
		m, err = l.loadNAM(data)
	case hasLayers:
		m, err = l.loadKeras(data)
	case hasModelData:
		m, err = l.loadCoreAudioML(data)
	default:
		err = fmt.Errorf("%w: unrecognized model format", ErrUnsupported)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	l.cfg.logger.Info("model loaded",
		"name", name,
		"family", m.Family(),
		"architecture", m.Architecture(),
		"static", m.IsStatic(),
		"weights", m.NumWeights(),
		"receptive_field", m.ReceptiveField(),
		"sample_rate", m.SampleRate())

	return m, nil
}

// LoadRaw builds the registered architecture named architecture from a raw
// little-endian weight blob in NAM order, as written by Model.Weights and
// weights.EncodeRaw. LSTM blobs carry the initial state. The load mode does
// not apply: the architecture is always static.
func (l *Loader) LoadRaw(architecture string, data []byte, enc weights.Encoding) (*Model, error) {
	a, ok := l.cfg.registry.Lookup(architecture)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, architecture)
	}

	blob, err := weights.DecodeRaw(data, enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidModel, architecture, err)
	}

	var net network
	switch a.Family {
	case FamilyLSTM:
		cfg := a.LSTM
		cfg.InitialState = true

		n, err := lstm.New(cfg, l.cfg.processorOptions()...)
		if err != nil {
			return nil, err
		}
		if err := n.SetWeights(blob); err != nil {
			return nil, fmt.Errorf("%s: %w", architecture, err)
		}
		net = n
	case FamilyWaveNet:
		n, err := wavenet.New(a.WaveNet, l.cfg.processorOptions()...)
		if err != nil {
			return nil, err
		}
		if err := n.SetWeights(blob); err != nil {
			return nil, fmt.Errorf("%s: %w", architecture, err)
		}
		net = n
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, a.Family)
	}

	l.cfg.logger.Info("raw weights loaded",
		"architecture", a.Name,
		"encoding", enc,
		"bytes", len(data),
		"weights", len(blob))

	return newModel(net, a.Family, a.Name, true, Metadata{}, l.cfg), nil
}

// resolve applies the load mode to a registry lookup. It returns the
// registry name on a match.
func (l *Loader) resolve(family Family, topology string, lookup func() (Architecture, bool)) (string, bool, error) {
	if l.cfg.mode == LoadDynamic {
		l.cfg.logger.Debug("registry skipped", "family", family, "topology", topology)
		return topology, false, nil
	}

	if a, ok := lookup(); ok {
		l.cfg.logger.Debug("architecture matched", "family", family, "name", a.Name)
		return a.Name, true, nil
	}

	if l.cfg.mode == LoadRequireStatic {
		return "", false, fmt.Errorf("%w: %s %s", ErrNoMatch, family, topology)
	}

	l.cfg.logger.Info("no registered architecture matched, using dynamic network",
		"family", family, "topology", topology)

	return topology, false, nil
}
