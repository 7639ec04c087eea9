package model

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-nam/nn/lstm"
	"github.com/cwbudde/algo-nam/nn/weights"
	"github.com/goccy/go-json"
)

// coreAudioMLFile is the PyTorch state dict export of a CoreAudioML
// SimpleRNN: rec.* tensors for the recurrent stack and lin.* for the head.
type coreAudioMLFile struct {
	ModelData struct {
		Model      string `json:"model"`
		UnitType   string `json:"unit_type"`
		NumLayers  int    `json:"num_layers"`
		HiddenSize int    `json:"hidden_size"`
		InputSize  *int   `json:"input_size"`
		Skip       int    `json:"skip"`
	} `json:"model_data"`
	StateDict map[string]any `json:"state_dict"`
}

func (f *coreAudioMLFile) tensor(key string) ([]float32, error) {
	v, ok := f.StateDict[key]
	if !ok {
		return nil, fmt.Errorf("%w: state_dict has no %q", ErrInvalidModel, key)
	}

	out, err := weights.Flatten(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidModel, key, err)
	}

	return out, nil
}

func (l *Loader) loadCoreAudioML(data []byte) (*Model, error) {
	var f coreAudioMLFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	md := f.ModelData
	if !strings.EqualFold(md.Model, "SimpleRNN") || !strings.EqualFold(md.UnitType, "LSTM") {
		return nil, fmt.Errorf("%w: %s with %s units", ErrUnsupported, md.Model, md.UnitType)
	}

	if md.InputSize != nil && *md.InputSize != 1 {
		return nil, fmt.Errorf("%w: input size %d", ErrUnsupported, *md.InputSize)
	}

	cfg := lstm.Config{NumLayers: md.NumLayers, HiddenSize: md.HiddenSize, InputSkip: md.Skip == 1}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

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

	for i, layer := range net.Layers() {
		ih, err := f.tensor(fmt.Sprintf("rec.weight_ih_l%d", i))
		if err != nil {
			return nil, err
		}

		hh, err := f.tensor(fmt.Sprintf("rec.weight_hh_l%d", i))
		if err != nil {
			return nil, err
		}

		bih, err := f.tensor(fmt.Sprintf("rec.bias_ih_l%d", i))
		if err != nil {
			return nil, err
		}

		bhh, err := f.tensor(fmt.Sprintf("rec.bias_hh_l%d", i))
		if err != nil {
			return nil, err
		}

		if len(bih) != len(bhh) {
			return nil, fmt.Errorf("%w: layer %d bias lengths %d and %d", ErrInvalidModel, i, len(bih), len(bhh))
		}

		// PyTorch keeps separate input and recurrent biases; only their sum
		// enters the gates.
		for j := range bih {
			bih[j] += bhh[j]
		}

		if err := layer.SetSplitWeights(ih, hh, bih, lstm.LayoutTorch); err != nil {
			return nil, fmt.Errorf("LSTM layer %d: %w", i, err)
		}
	}

	hw, err := f.tensor("lin.weight")
	if err != nil {
		return nil, err
	}

	hb, err := f.tensor("lin.bias")
	if err != nil {
		return nil, err
	}

	if len(hb) != 1 {
		return nil, fmt.Errorf("%w: linear head has %d outputs, want 1", ErrUnsupported, len(hb))
	}

	if err := net.SetHead(hw, hb[0]); err != nil {
		return nil, err
	}

	return newModel(net, FamilyLSTM, name, static, Metadata{}, l.cfg), nil
}
