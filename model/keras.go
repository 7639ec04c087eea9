package model

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-nam/nn/lstm"
	"github.com/cwbudde/algo-nam/nn/weights"
	"github.com/goccy/go-json"
)

// kerasFile is the RTNeural export of a Keras model: one or more LSTM
// layers followed by a dense output layer.
type kerasFile struct {
	Layers []kerasLayer `json:"layers"`
	InSkip int          `json:"in_skip"`
}

type kerasLayer struct {
	Type    string `json:"type"`
	Shape   []*int `json:"shape"`
	Weights []any  `json:"weights"`
}

func (k kerasLayer) units() (int, error) {
	if len(k.Shape) == 0 || k.Shape[len(k.Shape)-1] == nil {
		return 0, fmt.Errorf("%w: %s layer without output shape", ErrInvalidModel, k.Type)
	}
	return *k.Shape[len(k.Shape)-1], nil
}

func (l *Loader) loadKeras(data []byte) (*Model, error) {
	var f kerasFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	if len(f.Layers) < 2 {
		return nil, fmt.Errorf("%w: need at least one LSTM and one dense layer, got %d layers",
			ErrInvalidModel, len(f.Layers))
	}

	recurrent := f.Layers[:len(f.Layers)-1]
	head := f.Layers[len(f.Layers)-1]

	if !strings.EqualFold(head.Type, "dense") {
		return nil, fmt.Errorf("%w: last layer is %q, want dense", ErrUnsupported, head.Type)
	}

	hidden := 0
	for i, layer := range recurrent {
		if !strings.EqualFold(layer.Type, "lstm") {
			return nil, fmt.Errorf("%w: layer %d is %q, want lstm", ErrUnsupported, i, layer.Type)
		}

		h, err := layer.units()
		if err != nil {
			return nil, err
		}

		if i > 0 && h != hidden {
			return nil, fmt.Errorf("%w: mixed LSTM widths %d and %d", ErrUnsupported, hidden, h)
		}
		hidden = h
	}

	cfg := lstm.Config{NumLayers: len(recurrent), HiddenSize: hidden, InputSkip: f.InSkip == 1}

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

	for i, layer := range recurrent {
		if len(layer.Weights) != 3 {
			return nil, fmt.Errorf("%w: LSTM layer %d has %d weight tensors, want 3",
				ErrInvalidModel, i, len(layer.Weights))
		}

		kernel, rec, bias, err := flattenTensors(layer.Weights[0], layer.Weights[1], layer.Weights[2])
		if err != nil {
			return nil, fmt.Errorf("LSTM layer %d: %w", i, err)
		}

		if err := net.Layers()[i].SetSplitWeights(kernel, rec, bias, lstm.LayoutKeras); err != nil {
			return nil, fmt.Errorf("LSTM layer %d: %w", i, err)
		}
	}

	if len(head.Weights) != 2 {
		return nil, fmt.Errorf("%w: dense layer has %d weight tensors, want 2", ErrInvalidModel, len(head.Weights))
	}

	hw, hb, err := flattenPair(head.Weights[0], head.Weights[1])
	if err != nil {
		return nil, fmt.Errorf("dense layer: %w", err)
	}

	if len(hb) != 1 {
		return nil, fmt.Errorf("%w: dense layer has %d outputs, want 1", ErrUnsupported, len(hb))
	}

	if err := net.SetHead(hw, hb[0]); err != nil {
		return nil, err
	}

	return newModel(net, FamilyLSTM, name, static, Metadata{}, l.cfg), nil
}

func flattenTensors(a, b, c any) ([]float32, []float32, []float32, error) {
	fa, fb, err := flattenPair(a, b)
	if err != nil {
		return nil, nil, nil, err
	}

	fc, err := weights.Flatten(c)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	return fa, fb, fc, nil
}

func flattenPair(a, b any) ([]float32, []float32, error) {
	fa, err := weights.Flatten(a)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	fb, err := weights.Flatten(b)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	return fa, fb, nil
}
