// Package core holds the processing settings and small helpers shared by
// the network packages.
package core

import (
	"fmt"

	"github.com/cwbudde/algo-nam/nn/activation"
)

const (
	// DefaultMaxFrames is the largest block a network processes in one pass.
	DefaultMaxFrames = 64
	// MaxMaxFrames keeps internal matrix products small enough to run
	// serially on the calling goroutine.
	MaxMaxFrames = 128
	// DefaultHistoryWindow is the history length beyond the receptive field
	// kept by each convolution layer between rewinds.
	DefaultHistoryWindow = 4096
	// DefaultPrewarmSamples is the minimum number of silent samples fed by
	// Prewarm.
	DefaultPrewarmSamples = 4096
)

// ProcessorConfig defines the settings shared by all networks.
type ProcessorConfig struct {
	MaxFrames     int
	HistoryWindow int
	Activation    activation.Kind
}

// ProcessorOption mutates a ProcessorConfig.
type ProcessorOption func(*ProcessorConfig) error

// DefaultProcessorConfig returns the real-time defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		MaxFrames:     DefaultMaxFrames,
		HistoryWindow: DefaultHistoryWindow,
		Activation:    activation.KindFast,
	}
}

// WithMaxFrames sets the internal block size in [1, MaxMaxFrames].
func WithMaxFrames(n int) ProcessorOption {
	return func(cfg *ProcessorConfig) error {
		if n < 1 || n > MaxMaxFrames {
			return fmt.Errorf("max frames must be in [1, %d]: %d", MaxMaxFrames, n)
		}

		cfg.MaxFrames = n

		return nil
	}
}

// WithHistoryWindow sets the per-layer history window. Smaller windows
// rewind more often; the output is unaffected.
func WithHistoryWindow(n int) ProcessorOption {
	return func(cfg *ProcessorConfig) error {
		if n < 1 {
			return fmt.Errorf("history window must be positive: %d", n)
		}

		cfg.HistoryWindow = n

		return nil
	}
}

// WithActivation selects the activation implementation.
func WithActivation(kind activation.Kind) ProcessorOption {
	return func(cfg *ProcessorConfig) error {
		if !kind.Valid() {
			return fmt.Errorf("activation kind is invalid: %d", kind)
		}

		cfg.Activation = kind

		return nil
	}
}

// ApplyProcessorOptions applies opts to the default config. The history
// window is raised to MaxFrames when smaller.
func ApplyProcessorOptions(opts ...ProcessorOption) (ProcessorConfig, error) {
	cfg := DefaultProcessorConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return ProcessorConfig{}, err
		}
	}

	if cfg.HistoryWindow < cfg.MaxFrames {
		cfg.HistoryWindow = cfg.MaxFrames
	}

	return cfg, nil
}
