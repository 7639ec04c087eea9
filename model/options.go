package model

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/cwbudde/algo-nam/nn/activation"
	"github.com/cwbudde/algo-nam/nn/core"
)

const (
	// DefaultInputLevelDBu is the host input level assumed when computing
	// the recommended input adjustment.
	DefaultInputLevelDBu = 12.0
	// DefaultSampleRate is reported for models that do not declare one.
	DefaultSampleRate = 48000.0
	// TargetLoudnessDB is the output loudness the recommended output
	// adjustment aims for.
	TargetLoudnessDB = -18.0
)

// LoadMode controls how the registry takes part in loading.
type LoadMode int

const (
	// LoadPreferStatic tags models that match a registry entry as static
	// and loads everything else dynamically.
	LoadPreferStatic LoadMode = iota
	// LoadRequireStatic fails with ErrNoMatch when no entry matches.
	LoadRequireStatic
	// LoadDynamic skips the registry.
	LoadDynamic
)

func (m LoadMode) String() string {
	switch m {
	case LoadPreferStatic:
		return "prefer-static"
	case LoadRequireStatic:
		return "require-static"
	case LoadDynamic:
		return "dynamic"
	default:
		return fmt.Sprintf("LoadMode(%d)", int(m))
	}
}

// ParseLoadMode parses the names returned by LoadMode.String.
func ParseLoadMode(s string) (LoadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "prefer-static", "prefer":
		return LoadPreferStatic, nil
	case "require-static", "static":
		return LoadRequireStatic, nil
	case "dynamic":
		return LoadDynamic, nil
	default:
		return 0, fmt.Errorf("model: unknown load mode %q", s)
	}
}

// Option mutates loader construction parameters.
type Option func(*config) error

type config struct {
	maxBlockSize  int
	historyWindow int
	activation    activation.Kind
	mode          LoadMode
	inputLevelDBu float64
	logger        *slog.Logger
	registry      *Registry
}

func defaultConfig() config {
	return config{
		maxBlockSize:  core.DefaultMaxFrames,
		historyWindow: core.DefaultHistoryWindow,
		activation:    activation.KindFast,
		mode:          LoadPreferStatic,
		inputLevelDBu: DefaultInputLevelDBu,
	}
}

func applyOptions(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}

	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	if cfg.registry == nil {
		cfg.registry = DefaultRegistry()
	}

	return cfg, nil
}

func (c config) processorOptions() []core.ProcessorOption {
	return []core.ProcessorOption{
		core.WithMaxFrames(c.maxBlockSize),
		core.WithHistoryWindow(c.historyWindow),
		core.WithActivation(c.activation),
	}
}

// WithMaxBlockSize sets the largest block processed in one internal pass.
// Longer host buffers are split.
func WithMaxBlockSize(n int) Option {
	return func(cfg *config) error {
		if n < 1 || n > core.MaxMaxFrames {
			return fmt.Errorf("model: max block size must be in [1, %d]: %d", core.MaxMaxFrames, n)
		}
		cfg.maxBlockSize = n
		return nil
	}
}

// WithHistoryWindow sets the per-layer WaveNet history window.
func WithHistoryWindow(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return fmt.Errorf("model: history window must be positive: %d", n)
		}
		cfg.historyWindow = n
		return nil
	}
}

// WithActivation selects the activation implementation.
func WithActivation(kind activation.Kind) Option {
	return func(cfg *config) error {
		if !kind.Valid() {
			return fmt.Errorf("model: invalid activation kind %d", kind)
		}
		cfg.activation = kind
		return nil
	}
}

// WithLoadMode selects how the registry is consulted.
func WithLoadMode(mode LoadMode) Option {
	return func(cfg *config) error {
		if mode < LoadPreferStatic || mode > LoadDynamic {
			return fmt.Errorf("model: invalid load mode %d", mode)
		}
		cfg.mode = mode
		return nil
	}
}

// WithInputLevelDBu sets the host's full-scale input level in dBu.
func WithInputLevelDBu(dbu float64) Option {
	return func(cfg *config) error {
		if math.IsNaN(dbu) || math.IsInf(dbu, 0) {
			return fmt.Errorf("model: input level must be finite: %f", dbu)
		}
		cfg.inputLevelDBu = dbu
		return nil
	}
}

// WithLogger sets the logger used while loading. Processing never logs.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) error {
		cfg.logger = logger
		return nil
	}
}

// WithRegistry replaces the default architecture registry.
func WithRegistry(r *Registry) Option {
	return func(cfg *config) error {
		if r == nil {
			return fmt.Errorf("model: nil registry")
		}
		cfg.registry = r
		return nil
	}
}
