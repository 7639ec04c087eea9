package wavenet

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidConfig is returned when a topology cannot be chained.
var ErrInvalidConfig = errors.New("wavenet: invalid config")

// LayerArrayConfig describes one stack of dilated layers.
type LayerArrayConfig struct {
	InputSize     int
	ConditionSize int
	HeadSize      int
	Channels      int
	KernelSize    int
	Dilations     []int
	Gated         bool
	HeadBias      bool
}

// Config describes a whole model as an ordered list of layer arrays.
type Config struct {
	Arrays []LayerArrayConfig
}

// Equal reports whether two array configs describe the same topology.
func (c LayerArrayConfig) Equal(o LayerArrayConfig) bool {
	return c.InputSize == o.InputSize &&
		c.ConditionSize == o.ConditionSize &&
		c.HeadSize == o.HeadSize &&
		c.Channels == o.Channels &&
		c.KernelSize == o.KernelSize &&
		c.Gated == o.Gated &&
		c.HeadBias == o.HeadBias &&
		slices.Equal(c.Dilations, o.Dilations)
}

// Equal reports whether two configs describe the same topology.
func (c Config) Equal(o Config) bool {
	return slices.EqualFunc(c.Arrays, o.Arrays, LayerArrayConfig.Equal)
}

// ReceptiveField returns the number of past frames the model output
// depends on.
func (c Config) ReceptiveField() int {
	rf := 0
	for _, a := range c.Arrays {
		for _, d := range a.Dilations {
			rf += (a.KernelSize - 1) * d
		}
	}
	return rf
}

// NumLayers returns the total number of dilated layers.
func (c Config) NumLayers() int {
	n := 0
	for _, a := range c.Arrays {
		n += len(a.Dilations)
	}
	return n
}

// NumWeights returns the length of the weight blob the topology consumes,
// including the trailing head scale.
func (c Config) NumWeights() int {
	n := 1
	for _, a := range c.Arrays {
		n += a.numWeights()
	}
	return n
}

func (c LayerArrayConfig) convChannels() int {
	if c.Gated {
		return 2 * c.Channels
	}
	return c.Channels
}

func (c LayerArrayConfig) numWeights() int {
	n := c.InputSize * c.Channels
	conv := c.convChannels()
	perLayer := conv*c.Channels*c.KernelSize + conv + // conv + bias
		conv*c.ConditionSize + // mixin
		c.Channels*c.Channels + c.Channels // 1x1 + bias
	n += perLayer * len(c.Dilations)
	n += c.HeadSize * c.Channels
	if c.HeadBias {
		n += c.HeadSize
	}
	return n
}

// Validate checks every array and the hand-off between consecutive arrays.
func (c Config) Validate() error {
	if len(c.Arrays) == 0 {
		return fmt.Errorf("%w: no layer arrays", ErrInvalidConfig)
	}

	for i, a := range c.Arrays {
		if err := a.validate(); err != nil {
			return fmt.Errorf("layer array %d: %w", i, err)
		}

		if a.ConditionSize != 1 {
			return fmt.Errorf("%w: layer array %d: condition size %d, the condition is the mono input",
				ErrInvalidConfig, i, a.ConditionSize)
		}

		if i == 0 {
			if a.InputSize != 1 {
				return fmt.Errorf("%w: layer array 0: input size %d, want 1", ErrInvalidConfig, a.InputSize)
			}
			continue
		}

		prev := c.Arrays[i-1]
		if a.InputSize != prev.Channels {
			return fmt.Errorf("%w: layer array %d: input size %d does not match %d channels of array %d",
				ErrInvalidConfig, i, a.InputSize, prev.Channels, i-1)
		}

		if a.Channels != prev.HeadSize {
			return fmt.Errorf("%w: layer array %d: %d channels do not match head size %d of array %d",
				ErrInvalidConfig, i, a.Channels, prev.HeadSize, i-1)
		}
	}

	if last := c.Arrays[len(c.Arrays)-1]; last.HeadSize != 1 {
		return fmt.Errorf("%w: final head size %d, want 1", ErrInvalidConfig, last.HeadSize)
	}

	return nil
}

func (c LayerArrayConfig) validate() error {
	switch {
	case c.InputSize < 1, c.ConditionSize < 1, c.HeadSize < 1, c.Channels < 1:
		return fmt.Errorf("%w: sizes must be positive: %+v", ErrInvalidConfig, c)
	case c.KernelSize < 1:
		return fmt.Errorf("%w: kernel size %d", ErrInvalidConfig, c.KernelSize)
	case len(c.Dilations) == 0:
		return fmt.Errorf("%w: no dilations", ErrInvalidConfig)
	}

	for _, d := range c.Dilations {
		if d < 1 {
			return fmt.Errorf("%w: dilation %d", ErrInvalidConfig, d)
		}
	}

	return nil
}
