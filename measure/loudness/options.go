package loudness

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-nam/signal"
)

// Option configures a Meter.
type Option func(*Meter) error

// WithSampleRate sets the processing sample rate.
func WithSampleRate(sampleRate float64) Option {
	return func(m *Meter) error {
		if sampleRate < 8000 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
			return fmt.Errorf("loudness: sample rate must be >= 8000 and finite: %f", sampleRate)
		}
		m.sampleRate = sampleRate
		return nil
	}
}

// WithoutWeighting disables the K-weighting filter, so levels are plain
// mean-square power in dB.
func WithoutWeighting() Option {
	return func(m *Meter) error {
		m.unweighted = true
		return nil
	}
}

func applyOptions(opts []Option) (*Meter, error) {
	m := &Meter{sampleRate: signal.DefaultSampleRate}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}
