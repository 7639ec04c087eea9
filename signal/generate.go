// Package signal generates deterministic mono test signals for feeding
// amp models: sines, logarithmic sweeps, white noise, impulses and silence.
package signal

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/chewxy/math32"
)

// DefaultSampleRate is used when no sample rate is configured.
const DefaultSampleRate = 48000.0

var (
	ErrInvalidLength    = errors.New("signal: length must be positive")
	ErrInvalidFrequency = errors.New("signal: frequency must be positive and below Nyquist")
)

// Generator creates deterministic signals from a shared configuration.
type Generator struct {
	sampleRate float64
	seed       int64
}

// Option configures a Generator.
type Option func(*Generator) error

// WithSampleRate sets the sample rate in Hz.
func WithSampleRate(sampleRate float64) Option {
	return func(g *Generator) error {
		if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
			return fmt.Errorf("signal: sample rate must be > 0 and finite: %f", sampleRate)
		}
		g.sampleRate = sampleRate
		return nil
	}
}

// WithSeed sets the noise seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) error {
		g.seed = seed
		return nil
	}
}

// NewGenerator creates a configured signal generator.
func NewGenerator(opts ...Option) (*Generator, error) {
	g := &Generator{sampleRate: DefaultSampleRate, seed: 1}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// SampleRate returns the configured sample rate.
func (g *Generator) SampleRate() float64 { return g.sampleRate }

// Seed returns the noise seed.
func (g *Generator) Seed() int64 { return g.seed }

// Samples converts a duration in seconds to a sample count.
func (g *Generator) Samples(seconds float64) int {
	return int(math.Round(seconds * g.sampleRate))
}

func (g *Generator) checkFrequency(freqHz float64) error {
	if freqHz <= 0 || freqHz >= g.sampleRate/2 {
		return fmt.Errorf("%w: %f Hz at %f Hz", ErrInvalidFrequency, freqHz, g.sampleRate)
	}
	return nil
}

// Sine generates a sine wave.
func (g *Generator) Sine(freqHz float64, amplitude float32, samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	if err := g.checkFrequency(freqHz); err != nil {
		return nil, err
	}

	out := make([]float32, samples)
	step := 2 * math.Pi * freqHz / g.sampleRate
	for i := range out {
		// Phase is wrapped in float64 before narrowing.
		out[i] = amplitude * math32.Sin(float32(math.Mod(step*float64(i), 2*math.Pi)))
	}
	return out, nil
}

// LogSweep generates an exponential sine sweep from startHz to endHz.
//
//	x(t) = sin(2π f1 T / ln(f2/f1) * (exp(t/T ln(f2/f1)) - 1))
func (g *Generator) LogSweep(startHz, endHz float64, amplitude float32, samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	if err := g.checkFrequency(startHz); err != nil {
		return nil, err
	}
	if err := g.checkFrequency(endHz); err != nil {
		return nil, err
	}
	if startHz >= endHz {
		return nil, fmt.Errorf("%w: start %f Hz >= end %f Hz", ErrInvalidFrequency, startHz, endHz)
	}

	out := make([]float32, samples)
	T := float64(samples) / g.sampleRate
	lnRatio := math.Log(endHz / startHz)

	for i := range out {
		t := float64(i) / g.sampleRate
		phase := 2 * math.Pi * startHz * T / lnRatio * (math.Exp(t/T*lnRatio) - 1)
		out[i] = amplitude * float32(math.Sin(phase))
	}
	return out, nil
}

// WhiteNoise generates deterministic white noise in [-amplitude, amplitude].
func (g *Generator) WhiteNoise(amplitude float32, samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	if amplitude < 0 {
		return nil, fmt.Errorf("signal: noise amplitude must be >= 0: %f", amplitude)
	}

	out := make([]float32, samples)
	rng := rand.New(rand.NewSource(g.seed))
	for i := range out {
		out[i] = (rng.Float32()*2 - 1) * amplitude
	}
	return out, nil
}

// Impulse returns samples zeros with a single amplitude at pos.
func (g *Generator) Impulse(amplitude float32, pos, samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	if pos < 0 || pos >= samples {
		return nil, fmt.Errorf("signal: impulse position %d outside [0, %d)", pos, samples)
	}

	out := make([]float32, samples)
	out[pos] = amplitude
	return out, nil
}

// Silence returns samples zeros.
func (g *Generator) Silence(samples int) ([]float32, error) {
	if samples <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLength, samples)
	}
	return make([]float32, samples), nil
}

// Peak returns the largest absolute sample value.
func Peak(data []float32) float32 {
	var peak float32
	for _, v := range data {
		peak = max(peak, math32.Abs(v))
	}
	return peak
}

// Normalize scales data to targetPeak and returns a new slice.
func Normalize(data []float32, targetPeak float32) ([]float32, error) {
	if targetPeak < 0 {
		return nil, fmt.Errorf("signal: normalize target peak must be >= 0: %f", targetPeak)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: normalize input is empty", ErrInvalidLength)
	}

	out := make([]float32, len(data))
	peak := Peak(data)
	if peak == 0 || targetPeak == 0 {
		return out, nil
	}

	scale := targetPeak / peak
	for i, v := range data {
		out[i] = v * scale
	}
	return out, nil
}
