// Package thd measures the harmonic distortion an amp model adds to a pure
// tone.
//
// Analyze works on a recorded response. Measure drives a Processor with a
// bin-aligned sine, discards the settling part and analyzes the rest.
package thd

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-nam/dsp/window"
	"github.com/cwbudde/algo-nam/signal"
)

const (
	defaultFFTSize      = 8192
	defaultMaxHarmonics = 9
	// Main lobe half-width of the Hann window in bins.
	captureBins = 2
)

var ErrConfig = errors.New("thd: invalid configuration")

// Processor renders audio through a model. *model.Model satisfies it.
type Processor interface {
	Process(in, out []float32)
	Reset()
}

// Config holds analysis parameters. Zero fields take defaults.
type Config struct {
	SampleRate float64
	// Frequency of the test tone. Measure moves it to the nearest bin
	// center.
	Frequency float64
	// Amplitude of the test tone, used by Measure only.
	Amplitude float32
	// FFTSize is the analysis length, a power of two.
	FFTSize int
	// Settle is the number of samples Measure discards before analysis.
	// Defaults to FFTSize.
	Settle int
	// MaxHarmonics bounds the harmonics taken into account, starting at H2.
	MaxHarmonics int
}

// Result holds distortion figures relative to the fundamental.
type Result struct {
	Fundamental float64
	// Level is the peak amplitude of the fundamental in the response.
	Level float64
	// THD is the RMS sum of the harmonics over the fundamental.
	THD float64
	// THDN additionally includes everything above DC that is not the
	// fundamental.
	THDN   float64
	OddHD  float64
	EvenHD float64
	// Harmonics holds H2, H3, ... as amplitude ratios.
	Harmonics []float64
}

// THDdB returns THD in dB.
func (r Result) THDdB() float64 { return ratioToDB(r.THD) }

// THDNdB returns THD+N in dB.
func (r Result) THDNdB() float64 { return ratioToDB(r.THDN) }

// Gain returns the level of the fundamental relative to amplitude, in dB.
func (r Result) Gain(amplitude float32) float64 {
	return ratioToDB(r.Level / float64(amplitude))
}

func (cfg Config) normalize() (Config, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = signal.DefaultSampleRate
	}
	if cfg.FFTSize == 0 {
		cfg.FFTSize = defaultFFTSize
	}
	if cfg.Settle == 0 {
		cfg.Settle = cfg.FFTSize
	}
	if cfg.MaxHarmonics == 0 {
		cfg.MaxHarmonics = defaultMaxHarmonics
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = 0.5
	}

	switch {
	case cfg.SampleRate < 0 || math.IsNaN(cfg.SampleRate) || math.IsInf(cfg.SampleRate, 0):
		return cfg, fmt.Errorf("%w: sample rate %f", ErrConfig, cfg.SampleRate)
	case cfg.FFTSize < 64 || cfg.FFTSize&(cfg.FFTSize-1) != 0:
		return cfg, fmt.Errorf("%w: FFT size %d is not a power of two >= 64", ErrConfig, cfg.FFTSize)
	case cfg.Settle < 0 || cfg.MaxHarmonics < 0:
		return cfg, fmt.Errorf("%w: negative settle or harmonic count", ErrConfig)
	}

	bin := cfg.bin()
	if bin <= 2*captureBins || bin >= cfg.FFTSize/2-captureBins {
		return cfg, fmt.Errorf("%w: %f Hz cannot be resolved with %d bins at %f Hz",
			ErrConfig, cfg.Frequency, cfg.FFTSize, cfg.SampleRate)
	}

	return cfg, nil
}

func (cfg Config) bin() int {
	return int(math.Round(cfg.Frequency * float64(cfg.FFTSize) / cfg.SampleRate))
}

// Measure resets p, feeds it a sine of cfg.Frequency and cfg.Amplitude and
// analyzes the response once cfg.Settle samples have passed.
func Measure(p Processor, cfg Config) (Result, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return Result{}, err
	}

	cfg.Frequency = float64(cfg.bin()) * cfg.SampleRate / float64(cfg.FFTSize)

	g, err := signal.NewGenerator(signal.WithSampleRate(cfg.SampleRate))
	if err != nil {
		return Result{}, err
	}

	in, err := g.Sine(cfg.Frequency, cfg.Amplitude, cfg.Settle+cfg.FFTSize)
	if err != nil {
		return Result{}, err
	}

	out := make([]float32, len(in))
	p.Reset()
	p.Process(in, out)

	return analyze(out[cfg.Settle:], cfg)
}

// Analyze computes distortion figures from the first cfg.FFTSize samples of
// x, which must contain a tone at cfg.Frequency.
func Analyze(x []float32, cfg Config) (Result, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return Result{}, err
	}
	if len(x) < cfg.FFTSize {
		return Result{}, fmt.Errorf("%w: %d samples, need %d", ErrConfig, len(x), cfg.FFTSize)
	}
	return analyze(x[:cfg.FFTSize], cfg)
}

func analyze(x []float32, cfg Config) (Result, error) {
	n := cfg.FFTSize

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return Result{}, fmt.Errorf("thd: %w", err)
	}

	frame := make([]float64, n)
	for i := range frame {
		frame[i] = float64(x[i])
	}
	window.Apply(window.TypeHann, frame, window.WithPeriodic())

	in := make([]complex128, n)
	for i, v := range frame {
		in[i] = complex(v, 0)
	}

	X := make([]complex128, n)
	if err := plan.Forward(X, in); err != nil {
		return Result{}, fmt.Errorf("thd: %w", err)
	}

	bins := n/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)
	for k := range bins {
		re[k] = real(X[k])
		im[k] = imag(X[k])
	}
	power := make([]float64, bins)
	vecmath.Power(power, re, im)

	fund := cfg.bin()
	pf := capture(power, fund)

	// A bin-centered tone of amplitude A puts 3/2 (A n/4)^2 into the Hann
	// main lobe.
	res := Result{
		Fundamental: float64(fund) * cfg.SampleRate / float64(n),
		Level:       math.Sqrt(pf/1.5) * 4 / float64(n),
	}
	if pf == 0 {
		return res, nil
	}

	var odd, even float64
	for h := 2; h <= cfg.MaxHarmonics+1; h++ {
		bin := h * fund
		if bin+captureBins >= bins {
			break
		}
		ph := capture(power, bin)
		res.Harmonics = append(res.Harmonics, math.Sqrt(ph/pf))
		if h%2 == 0 {
			even += ph
		} else {
			odd += ph
		}
	}

	total := 0.0
	for k := captureBins + 1; k < bins; k++ {
		total += power[k]
	}

	res.THD = math.Sqrt((odd + even) / pf)
	res.OddHD = math.Sqrt(odd / pf)
	res.EvenHD = math.Sqrt(even / pf)
	res.THDN = math.Sqrt(max(total-pf, 0) / pf)

	return res, nil
}

func capture(power []float64, bin int) float64 {
	sum := 0.0
	for k := bin - captureBins; k <= bin+captureBins; k++ {
		sum += power[k]
	}
	return sum
}

func ratioToDB(v float64) float64 {
	if v <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(v)
}
