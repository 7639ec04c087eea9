// Package response measures the small-signal frequency response and the
// harmonic distortion spectrum of a model with an exponential sine sweep.
//
// The model output is deconvolved by spectral division with the sweep,
// restricted to the swept band. Harmonic k of a memoryless nonlinearity
// then shows up as a separate impulse T ln(k)/ln(f2/f1) seconds before the
// linear one, so one rendering yields both.
package response

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"

	"github.com/cwbudde/algo-nam/signal"
)

var (
	ErrConfig = errors.New("response: invalid configuration")
	ErrSilent = errors.New("response: model output is silent")
)

const (
	defaultSeconds      = 2.0
	defaultStartHz      = 20.0
	defaultEndHz        = 20000.0
	defaultAmplitude    = 0.0625
	defaultTail         = 4096
	defaultMaxHarmonics = 5
)

// Processor renders audio through a model. *model.Model satisfies it.
type Processor interface {
	Process(in, out []float32)
	Reset()
}

// Config holds sweep parameters. Zero fields take defaults.
type Config struct {
	SampleRate float64
	StartHz    float64
	// EndHz is capped at 0.45 times the sample rate.
	EndHz   float64
	Seconds float64
	// Amplitude of the sweep. Small levels keep the model close to linear.
	Amplitude float32
	// Tail is the number of samples rendered after the sweep ends.
	Tail int
	// MaxHarmonics is the highest harmonic order separated, at least 2.
	MaxHarmonics int
}

func (cfg Config) normalize() (Config, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = signal.DefaultSampleRate
	}
	if cfg.StartHz == 0 {
		cfg.StartHz = defaultStartHz
	}
	if cfg.EndHz == 0 {
		cfg.EndHz = defaultEndHz
	}
	cfg.EndHz = min(cfg.EndHz, 0.45*cfg.SampleRate)
	if cfg.Seconds == 0 {
		cfg.Seconds = defaultSeconds
	}
	if cfg.Amplitude == 0 {
		cfg.Amplitude = defaultAmplitude
	}
	if cfg.Tail == 0 {
		cfg.Tail = defaultTail
	}
	if cfg.MaxHarmonics == 0 {
		cfg.MaxHarmonics = defaultMaxHarmonics
	}

	switch {
	case !(cfg.SampleRate > 0) || math.IsInf(cfg.SampleRate, 0):
		return cfg, fmt.Errorf("%w: sample rate %f", ErrConfig, cfg.SampleRate)
	case !(cfg.StartHz > 0) || cfg.StartHz >= cfg.EndHz:
		return cfg, fmt.Errorf("%w: band %f..%f Hz", ErrConfig, cfg.StartHz, cfg.EndHz)
	case !(cfg.Seconds > 0) || cfg.Seconds > 60:
		return cfg, fmt.Errorf("%w: duration %f s", ErrConfig, cfg.Seconds)
	case cfg.Amplitude < 0 || cfg.Amplitude > 1:
		return cfg, fmt.Errorf("%w: amplitude %f", ErrConfig, cfg.Amplitude)
	case cfg.Tail < 0:
		return cfg, fmt.Errorf("%w: tail %d", ErrConfig, cfg.Tail)
	case cfg.MaxHarmonics < 2:
		return cfg, fmt.Errorf("%w: max harmonics %d", ErrConfig, cfg.MaxHarmonics)
	case cfg.referenceLow() >= cfg.EndHz/2:
		return cfg, fmt.Errorf("%w: %f..%f Hz is too narrow to separate %d harmonics",
			ErrConfig, cfg.StartHz, cfg.EndHz, cfg.MaxHarmonics)
	}

	return cfg, nil
}

// referenceLow is the lower end of the band harmonic levels are
// compared over. The upper end is half of EndHz.
func (cfg Config) referenceLow() float64 {
	return 2 * float64(cfg.MaxHarmonics+1) * cfg.StartHz
}

// offset returns how many samples before the linear impulse harmonic k
// of an n sample sweep appears.
func (cfg Config) offset(k, n int) int {
	return int(math.Round(float64(n) * math.Log(float64(k)) / math.Log(cfg.EndHz/cfg.StartHz)))
}

// Response is the result of a sweep measurement.
type Response struct {
	cfg Config
	// linear holds the linear impulse response for times
	// [-half, half).
	linear []float64
	half   int
	// Harmonics holds the level of H2, H3, ... relative to the linear
	// response in dB, averaged over a band between the sweep edges.
	Harmonics []float64
}

// Measure resets p, renders a sweep followed by cfg.Tail samples of
// silence and deconvolves the output.
func Measure(p Processor, cfg Config) (*Response, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	g, err := signal.NewGenerator(signal.WithSampleRate(cfg.SampleRate))
	if err != nil {
		return nil, err
	}

	n := g.Samples(cfg.Seconds)
	sweep, err := g.LogSweep(cfg.StartHz, cfg.EndHz, cfg.Amplitude, n)
	if err != nil {
		return nil, err
	}

	in := make([]float32, n+cfg.Tail)
	copy(in, sweep)
	out := make([]float32, len(in))
	p.Reset()
	p.Process(in, out)

	return Deconvolve(sweep, out, cfg)
}

// Deconvolve analyzes out, the response of a system to sweep. sweep must
// have been generated with the band, duration and sample rate of cfg.
func Deconvolve(sweep, out []float32, cfg Config) (*Response, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if len(sweep) == 0 || len(out) < len(sweep) {
		return nil, fmt.Errorf("%w: %d output samples for a %d sample sweep", ErrConfig, len(out), len(sweep))
	}

	size := 2 * nextPowerOf2(len(out))
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	x, err := spectrum(plan, sweep, size)
	if err != nil {
		return nil, err
	}
	y, err := spectrum(plan, out, size)
	if err != nil {
		return nil, err
	}

	peak := 0.0
	for _, v := range x {
		peak = max(peak, real(v)*real(v)+imag(v)*imag(v))
	}
	eps := peak * 1e-10

	binHz := cfg.SampleRate / float64(size)
	lo := int(math.Ceil(cfg.StartHz / binHz))
	hi := int(math.Floor(cfg.EndHz / binHz))

	h := make([]complex128, size)
	for k := lo; k <= hi; k++ {
		v := y[k] * cmplx.Conj(x[k]) / complex(real(x[k])*real(x[k])+imag(x[k])*imag(x[k])+eps, 0)
		h[k] = v
		h[size-k] = cmplx.Conj(v)
	}

	ir := make([]complex128, size)
	if err := plan.Inverse(ir, h); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	// at reads the circular impulse response at a signed time.
	at := func(t int) float64 {
		return real(ir[((t%size)+size)%size])
	}

	// Window k spans the midpoints to its neighbours.
	centers := make([]int, cfg.MaxHarmonics+2)
	for k := 1; k < len(centers); k++ {
		centers[k] = -cfg.offset(k, len(sweep))
	}
	bounds := func(k int) (int, int) {
		from := (centers[k] + centers[k+1]) / 2
		to := (centers[k] + centers[k-1]) / 2
		if k == 1 {
			to = -from
		}
		return from, to
	}

	from, to := bounds(1)
	r := &Response{cfg: cfg, half: -from, linear: make([]float64, to-from)}
	for t := from; t < to; t++ {
		r.linear[t-from] = at(t)
	}

	segments := [][]float64{r.linear}
	longest := len(r.linear)
	for k := 2; k <= cfg.MaxHarmonics; k++ {
		from, to := bounds(k)
		seg := make([]float64, to-from)
		for t := from; t < to; t++ {
			seg[t-from] = at(t)
		}
		segments = append(segments, seg)
		longest = max(longest, len(seg))
	}

	levels, err := bandLevels(segments, longest, cfg)
	if err != nil {
		return nil, err
	}
	if levels[0] == 0 {
		return nil, ErrSilent
	}
	for _, l := range levels[1:] {
		r.Harmonics = append(r.Harmonics, powerToDB(l/levels[0]))
	}

	return r, nil
}

// bandLevels returns the mean spectral power of each segment over the
// reference band, which keeps clear of the sweep edges and of the lower
// edge of every harmonic.
func bandLevels(segments [][]float64, longest int, cfg Config) ([]float64, error) {
	size := nextPowerOf2(longest)
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}

	binHz := cfg.SampleRate / float64(size)
	lo := int(math.Ceil(cfg.referenceLow() / binHz))
	hi := int(math.Floor(cfg.EndHz / 2 / binHz))

	in := make([]complex128, size)
	out := make([]complex128, size)
	levels := make([]float64, len(segments))
	for i, seg := range segments {
		clear(in)
		for j, v := range seg {
			in[j] = complex(v, 0)
		}
		if err := plan.Forward(out, in); err != nil {
			return nil, fmt.Errorf("response: %w", err)
		}

		sum := 0.0
		for k := lo; k <= hi; k++ {
			sum += real(out[k])*real(out[k]) + imag(out[k])*imag(out[k])
		}
		levels[i] = sum / float64(hi-lo+1)
	}

	return levels, nil
}

func spectrum(plan *algofft.Plan[complex128], x []float32, size int) ([]complex128, error) {
	in := make([]complex128, size)
	for i, v := range x {
		in[i] = complex(float64(v), 0)
	}
	out := make([]complex128, size)
	if err := plan.Forward(out, in); err != nil {
		return nil, fmt.Errorf("response: %w", err)
	}
	return out, nil
}

// Band returns the measured frequency range.
func (r *Response) Band() (float64, float64) { return r.cfg.StartHz, r.cfg.EndHz }

// ImpulseResponse returns the linear impulse response from time zero on.
func (r *Response) ImpulseResponse() []float64 {
	return append([]float64(nil), r.linear[r.half:]...)
}

// MagnitudeDB returns the linear gain at freq in dB.
func (r *Response) MagnitudeDB(freq float64) float64 {
	w := -2 * math.Pi * freq / r.cfg.SampleRate
	var sum complex128
	for i, v := range r.linear {
		sum += complex(v, 0) * cmplx.Rect(1, w*float64(i-r.half))
	}
	return powerToDB(real(sum)*real(sum) + imag(sum)*imag(sum))
}

// Latency returns the time of the largest linear impulse response sample.
func (r *Response) Latency() int {
	best, at := 0.0, 0
	for i, v := range r.linear[r.half:] {
		if a := math.Abs(v); a > best {
			best, at = a, i
		}
	}
	return at
}

func powerToDB(p float64) float64 {
	if p <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(p)
}

func nextPowerOf2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
