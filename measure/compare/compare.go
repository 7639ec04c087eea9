package compare

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-nam/dsp/window"
)

// Errors returned by comparison functions.
var (
	ErrLengthMismatch = errors.New("compare: signals differ in length")
	ErrEmpty          = errors.New("compare: signals are empty")
	ErrFFTSize        = errors.New("compare: FFT size must be a power of two >= 16")
)

const (
	defaultFFTSize = 2048
	defaultFloorDB = -90.0
)

// Result holds the difference metrics between a reference and a test
// signal.
type Result struct {
	Samples int
	// RMS is the root-mean-square of the sample-wise difference.
	RMS float64
	// MaxAbs is the largest sample-wise difference.
	MaxAbs float64
	// SNR is the reference energy over the difference energy in dB. +Inf
	// for identical signals.
	SNR float64
	// SpectralDeviation is the RMS difference in dB between the averaged
	// power spectra, over bins where the reference is above the floor.
	SpectralDeviation float64
}

// Option configures Compare.
type Option func(*config) error

type config struct {
	fftSize int
	floorDB float64
	window  window.Type
}

// WithFFTSize sets the analysis frame length.
func WithFFTSize(n int) Option {
	return func(cfg *config) error {
		if n < 16 || n&(n-1) != 0 {
			return fmt.Errorf("%w: %d", ErrFFTSize, n)
		}
		cfg.fftSize = n
		return nil
	}
}

// WithWindow sets the analysis window. The default is Hann.
func WithWindow(t window.Type) Option {
	return func(cfg *config) error {
		if _, err := window.Parse(t.String()); err != nil {
			return fmt.Errorf("compare: %w", err)
		}
		cfg.window = t
		return nil
	}
}

// WithFloorDB sets the reference power below which bins are ignored,
// relative to the strongest reference bin.
func WithFloorDB(db float64) Option {
	return func(cfg *config) error {
		if db >= 0 || math.IsNaN(db) {
			return fmt.Errorf("compare: floor must be negative: %f", db)
		}
		cfg.floorDB = db
		return nil
	}
}

// Compare computes all metrics for ref and test.
func Compare(ref, test []float32, opts ...Option) (Result, error) {
	cfg := config{fftSize: defaultFFTSize, floorDB: defaultFloorDB, window: window.TypeHann}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Result{}, err
		}
	}

	r, t, err := widen(ref, test)
	if err != nil {
		return Result{}, err
	}

	diff := make([]float64, len(r))
	floats.SubTo(diff, t, r)

	res := Result{
		Samples: len(r),
		RMS:     floats.Norm(diff, 2) / math.Sqrt(float64(len(r))),
		MaxAbs:  floats.Norm(diff, math.Inf(1)),
		SNR:     snr(r, diff),
	}

	res.SpectralDeviation, err = spectralDeviation(r, t, cfg)
	if err != nil {
		return Result{}, err
	}

	return res, nil
}

// RMS returns the root-mean-square difference of two signals.
func RMS(ref, test []float32) (float64, error) {
	r, t, err := widen(ref, test)
	if err != nil {
		return 0, err
	}
	return floats.Distance(r, t, 2) / math.Sqrt(float64(len(r))), nil
}

// MaxAbsDiff returns the largest sample-wise difference.
func MaxAbsDiff(ref, test []float32) (float64, error) {
	r, t, err := widen(ref, test)
	if err != nil {
		return 0, err
	}
	return floats.Distance(r, t, math.Inf(1)), nil
}

// SNR returns the signal-to-difference ratio in dB.
func SNR(ref, test []float32) (float64, error) {
	r, t, err := widen(ref, test)
	if err != nil {
		return 0, err
	}
	diff := make([]float64, len(r))
	floats.SubTo(diff, t, r)
	return snr(r, diff), nil
}

// SpectralDeviation returns the RMS dB difference between the averaged
// power spectra of ref and test.
func SpectralDeviation(ref, test []float32, opts ...Option) (float64, error) {
	cfg := config{fftSize: defaultFFTSize, floorDB: defaultFloorDB, window: window.TypeHann}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return 0, err
		}
	}

	r, t, err := widen(ref, test)
	if err != nil {
		return 0, err
	}

	return spectralDeviation(r, t, cfg)
}

func widen(ref, test []float32) ([]float64, []float64, error) {
	if len(ref) != len(test) {
		return nil, nil, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(ref), len(test))
	}
	if len(ref) == 0 {
		return nil, nil, ErrEmpty
	}

	r := make([]float64, len(ref))
	t := make([]float64, len(test))
	for i := range ref {
		r[i] = float64(ref[i])
		t[i] = float64(test[i])
	}
	return r, t, nil
}

func snr(ref, diff []float64) float64 {
	noise := floats.Dot(diff, diff)
	if noise == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(floats.Dot(ref, ref)/noise)
}

func spectralDeviation(ref, test []float64, cfg config) (float64, error) {
	n := cfg.fftSize
	for n > 16 && n > len(ref) {
		n /= 2
	}

	pr, err := averagePower(ref, n, cfg.window)
	if err != nil {
		return 0, err
	}

	pt, err := averagePower(test, n, cfg.window)
	if err != nil {
		return 0, err
	}

	peak := floats.Max(pr)
	if peak == 0 {
		if floats.Max(pt) == 0 {
			return 0, nil
		}
		return math.Inf(1), nil
	}

	floor := peak * math.Pow(10, cfg.floorDB/10)
	tiny := peak * 1e-30

	sum := 0.0
	count := 0
	for k := range pr {
		if pr[k] < floor {
			continue
		}
		d := 10 * math.Log10((pt[k]+tiny)/(pr[k]+tiny))
		sum += d * d
		count++
	}

	if count == 0 {
		return 0, nil
	}

	return math.Sqrt(sum / float64(count)), nil
}

// averagePower returns the windowed power spectrum of x averaged over
// half-overlapping frames of length n, for bins [0, n/2]. Short signals
// are zero-padded to one frame.
func averagePower(x []float64, n int, wt window.Type) ([]float64, error) {
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("compare: %w", err)
	}

	win := window.Generate(wt, n, window.WithPeriodic())
	frame := make([]float64, n)
	in := make([]complex128, n)
	out := make([]complex128, n)

	bins := n/2 + 1
	re := make([]float64, bins)
	im := make([]float64, bins)
	pow := make([]float64, bins)
	acc := make([]float64, bins)

	hop := n / 2
	frames := 0
	for start := 0; start == 0 || start+n <= len(x); start += hop {
		clear(frame)
		copy(frame, x[start:min(start+n, len(x))])
		vecmath.MulBlockInPlace(frame, win)

		for i, v := range frame {
			in[i] = complex(v, 0)
		}

		if err := plan.Forward(out, in); err != nil {
			return nil, fmt.Errorf("compare: %w", err)
		}

		for k := range bins {
			re[k] = real(out[k])
			im[k] = imag(out[k])
		}

		vecmath.Power(pow, re, im)
		floats.Add(acc, pow)
		frames++
	}

	floats.Scale(1/float64(frames), acc)

	return acc, nil
}
