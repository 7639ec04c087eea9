package loudness

import (
	"errors"
	"math"
)

var ErrEmpty = errors.New("loudness: input is empty")

const chunk = 4096

// Processor renders audio through a model. *model.Model satisfies it.
type Processor interface {
	Process(in, out []float32)
	Reset()
}

// Result summarizes a rendered signal.
type Result struct {
	Integrated float64
	// MaxMomentary and MaxShortTerm are the loudest windows seen.
	MaxMomentary float64
	MaxShortTerm float64
	// PeakDB is the sample peak in dBFS.
	PeakDB float64
}

// Measure resets p, renders in through it and meters the output.
func Measure(p Processor, in []float32, opts ...Option) (Result, error) {
	if len(in) == 0 {
		return Result{}, ErrEmpty
	}

	m, err := NewMeter(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Reset()

	res := Result{MaxMomentary: Floor, MaxShortTerm: Floor}
	out := make([]float32, chunk)
	for start := 0; start < len(in); start += chunk {
		end := min(start+chunk, len(in))
		p.Process(in[start:end], out[:end-start])
		m.Process(out[:end-start])

		res.MaxMomentary = max(res.MaxMomentary, m.Momentary())
		res.MaxShortTerm = max(res.MaxShortTerm, m.ShortTerm())
	}

	res.Integrated = m.Integrated()
	res.PeakDB = Floor
	if pk := m.Peak(); pk > 0 {
		res.PeakDB = max(20*math.Log10(float64(pk)), Floor)
	}

	return res, nil
}
