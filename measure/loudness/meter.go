// Package loudness meters the level of a model's mono output following
// ITU-R BS.1770: K-weighting, 400 ms momentary and 3 s short-term windows,
// and gated integrated loudness.
package loudness

import (
	"math"

	"github.com/cwbudde/algo-nam/dsp/filter/biquad"
	"github.com/cwbudde/algo-nam/dsp/filter/design"
)

const (
	momentaryDuration = 0.4
	shortTermDuration = 3.0
	// Gating blocks overlap by 75%.
	blockStep = momentaryDuration / 4

	absThreshold = -70.0
	relThreshold = -10.0

	// Floor reported for silence.
	Floor = -120.0
)

// window keeps a running sum of squares over the last len(hist) samples.
type window struct {
	hist []float64
	pos  int
	sum  float64
}

func newWindow(n int) window { return window{hist: make([]float64, n)} }

func (w *window) push(sq float64) {
	w.sum += sq - w.hist[w.pos]
	w.sum = max(w.sum, 0)
	w.hist[w.pos] = sq
	w.pos++
	if w.pos == len(w.hist) {
		w.pos = 0
	}
}

func (w *window) mean() float64 { return w.sum / float64(len(w.hist)) }

func (w *window) reset() {
	clear(w.hist)
	w.pos = 0
	w.sum = 0
}

// Meter accumulates loudness over successive blocks. It is not safe for
// concurrent use.
type Meter struct {
	sampleRate float64
	unweighted bool

	kWeight   *biquad.Chain
	momentary window
	shortTerm window

	step      int
	sinceStep int
	seen      int
	blocks    []float64
	peak      float32
}

// NewMeter creates a mono loudness meter.
func NewMeter(opts ...Option) (*Meter, error) {
	m, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	m.kWeight = biquad.NewChain(design.KWeighting(m.sampleRate))
	m.momentary = newWindow(int(math.Round(momentaryDuration * m.sampleRate)))
	m.shortTerm = newWindow(int(math.Round(shortTermDuration * m.sampleRate)))
	m.step = max(int(math.Round(blockStep*m.sampleRate)), 1)

	return m, nil
}

// SampleRate returns the configured sample rate.
func (m *Meter) SampleRate() float64 { return m.sampleRate }

// Reset clears filter, window and gating state.
func (m *Meter) Reset() {
	m.kWeight.Reset()
	m.momentary.reset()
	m.shortTerm.reset()
	m.sinceStep = 0
	m.seen = 0
	m.blocks = m.blocks[:0]
	m.peak = 0
}

// Process adds a block of samples.
func (m *Meter) Process(block []float32) {
	for _, s := range block {
		m.peak = max(m.peak, s, -s)

		v := float64(s)
		if !m.unweighted {
			v = m.kWeight.ProcessSample(v)
		}

		sq := v * v
		m.momentary.push(sq)
		m.shortTerm.push(sq)

		m.seen++
		m.sinceStep++
		if m.sinceStep == m.step {
			m.sinceStep = 0
			// The first gating block is complete once a full momentary
			// window has been seen.
			if m.seen >= len(m.momentary.hist) {
				m.blocks = append(m.blocks, m.momentary.mean())
			}
		}
	}
}

// Momentary returns the loudness of the last 400 ms in LUFS.
func (m *Meter) Momentary() float64 { return m.toDB(m.momentary.mean()) }

// ShortTerm returns the loudness of the last 3 s in LUFS.
func (m *Meter) ShortTerm() float64 { return m.toDB(m.shortTerm.mean()) }

// Integrated returns the gated loudness since the last Reset. It returns
// Floor when no block passed the gates.
func (m *Meter) Integrated() float64 {
	gated := 0.0
	n := 0
	for _, b := range m.blocks {
		if m.toDB(b) > absThreshold {
			gated += b
			n++
		}
	}
	if n == 0 {
		return Floor
	}

	rel := m.toDB(gated/float64(n)) + relThreshold

	sum := 0.0
	n = 0
	for _, b := range m.blocks {
		if l := m.toDB(b); l > absThreshold && l > rel {
			sum += b
			n++
		}
	}
	if n == 0 {
		return Floor
	}

	return m.toDB(sum / float64(n))
}

// Peak returns the largest absolute sample since the last Reset.
func (m *Meter) Peak() float32 { return m.peak }

func (m *Meter) toDB(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return Floor
	}
	db := 10 * math.Log10(meanSquare)
	if !m.unweighted {
		db -= 0.691
	}
	return max(db, Floor)
}
