package loudness_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-nam/measure/loudness"
)

func ExampleMeter() {
	m, err := loudness.NewMeter(loudness.WithSampleRate(48000))
	if err != nil {
		panic(err)
	}

	// 4 s of a 1 kHz sine at -12.04 dBFS.
	sig := make([]float32, 4*48000)
	for i := range sig {
		sig[i] = float32(0.25 * math.Sin(2*math.Pi*1000/48000*float64(i)))
	}
	m.Process(sig)

	fmt.Printf("Short-term: %.1f LUFS\n", m.ShortTerm())
	fmt.Printf("Integrated: %.1f LUFS\n", m.Integrated())
	// Output:
	// Short-term: -15.1 LUFS
	// Integrated: -15.1 LUFS
}
