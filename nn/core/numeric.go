package core

import "math"

// Clamp limits value to the inclusive range [min, max].
func Clamp(value, min, max float64) float64 {
	if min > max {
		min, max = max, min
	}

	if value < min {
		return min
	}

	if value > max {
		return max
	}

	return value
}

// DBToLinear converts dB to linear amplitude (20*log10 convention).
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts linear amplitude to dB (20*log10 convention).
// Returns -Inf for zero and NaN for negative values.
func LinearToDB(linear float64) float64 {
	if linear < 0 {
		return math.NaN()
	}

	if linear == 0 {
		return math.Inf(-1)
	}

	return 20 * math.Log10(linear)
}

// PrewarmBlocks returns the number of blocks of blockSize needed to cover
// at least max(receptiveField, DefaultPrewarmSamples) samples.
func PrewarmBlocks(receptiveField, blockSize int) int {
	if blockSize < 1 {
		blockSize = 1
	}

	n := max(receptiveField, DefaultPrewarmSamples)

	return (n + blockSize - 1) / blockSize
}

// Scale multiplies buf by gain in place.
func Scale(buf []float32, gain float32) {
	for i := range buf {
		buf[i] *= gain
	}
}
