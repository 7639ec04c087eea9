package design

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-nam/dsp/filter/biquad"
)

const sr = 48000.0

func TestHighpassShape(t *testing.T) {
	c := Highpass(1000, defaultQ, sr)

	if db := c.MagnitudeDB(1000, sr); math.Abs(db+3.01) > 0.05 {
		t.Fatalf("cutoff gain %.3f dB, want -3.01", db)
	}
	if db := c.MagnitudeDB(20000, sr); math.Abs(db) > 0.1 {
		t.Fatalf("passband gain %.3f dB", db)
	}
	if db := c.MagnitudeDB(100, sr); db > -39 {
		t.Fatalf("stopband gain %.3f dB, want about -40", db)
	}
}

func TestLowpassShape(t *testing.T) {
	c := Lowpass(1000, defaultQ, sr)

	if db := c.MagnitudeDB(1000, sr); math.Abs(db+3.01) > 0.05 {
		t.Fatalf("cutoff gain %.3f dB, want -3.01", db)
	}
	if db := c.MagnitudeDB(20, sr); math.Abs(db) > 0.01 {
		t.Fatalf("passband gain %.3f dB", db)
	}
}

func TestHighShelfGain(t *testing.T) {
	c := HighShelf(1500, 4, defaultQ, sr)

	if db := c.MagnitudeDB(20, sr); math.Abs(db) > 0.05 {
		t.Fatalf("low-frequency gain %.3f dB, want 0", db)
	}
	if db := c.MagnitudeDB(18000, sr); math.Abs(db-4) > 0.1 {
		t.Fatalf("shelf gain %.3f dB, want 4", db)
	}
}

func TestKWeightingResponse(t *testing.T) {
	k := biquad.NewChain(KWeighting(sr))

	// About +0.7 dB at 1 kHz, the full shelf above 8 kHz.
	tests := []struct {
		freq, want, tol float64
	}{
		{1000, 0.67, 0.05},
		{10000, 4.0, 0.3},
		{20, -11.5, 0.5},
	}
	for _, tt := range tests {
		if db := k.MagnitudeDB(tt.freq, sr); math.Abs(db-tt.want) > tt.tol {
			t.Errorf("%v Hz: %.2f dB, want %.2f", tt.freq, db, tt.want)
		}
	}
}

func TestInvalidParameters(t *testing.T) {
	zero := biquad.Coefficients{}
	for name, c := range map[string]biquad.Coefficients{
		"nyquist":     Highpass(sr/2, defaultQ, sr),
		"negative":    Lowpass(-1, defaultQ, sr),
		"sample rate": HighShelf(1000, 3, defaultQ, 0),
		"nan":         Highpass(math.NaN(), defaultQ, sr),
	} {
		if c != zero {
			t.Errorf("%s: got %+v, want zero coefficients", name, c)
		}
	}

	if Highpass(1000, -1, sr) != Highpass(1000, defaultQ, sr) {
		t.Error("invalid Q should fall back to the default")
	}
}
