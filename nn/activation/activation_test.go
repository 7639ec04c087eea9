package activation

import (
	"math"
	"testing"
)

func sweep(lo, hi float32, n int) []float32 {
	out := make([]float32, n)
	step := (hi - lo) / float32(n-1)
	for i := range out {
		out[i] = lo + step*float32(i)
	}
	return out
}

func TestFastTanhAccuracy(t *testing.T) {
	for _, x := range sweep(-10, 10, 20001) {
		got := FastTanh(x)
		want := float32(math.Tanh(float64(x)))
		if d := math.Abs(float64(got - want)); d > 1e-3 {
			t.Fatalf("FastTanh(%v) = %v, want %v (diff %v)", x, got, want, d)
		}
	}
}

func TestFastSigmoidAccuracy(t *testing.T) {
	for _, x := range sweep(-10, 10, 20001) {
		got := FastSigmoid(x)
		want := float32(1 / (1 + math.Exp(-float64(x))))
		if d := math.Abs(float64(got - want)); d > 1e-3 {
			t.Fatalf("FastSigmoid(%v) = %v, want %v (diff %v)", x, got, want, d)
		}
	}
}

func TestApproxAccuracy(t *testing.T) {
	for _, x := range sweep(-10, 10, 2001) {
		if d := math.Abs(float64(ApproxTanh(x)) - math.Tanh(float64(x))); d > 1e-2 {
			t.Fatalf("ApproxTanh(%v) diff %v", x, d)
		}

		want := 1 / (1 + math.Exp(-float64(x)))
		if d := math.Abs(float64(ApproxSigmoid(x)) - want); d > 1e-2 {
			t.Fatalf("ApproxSigmoid(%v) diff %v", x, d)
		}
	}
}

func TestBounded(t *testing.T) {
	inputs := []float32{-1e6, -100, -20, -5, 0, 5, 20, 100, 1e6}
	for _, kind := range []Kind{KindFast, KindExact, KindApprox} {
		f := For(kind)

		th := append([]float32(nil), inputs...)
		f.Tanh(th)

		sg := append([]float32(nil), inputs...)
		f.Sigmoid(sg)

		for i := range inputs {
			if th[i] < -1 || th[i] > 1 || math.IsNaN(float64(th[i])) {
				t.Fatalf("%v: tanh(%v) = %v out of [-1, 1]", kind, inputs[i], th[i])
			}

			if sg[i] < 0 || sg[i] > 1 || math.IsNaN(float64(sg[i])) {
				t.Fatalf("%v: sigmoid(%v) = %v out of [0, 1]", kind, inputs[i], sg[i])
			}
		}
	}
}

func TestBlockMatchesScalar(t *testing.T) {
	in := sweep(-6, 6, 37)

	f := For(KindFast)
	got := append([]float32(nil), in...)
	f.Tanh(got)

	for i, x := range in {
		if got[i] != FastTanh(x) {
			t.Fatalf("block tanh[%d] = %v, want %v", i, got[i], FastTanh(x))
		}
	}

	got = append(got[:0], in...)
	f.Sigmoid(got)

	for i, x := range in {
		if got[i] != FastSigmoid(x) {
			t.Fatalf("block sigmoid[%d] = %v, want %v", i, got[i], FastSigmoid(x))
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "fast", want: KindFast},
		{in: "EXACT", want: KindExact},
		{in: " approx ", want: KindApprox},
		{in: "", want: KindFast},
		{in: "cubic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}

			if !tt.wantErr && got != tt.want {
				t.Fatalf("ParseKind(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for _, kind := range []Kind{KindFast, KindExact, KindApprox} {
		parsed, err := ParseKind(kind.String())
		if err != nil || parsed != kind {
			t.Fatalf("ParseKind(%q) = %v, %v", kind.String(), parsed, err)
		}
	}

	if Kind(9).Valid() {
		t.Fatal("Kind(9).Valid() = true")
	}
}

func BenchmarkFastTanhBlock(b *testing.B) {
	x := sweep(-4, 4, 64)
	buf := make([]float32, len(x))
	f := For(KindFast)

	for b.Loop() {
		copy(buf, x)
		f.Tanh(buf)
	}
}

func BenchmarkExactTanhBlock(b *testing.B) {
	x := sweep(-4, 4, 64)
	buf := make([]float32, len(x))
	f := For(KindExact)

	for b.Loop() {
		copy(buf, x)
		f.Tanh(buf)
	}
}
