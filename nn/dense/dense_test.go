package dense

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-nam/internal/mat"
	"github.com/cwbudde/algo-nam/internal/testutil"
	"github.com/cwbudde/algo-nam/nn/weights"
)

func newLoaded(t *testing.T, in, out int, bias bool, blob []float32) *Layer {
	t.Helper()

	l, err := New(in, out, bias)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	r := weights.NewReader(blob)
	if err := l.SetWeights(r); err != nil {
		t.Fatalf("SetWeights() error = %v", err)
	}

	if err := r.Done(); err != nil {
		t.Fatalf("Done() error = %v", err)
	}

	return l
}

func TestProcess(t *testing.T) {
	// W = [[1 2] [3 4] [5 6]], b = [0.5 -1 0]
	l := newLoaded(t, 2, 3, true, []float32{1, 2, 3, 4, 5, 6, 0.5, -1, 0})

	if l.NumWeights() != 9 {
		t.Fatalf("NumWeights() = %d, want 9", l.NumWeights())
	}

	in := mat.New(2, 2)
	copy(in.Data, []float32{1, 0, 0, 1}) // columns e0, e1
	out := mat.New(3, 2)
	out.Data[0] = 99

	l.Process(in, out)

	want := []float32{1.5, 2.5, 2, 3, 5, 6}
	testutil.RequireEqual(t, want, out.Data)

	l.ProcessAcc(in, out)

	want = []float32{3, 5, 4, 6, 10, 12}
	testutil.RequireEqual(t, want, out.Data)
}

func TestProcessColumnView(t *testing.T) {
	l := newLoaded(t, 1, 2, false, []float32{2, -1})

	in := mat.New(1, 8)
	for i := range in.Data {
		in.Data[i] = float32(i)
	}

	out := mat.New(2, 8)
	l.Process(mat.Cols(in, 3, 2), mat.Cols(out, 5, 2))

	want := []float32{
		0, 0, 0, 0, 0, 6, 8, 0,
		0, 0, 0, 0, 0, -3, -4, 0,
	}
	testutil.RequireEqual(t, want, out.Data)
}

func TestProcessVector(t *testing.T) {
	l := newLoaded(t, 3, 1, true, []float32{0.5, -0.25, 2, 0.1})

	y := []float32{42}
	l.ProcessVector([]float32{2, 4, 1}, y)

	testutil.RequireSliceNearlyEqual(t, y, []float32{2.1}, 1e-6)
}

func TestSetWeightsShort(t *testing.T) {
	l, err := New(2, 2, true)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := l.SetWeights(weights.NewReader([]float32{1, 2, 3, 4, 5})); !errors.Is(err, weights.ErrShortBlob) {
		t.Fatalf("SetWeights() = %v, want ErrShortBlob", err)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New(0, 3, false); !errors.Is(err, ErrInvalidShape) {
		t.Fatalf("New(0, 3) = %v, want ErrInvalidShape", err)
	}
}

func TestProcessNoAllocs(t *testing.T) {
	l := newLoaded(t, 4, 4, true, make([]float32, 20))
	in := mat.New(4, 64)
	out := mat.New(4, 64)

	allocs := testing.AllocsPerRun(100, func() {
		l.Process(mat.Cols(in, 0, 32), mat.Cols(out, 0, 32))
		l.ProcessAcc(mat.Cols(in, 32, 32), mat.Cols(out, 32, 32))
	})
	if allocs != 0 {
		t.Fatalf("Process allocated %.1f times per run", allocs)
	}
}

func BenchmarkProcess16x16x64(b *testing.B) {
	l, _ := New(16, 16, true)
	in := mat.New(16, 64)
	out := mat.New(16, 64)

	for b.Loop() {
		l.Process(in, out)
	}
}
