//go:build amd64 && !purego

package activation

import (
	"testing"

	"github.com/cwbudde/algo-nam/nn/activation/internal/arch/registry"
	"github.com/cwbudde/algo-vecmath/cpu"
)

func TestKernelDispatch_AMD64Modes(t *testing.T) {
	tests := []struct {
		name     string
		features cpu.Features
		wantImpl string
	}{
		{
			name: "generic-forced",
			features: cpu.Features{
				ForceGeneric: true,
				Architecture: "amd64",
			},
			wantImpl: "generic",
		},
		{
			name: "sse2-only",
			features: cpu.Features{
				HasSSE2:      true,
				Architecture: "amd64",
			},
			wantImpl: "generic",
		},
		{
			name: "avx2",
			features: cpu.Features{
				HasSSE2:      true,
				HasAVX2:      true,
				Architecture: "amd64",
			},
			wantImpl: "avx2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu.SetForcedFeatures(tt.features)

			defer cpu.ResetDetection()

			entry := registry.Global.Lookup(cpu.DetectFeatures())
			if entry == nil {
				t.Fatal("Lookup returned nil")
			}

			if entry.Name != tt.wantImpl {
				t.Fatalf("Lookup().Name = %q, want %q", entry.Name, tt.wantImpl)
			}

			buf := []float32{-3, -0.5, 0, 0.5, 3}
			entry.Tanh(buf)

			for i, x := range []float32{-3, -0.5, 0, 0.5, 3} {
				if buf[i] != FastTanh(x) {
					t.Fatalf("%s tanh[%d] = %v, want %v", entry.Name, i, buf[i], FastTanh(x))
				}
			}
		})
	}
}
