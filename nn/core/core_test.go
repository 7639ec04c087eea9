package core

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-nam/nn/activation"
)

func TestApplyProcessorOptionsDefaults(t *testing.T) {
	cfg, err := ApplyProcessorOptions()
	if err != nil {
		t.Fatalf("ApplyProcessorOptions() error = %v", err)
	}

	if cfg != DefaultProcessorConfig() {
		t.Fatalf("cfg = %+v, want %+v", cfg, DefaultProcessorConfig())
	}
}

func TestApplyProcessorOptions(t *testing.T) {
	cfg, err := ApplyProcessorOptions(
		WithMaxFrames(32),
		WithHistoryWindow(8),
		WithActivation(activation.KindExact),
		nil,
	)
	if err != nil {
		t.Fatalf("ApplyProcessorOptions() error = %v", err)
	}

	if cfg.MaxFrames != 32 || cfg.Activation != activation.KindExact {
		t.Fatalf("cfg = %+v", cfg)
	}

	if cfg.HistoryWindow != 32 {
		t.Fatalf("HistoryWindow = %d, want raised to 32", cfg.HistoryWindow)
	}
}

func TestApplyProcessorOptionsInvalid(t *testing.T) {
	tests := []struct {
		name string
		opt  ProcessorOption
	}{
		{name: "frames-zero", opt: WithMaxFrames(0)},
		{name: "frames-large", opt: WithMaxFrames(MaxMaxFrames + 1)},
		{name: "window", opt: WithHistoryWindow(0)},
		{name: "activation", opt: WithActivation(activation.Kind(42))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ApplyProcessorOptions(tt.opt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPrewarmBlocks(t *testing.T) {
	tests := []struct {
		rf, block, want int
	}{
		{rf: 0, block: 64, want: 64},
		{rf: 8000, block: 64, want: 125},
		{rf: 10, block: 100, want: 41},
		{rf: 10, block: 0, want: 4096},
	}

	for _, tt := range tests {
		if got := PrewarmBlocks(tt.rf, tt.block); got != tt.want {
			t.Fatalf("PrewarmBlocks(%d, %d) = %d, want %d", tt.rf, tt.block, got, tt.want)
		}
	}
}

func TestDBConversions(t *testing.T) {
	if got := DBToLinear(20); math.Abs(got-10) > 1e-12 {
		t.Fatalf("DBToLinear(20) = %v, want 10", got)
	}

	if got := LinearToDB(0.1); math.Abs(got+20) > 1e-12 {
		t.Fatalf("LinearToDB(0.1) = %v, want -20", got)
	}

	if !math.IsInf(LinearToDB(0), -1) || !math.IsNaN(LinearToDB(-1)) {
		t.Fatal("LinearToDB edge cases")
	}

	if Clamp(5, 1, 0) != 1 {
		t.Fatal("Clamp with swapped bounds")
	}
}
