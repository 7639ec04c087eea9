package envconfig

import (
	"log/slog"
	"runtime"
	"testing"

	"github.com/cwbudde/algo-nam/internal/testutil"
	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/activation"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"t":     slog.LevelDebug,
		"1":     slog.LevelDebug,
		"2":     slog.Level(-8),
		"-1":    slog.LevelWarn,
		"bogus": slog.LevelInfo,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAM_DEBUG", k)
			if i := LogLevel(); i != v {
				t.Errorf("%s: expected %d, got %d", k, v, i)
			}
		})
	}
}

func TestVar(t *testing.T) {
	cases := map[string]string{
		"value":       "value",
		" value ":     "value",
		" 'value' ":   "value",
		` "value" `:   "value",
		" ' value ' ": " value ",
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAM_VAR", k)
			if s := Var("NAM_VAR"); s != v {
				t.Errorf("%s: expected %q, got %q", k, v, s)
			}
		})
	}
}

func TestMaxBlockSize(t *testing.T) {
	cases := map[string]uint{
		"":    64,
		"32":  32,
		"0":   64,
		"-4":  64,
		"abc": 64,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAM_MAX_BLOCK", k)
			if i := MaxBlockSize(); i != v {
				t.Errorf("%s: expected %d, got %d", k, v, i)
			}
		})
	}
}

func TestJobsDefault(t *testing.T) {
	t.Setenv("NAM_JOBS", "")
	if got, want := Jobs(), uint(runtime.GOMAXPROCS(0)); got != want {
		t.Errorf("expected %d, got %d", want, got)
	}
}

func TestActivation(t *testing.T) {
	cases := map[string]activation.Kind{
		"":        activation.KindFast,
		"exact":   activation.KindExact,
		"APPROX":  activation.KindApprox,
		"unknown": activation.KindFast,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAM_ACTIVATION", k)
			if got := Activation(); got != v {
				t.Errorf("%s: expected %v, got %v", k, v, got)
			}
		})
	}
}

func TestLoadMode(t *testing.T) {
	cases := map[string]model.LoadMode{
		"":               model.LoadPreferStatic,
		"dynamic":        model.LoadDynamic,
		"require-static": model.LoadRequireStatic,
		"sometimes":      model.LoadPreferStatic,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAM_LOAD_MODE", k)
			if got := LoadMode(); got != v {
				t.Errorf("%s: expected %v, got %v", k, v, got)
			}
		})
	}
}

func TestInputLevelDBu(t *testing.T) {
	cases := map[string]float64{
		"":     12,
		"18.5": 18.5,
		"-6":   -6,
		"NaN":  12,
		"loud": 12,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAM_INPUT_DBU", k)
			if got := InputLevelDBu(); got != v {
				t.Errorf("%s: expected %v, got %v", k, v, got)
			}
		})
	}
}

func TestValues(t *testing.T) {
	t.Setenv("NAM_DEBUG", "")
	t.Setenv("NAM_MAX_BLOCK", "16")
	t.Setenv("NAM_ACTIVATION", "exact")
	t.Setenv("NAM_LOAD_MODE", "dynamic")
	t.Setenv("NAM_INPUT_DBU", "")
	t.Setenv("NAM_JOBS", "3")

	want := map[string]string{
		"NAM_DEBUG":      "INFO",
		"NAM_MAX_BLOCK":  "16",
		"NAM_ACTIVATION": "exact",
		"NAM_LOAD_MODE":  "dynamic",
		"NAM_INPUT_DBU":  "12",
		"NAM_JOBS":       "3",
	}

	testutil.RequireEqual(t, want, Values())
}
