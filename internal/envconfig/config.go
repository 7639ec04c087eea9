// Package envconfig reads the NAM_* environment variables that set CLI
// defaults. Flags given on the command line take precedence.
package envconfig

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/activation"
	"github.com/cwbudde/algo-nam/nn/core"
)

// LogLevel returns the log level from NAM_DEBUG. A boolean true selects
// Debug; an integer n selects slog.Level(-4n).
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("NAM_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

var (
	// MaxBlockSize is the internal block size (NAM_MAX_BLOCK).
	MaxBlockSize = Uint("NAM_MAX_BLOCK", core.DefaultMaxFrames)
	// Jobs bounds concurrent files in batch mode (NAM_JOBS).
	Jobs = Uint("NAM_JOBS", uint(runtime.GOMAXPROCS(0)))
)

// Activation returns the activation kind from NAM_ACTIVATION.
func Activation() activation.Kind {
	s := Var("NAM_ACTIVATION")
	if s == "" {
		return activation.KindFast
	}

	kind, err := activation.ParseKind(s)
	if err != nil {
		slog.Warn("invalid environment variable, using default", "key", "NAM_ACTIVATION", "value", s, "default", activation.KindFast)
		return activation.KindFast
	}

	return kind
}

// LoadMode returns the registry mode from NAM_LOAD_MODE.
func LoadMode() model.LoadMode {
	s := Var("NAM_LOAD_MODE")

	mode, err := model.ParseLoadMode(s)
	if err != nil {
		slog.Warn("invalid environment variable, using default", "key", "NAM_LOAD_MODE", "value", s, "default", model.LoadPreferStatic)
		return model.LoadPreferStatic
	}

	return mode
}

// InputLevelDBu returns the host's full-scale input level from
// NAM_INPUT_DBU.
func InputLevelDBu() float64 {
	if s := Var("NAM_INPUT_DBU"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
		slog.Warn("invalid environment variable, using default", "key", "NAM_INPUT_DBU", "value", s, "default", model.DefaultInputLevelDBu)
	}

	return model.DefaultInputLevelDBu
}

// Uint returns a getter for an unsigned value with a default.
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil || n == 0 {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// Var returns an environment variable stripped of surrounding quotes and
// spaces.
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// EnvVar describes one variable for display.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap returns all variables with their current values.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"NAM_DEBUG":      {"NAM_DEBUG", LogLevel(), "Show additional debug information (e.g. NAM_DEBUG=1)"},
		"NAM_MAX_BLOCK":  {"NAM_MAX_BLOCK", MaxBlockSize(), fmt.Sprintf("Internal block size, 1-%d (default %d)", core.MaxMaxFrames, core.DefaultMaxFrames)},
		"NAM_ACTIVATION": {"NAM_ACTIVATION", Activation(), "Activation implementation: fast, exact or approx (default fast)"},
		"NAM_LOAD_MODE":  {"NAM_LOAD_MODE", LoadMode(), "Registry use: prefer-static, require-static or dynamic"},
		"NAM_INPUT_DBU":  {"NAM_INPUT_DBU", InputLevelDBu(), "Host full-scale input level in dBu (default 12)"},
		"NAM_JOBS":       {"NAM_JOBS", Jobs(), "Files processed concurrently by batch (default GOMAXPROCS)"},
	}
}

// Values returns all variables formatted as strings.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
