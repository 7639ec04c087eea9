package main

import (
	"context"
	"log/slog"

	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/core"
)

type runOptions struct {
	hostBuffer int
	prewarm    bool
	applyGain  bool
}

// render runs in through m in host-sized buffers the way a plugin host
// would, checking ctx between buffers.
func render(ctx context.Context, m *model.Model, in []float32, opt runOptions) ([]float32, error) {
	if opt.prewarm {
		m.Prewarm()
	} else {
		m.Reset()
	}

	src := in
	var inGain, outGain float32 = 1, 1
	if opt.applyGain {
		inGain = float32(core.DBToLinear(m.RecommendedInputDBAdjustment()))
		outGain = float32(core.DBToLinear(m.RecommendedOutputDBAdjustment()))
		src = append([]float32(nil), in...)
		core.Scale(src, inGain)
		slog.Debug("applying recommended gain", "input_db", m.RecommendedInputDBAdjustment(), "output_db", m.RecommendedOutputDBAdjustment())
	}

	hostBuffer := opt.hostBuffer
	if hostBuffer < 1 {
		hostBuffer = len(src)
	}

	out := make([]float32, len(src))
	for off := 0; off < len(src); off += hostBuffer {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(off+hostBuffer, len(src))
		m.Process(src[off:end], out[off:end])
	}

	if outGain != 1 {
		core.Scale(out, outGain)
	}

	return out, nil
}

func checkSampleRate(m *model.Model, c *clip, path string) {
	if float64(c.sampleRate) != m.SampleRate() {
		slog.Warn("sample rate differs from the model's",
			"file", path, "file_rate", c.sampleRate, "model_rate", m.SampleRate())
	}
}
