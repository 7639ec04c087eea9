package model_test

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/algo-nam/internal/testutil"
	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/core"
	"github.com/cwbudde/algo-nam/nn/lstm"
	"github.com/cwbudde/algo-nam/nn/wavenet"
	"github.com/cwbudde/algo-nam/nn/weights"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

// dyadicBlob returns values on a 1/2048 grid so they survive a JSON round
// trip exactly.
func dyadicBlob(seed int64, n int) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(rng.Intn(1025)-512) / 2048
	}
	return out
}

func namWaveNetFile(t *testing.T, cfg wavenet.Config, blob []float32, extra map[string]any) []byte {
	t.Helper()

	layers := make([]map[string]any, 0, len(cfg.Arrays))
	for _, a := range cfg.Arrays {
		layers = append(layers, map[string]any{
			"input_size":     a.InputSize,
			"condition_size": a.ConditionSize,
			"head_size":      a.HeadSize,
			"channels":       a.Channels,
			"kernel_size":    a.KernelSize,
			"dilations":      a.Dilations,
			"activation":     "Tanh",
			"gated":          a.Gated,
			"head_bias":      a.HeadBias,
		})
	}

	doc := map[string]any{
		"version":      "0.5.4",
		"architecture": "WaveNet",
		"config":       map[string]any{"layers": layers, "head": nil, "head_scale": 0.02},
		"weights":      blob,
	}
	for k, v := range extra {
		doc[k] = v
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func namLSTMFile(t *testing.T, layers, hidden int, blob []float32) []byte {
	t.Helper()

	data, err := json.Marshal(map[string]any{
		"version":      "0.5.4",
		"architecture": "LSTM",
		"config":       map[string]any{"num_layers": layers, "input_size": 1, "hidden_size": hidden},
		"weights":      blob,
	})
	require.NoError(t, err)
	return data
}

func quietLoader(t *testing.T, opts ...model.Option) *model.Loader {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	l, err := model.NewLoader(append([]model.Option{model.WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return l
}

func nanoConfig() wavenet.Config {
	return model.WaveNetTwoArray(4, 2,
		[]int{1, 2, 4, 8, 16, 32, 64},
		[]int{128, 256, 512, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512})
}

func tinyWaveNetConfig() wavenet.Config {
	return wavenet.Config{Arrays: []wavenet.LayerArrayConfig{{
		InputSize: 1, ConditionSize: 1, HeadSize: 1, Channels: 2,
		KernelSize: 2, Dilations: []int{1, 2}, Gated: true, HeadBias: true,
	}}}
}

func TestLoadNAMWaveNetMatchesNetwork(t *testing.T) {
	cfg := nanoConfig()
	blob := dyadicBlob(1, cfg.NumWeights())

	m, err := quietLoader(t).Load(namWaveNetFile(t, cfg, blob, nil), "nano.nam")
	require.NoError(t, err)

	require.Equal(t, model.FamilyWaveNet, m.Family())
	require.True(t, m.IsStatic())
	require.Equal(t, "wavenet-nano", m.Architecture())
	require.Equal(t, cfg.ReceptiveField(), m.ReceptiveField())
	require.Equal(t, cfg.NumWeights(), m.NumWeights())

	ref, err := wavenet.New(cfg)
	require.NoError(t, err)
	require.NoError(t, ref.SetWeights(blob))

	in := testutil.DeterministicNoise(2, 0.5, 700)
	want := make([]float32, len(in))
	got := make([]float32, len(in))
	ref.Process(in, want)
	m.Process(in, got)

	require.Equal(t, want, got)
}

func TestLoadNAMLSTMMatchesNetwork(t *testing.T) {
	cfg := lstm.Config{NumLayers: 2, HiddenSize: 8, InitialState: true}
	blob := dyadicBlob(3, cfg.NumWeights())

	m, err := quietLoader(t).Load(namLSTMFile(t, 2, 8, blob), "amp.nam")
	require.NoError(t, err)

	require.Equal(t, model.FamilyLSTM, m.Family())
	require.True(t, m.IsStatic())
	require.Equal(t, "lstm-2x8", m.Architecture())
	require.Zero(t, m.ReceptiveField())

	ref, err := lstm.New(cfg)
	require.NoError(t, err)
	require.NoError(t, ref.SetWeights(blob))

	in := testutil.DeterministicSine(220, 48000, 0.7, 300)
	want := make([]float32, len(in))
	got := make([]float32, len(in))
	ref.Process(in, want)
	m.Process(in, got)

	require.Equal(t, want, got)
}

func TestLoadModes(t *testing.T) {
	registered := nanoConfig()
	unregistered := tinyWaveNetConfig()

	tests := []struct {
		name       string
		mode       model.LoadMode
		cfg        wavenet.Config
		wantStatic bool
		wantErr    error
	}{
		{name: "prefer/registered", mode: model.LoadPreferStatic, cfg: registered, wantStatic: true},
		{name: "prefer/unregistered", mode: model.LoadPreferStatic, cfg: unregistered},
		{name: "require/registered", mode: model.LoadRequireStatic, cfg: registered, wantStatic: true},
		{name: "require/unregistered", mode: model.LoadRequireStatic, cfg: unregistered, wantErr: model.ErrNoMatch},
		{name: "dynamic/registered", mode: model.LoadDynamic, cfg: registered},
		{name: "dynamic/unregistered", mode: model.LoadDynamic, cfg: unregistered},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data := namWaveNetFile(t, tc.cfg, dyadicBlob(4, tc.cfg.NumWeights()), nil)

			m, err := quietLoader(t, model.WithLoadMode(tc.mode)).Load(data, "model.nam")
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Nil(t, m)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantStatic, m.IsStatic())
		})
	}
}

func TestStaticAndDynamicAgree(t *testing.T) {
	cfg := nanoConfig()
	data := namWaveNetFile(t, cfg, dyadicBlob(5, cfg.NumWeights()), nil)

	static, err := quietLoader(t).Load(data, "a.nam")
	require.NoError(t, err)
	dynamic, err := quietLoader(t, model.WithLoadMode(model.LoadDynamic)).Load(data, "a.nam")
	require.NoError(t, err)

	in := testutil.DeterministicNoise(6, 0.3, 500)
	a := make([]float32, len(in))
	b := make([]float32, len(in))
	static.Process(in, a)
	dynamic.Process(in, b)

	require.Equal(t, a, b)
}

func kerasFile(t *testing.T, cfg lstm.Config, fused []float32, inSkip int) []byte {
	t.Helper()

	H := cfg.HiddenSize
	g := 4 * H
	pos := 0
	layers := make([]map[string]any, 0, cfg.NumLayers+1)

	in := 1
	for range cfg.NumLayers {
		kernel := make([][]float32, in)
		for j := range kernel {
			kernel[j] = make([]float32, g)
		}
		rec := make([][]float32, H)
		for j := range rec {
			rec[j] = make([]float32, g)
		}

		for i := 0; i < g; i++ {
			for j := 0; j < in+H; j++ {
				v := fused[pos+i*(in+H)+j]
				if j < in {
					kernel[j][i] = v
				} else {
					rec[j-in][i] = v
				}
			}
		}
		pos += g * (in + H)

		bias := fused[pos : pos+g]
		pos += g

		layers = append(layers, map[string]any{
			"type":       "lstm",
			"activation": "tanh",
			"shape":      []any{nil, nil, H},
			"weights":    []any{kernel, rec, bias},
		})
		in = H
	}

	dense := make([][]float32, H)
	for j := range dense {
		dense[j] = []float32{fused[pos+j]}
	}
	layers = append(layers, map[string]any{
		"type":       "dense",
		"activation": "",
		"shape":      []any{nil, nil, 1},
		"weights":    []any{dense, []float32{fused[pos+H]}},
	})

	data, err := json.Marshal(map[string]any{"in_shape": []any{nil, nil, 1}, "in_skip": inSkip, "layers": layers})
	require.NoError(t, err)
	return data
}

func TestLoadKeras(t *testing.T) {
	cfg := lstm.Config{NumLayers: 2, HiddenSize: 12, InputSkip: true}
	fused := dyadicBlob(7, cfg.NumWeights())

	m, err := quietLoader(t).Load(kerasFile(t, cfg, fused, 1), "amp.json")
	require.NoError(t, err)
	require.Equal(t, "lstm-2x12", m.Architecture())
	require.True(t, m.IsStatic())

	ref, err := lstm.New(cfg)
	require.NoError(t, err)
	require.NoError(t, ref.SetWeights(fused))

	in := testutil.DeterministicNoise(8, 0.5, 256)
	want := make([]float32, len(in))
	got := make([]float32, len(in))
	ref.Process(in, want)
	m.Process(in, got)

	require.Equal(t, want, got)
}

func TestLoadCoreAudioML(t *testing.T) {
	const H = 8
	cfg := lstm.Config{NumLayers: 1, HiddenSize: H}
	fused := dyadicBlob(9, cfg.NumWeights())
	g := 4 * H

	ih := make([][]float32, g)
	hh := make([][]float32, g)
	for i := 0; i < g; i++ {
		row := fused[i*(1+H) : (i+1)*(1+H)]
		ih[i] = []float32{row[0]}
		hh[i] = append([]float32(nil), row[1:]...)
	}

	bias := fused[g*(1+H) : g*(1+H)+g]
	bih := make([]float32, g)
	bhh := make([]float32, g)
	for i, b := range bias {
		// Both halves stay on the dyadic grid so their sum is exact.
		bhh[i] = 0.125
		bih[i] = b - 0.125
	}

	head := fused[g*(1+H)+g:]

	data, err := json.Marshal(map[string]any{
		"model_data": map[string]any{
			"model": "SimpleRNN", "unit_type": "LSTM", "input_size": 1,
			"num_layers": 1, "hidden_size": H, "skip": 0, "bias_fl": true,
		},
		"state_dict": map[string]any{
			"rec.weight_ih_l0": ih,
			"rec.weight_hh_l0": hh,
			"rec.bias_ih_l0":   bih,
			"rec.bias_hh_l0":   bhh,
			"lin.weight":       [][]float32{head[:H]},
			"lin.bias":         []float32{head[H]},
		},
	})
	require.NoError(t, err)

	m, err := quietLoader(t).Load(data, "amp.json")
	require.NoError(t, err)
	require.Equal(t, "lstm-1x8", m.Architecture())

	ref, err := lstm.New(cfg)
	require.NoError(t, err)
	require.NoError(t, ref.SetWeights(fused))

	in := testutil.DeterministicSine(330, 48000, 0.5, 256)
	want := make([]float32, len(in))
	got := make([]float32, len(in))
	ref.Process(in, want)
	m.Process(in, got)

	require.Equal(t, want, got)
}

func TestLoadErrors(t *testing.T) {
	tiny := tinyWaveNetConfig()
	good := dyadicBlob(10, tiny.NumWeights())

	tests := []struct {
		name    string
		data    []byte
		file    string
		wantErr error
	}{
		{
			name:    "malformed json",
			data:    []byte(`{"architecture": `),
			file:    "x.nam",
			wantErr: model.ErrInvalidModel,
		},
		{
			name:    "unknown format",
			data:    []byte(`{"foo": 1}`),
			file:    "x.json",
			wantErr: model.ErrUnsupported,
		},
		{
			name:    "unsupported architecture",
			data:    []byte(`{"architecture": "ConvNet", "config": {}, "weights": []}`),
			file:    "x.nam",
			wantErr: model.ErrUnsupported,
		},
		{
			name:    "short blob",
			data:    namWaveNetFile(t, tiny, good[:len(good)-2], nil),
			file:    "x.nam",
			wantErr: weights.ErrShortBlob,
		},
		{
			name:    "long blob",
			data:    namWaveNetFile(t, tiny, append(append([]float32(nil), good...), 1), nil),
			file:    "x.nam",
			wantErr: weights.ErrLengthMismatch,
		},
		{
			name:    "keras without dense head",
			data:    []byte(`{"layers": [{"type": "lstm", "shape": [null, null, 2], "weights": []}, {"type": "gru"}]}`),
			file:    "x.json",
			wantErr: model.ErrUnsupported,
		},
		{
			name:    "keras null weight",
			data:    []byte(`{"layers": [{"type": "lstm", "shape": [null, null, 1], "weights": [[[0, null, 0, 0]], [[0, 0, 0, 0]], [0, 0, 0, 0]]}, {"type": "dense", "shape": [null, null, 1], "weights": [[[0]], [0]]}]}`),
			file:    "x.json",
			wantErr: weights.ErrInvalidValue,
		},
		{
			name:    "coreaudioml gru",
			data:    []byte(`{"model_data": {"model": "SimpleRNN", "unit_type": "GRU", "num_layers": 1, "hidden_size": 8}}`),
			file:    "x.json",
			wantErr: model.ErrUnsupported,
		},
		{
			name:    "coreaudioml missing tensor",
			data:    []byte(`{"model_data": {"model": "SimpleRNN", "unit_type": "LSTM", "num_layers": 1, "hidden_size": 2}, "state_dict": {}}`),
			file:    "x.json",
			wantErr: model.ErrInvalidModel,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := quietLoader(t).Load(tc.data, tc.file)
			require.ErrorIs(t, err, tc.wantErr)
			require.Nil(t, m)
		})
	}
}

func TestUnsupportedActivation(t *testing.T) {
	data := []byte(`{"architecture": "WaveNet", "weights": [], "config": {"head": null, "head_scale": 1,
		"layers": [{"input_size": 1, "condition_size": 1, "head_size": 1, "channels": 1,
		"kernel_size": 1, "dilations": [1], "activation": "ReLU", "gated": false, "head_bias": false}]}}`)

	_, err := quietLoader(t).Load(data, "relu.nam")
	require.ErrorIs(t, err, model.ErrUnsupported)
}

func TestMetadata(t *testing.T) {
	cfg := tinyWaveNetConfig()
	data := namWaveNetFile(t, cfg, dyadicBlob(11, cfg.NumWeights()), map[string]any{
		"sample_rate": 44100,
		"metadata": map[string]any{
			"name":            "Crunch",
			"loudness":        -20.5,
			"input_level_dbu": 18.0,
		},
	})

	m, err := quietLoader(t, model.WithInputLevelDBu(12)).Load(data, "crunch.nam")
	require.NoError(t, err)

	require.Equal(t, 44100.0, m.SampleRate())
	require.Equal(t, "Crunch", m.Metadata().Name)
	require.InDelta(t, -6.0, m.RecommendedInputDBAdjustment(), 1e-12)
	require.InDelta(t, 2.5, m.RecommendedOutputDBAdjustment(), 1e-12)

	plain, err := quietLoader(t).Load(namWaveNetFile(t, cfg, dyadicBlob(11, cfg.NumWeights()), nil), "plain.nam")
	require.NoError(t, err)

	require.Equal(t, model.DefaultSampleRate, plain.SampleRate())
	require.Zero(t, plain.RecommendedInputDBAdjustment())
	require.Zero(t, plain.RecommendedOutputDBAdjustment())
}

func TestLoadFile(t *testing.T) {
	cfg := tinyWaveNetConfig()
	path := filepath.Join(t.TempDir(), "tiny.nam")
	require.NoError(t, os.WriteFile(path, namWaveNetFile(t, cfg, dyadicBlob(12, cfg.NumWeights()), nil), 0o600))

	m, err := model.LoadFile(path, model.WithMaxBlockSize(16), model.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)
	require.Equal(t, 16, m.MaxBlockSize())
	require.False(t, m.IsStatic())

	_, err = model.LoadFile(filepath.Join(t.TempDir(), "missing.nam"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestProcessLongBuffer(t *testing.T) {
	cfg := nanoConfig()
	data := namWaveNetFile(t, cfg, dyadicBlob(13, cfg.NumWeights()), nil)

	whole, err := quietLoader(t, model.WithMaxBlockSize(32)).Load(data, "n.nam")
	require.NoError(t, err)
	pieces, err := quietLoader(t, model.WithMaxBlockSize(32)).Load(data, "n.nam")
	require.NoError(t, err)

	in := testutil.DeterministicNoise(14, 0.5, 1000)
	a := make([]float32, len(in))
	whole.Process(in, a)

	b := make([]float32, len(in))
	for off := 0; off < len(in); {
		n := min(7, len(in)-off)
		pieces.Process(in[off:off+n], b[off:off+n])
		off += n
	}

	require.InDeltaSlice(t, a, b, 1e-5)
}

func TestPrewarmThenReset(t *testing.T) {
	cfg := nanoConfig()
	data := namWaveNetFile(t, cfg, dyadicBlob(15, cfg.NumWeights()), nil)

	m, err := quietLoader(t).Load(data, "n.nam")
	require.NoError(t, err)

	in := testutil.DeterministicNoise(16, 0.5, 200)

	m.Prewarm()
	a := make([]float32, len(in))
	m.Process(in, a)

	block := m.MaxBlockSize()
	m.PrewarmSamples(core.PrewarmBlocks(m.ReceptiveField(), block)*block, block)
	b := make([]float32, len(in))
	m.Process(in, b)

	require.Equal(t, a, b)
	for _, v := range a {
		require.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
	}
}

func TestProcessDoesNotAllocate(t *testing.T) {
	cfg := nanoConfig()
	m, err := quietLoader(t).Load(namWaveNetFile(t, cfg, dyadicBlob(17, cfg.NumWeights()), nil), "n.nam")
	require.NoError(t, err)

	in := testutil.DeterministicNoise(18, 0.5, 256)
	out := make([]float32, len(in))

	allocs := testing.AllocsPerRun(20, func() { m.Process(in, out) })
	require.Zero(t, allocs)
}

func TestOptionsValidate(t *testing.T) {
	for _, opt := range []model.Option{
		model.WithMaxBlockSize(0),
		model.WithMaxBlockSize(4096),
		model.WithHistoryWindow(0),
		model.WithLoadMode(model.LoadMode(9)),
		model.WithRegistry(nil),
	} {
		_, err := model.NewLoader(opt)
		require.Error(t, err)
	}
}

func TestParseLoadMode(t *testing.T) {
	for _, mode := range []model.LoadMode{model.LoadPreferStatic, model.LoadRequireStatic, model.LoadDynamic} {
		got, err := model.ParseLoadMode(mode.String())
		require.NoError(t, err)
		require.Equal(t, mode, got)
	}

	_, err := model.ParseLoadMode("sometimes")
	require.Error(t, err)
}

func TestLoadRawRoundTrip(t *testing.T) {
	waveCfg := nanoConfig()
	lstmCfg := lstm.Config{NumLayers: 1, HiddenSize: 12, InitialState: true}

	tests := []struct {
		name string
		arch string
		data []byte
	}{
		{name: "wavenet", arch: "wavenet-nano", data: namWaveNetFile(t, waveCfg, dyadicBlob(20, waveCfg.NumWeights()), nil)},
		{name: "lstm", arch: "lstm-1x12", data: namLSTMFile(t, 1, 12, dyadicBlob(21, lstmCfg.NumWeights()))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := quietLoader(t)

			src, err := l.Load(tc.data, tc.arch+".nam")
			require.NoError(t, err)
			require.Equal(t, tc.arch, src.Architecture())

			a, ok := l.Registry().Lookup(tc.arch)
			require.True(t, ok)
			require.Len(t, src.Weights(), a.NumWeights())

			in := testutil.DeterministicNoise(22, 0.5, 1500)
			want := make([]float32, len(in))
			src.Process(in, want)

			// Dyadic weights are exact in half precision too.
			for _, enc := range []weights.Encoding{weights.Float32LE, weights.Float16LE} {
				raw, err := weights.EncodeRaw(src.Weights(), enc)
				require.NoError(t, err)

				m, err := l.LoadRaw(tc.arch, raw, enc)
				require.NoError(t, err)
				require.True(t, m.IsStatic())
				require.Equal(t, src.Family(), m.Family())
				require.Equal(t, model.DefaultSampleRate, m.SampleRate())
				require.Equal(t, src.Weights(), m.Weights())

				got := make([]float32, len(in))
				m.Process(in, got)
				require.Equal(t, want, got, enc.String())
			}
		})
	}
}

func TestLoadRawErrors(t *testing.T) {
	l := quietLoader(t)

	_, err := l.LoadRaw("lstm-9x9", make([]byte, 16), weights.Float32LE)
	require.ErrorIs(t, err, model.ErrNoMatch)

	_, err = l.LoadRaw("lstm-1x8", make([]byte, 7), weights.Float32LE)
	require.ErrorIs(t, err, model.ErrInvalidModel)
	require.ErrorIs(t, err, weights.ErrBadEncoding)

	_, err = l.LoadRaw("lstm-1x8", make([]byte, 40), weights.Float32LE)
	require.ErrorIs(t, err, weights.ErrShortBlob)

	_, err = l.LoadRaw("wavenet-nano", make([]byte, 2), weights.Encoding(9))
	require.ErrorIs(t, err, weights.ErrBadEncoding)
}
