package main

import (
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/measure/response"
	"github.com/cwbudde/algo-nam/nn/core"
)

// thirdOctaves returns the nominal third-octave centers inside [lo, hi].
func thirdOctaves(lo, hi float64) []float64 {
	var out []float64
	for i := -20; i <= 13; i++ {
		f := 1000 * math.Pow(2, float64(i)/3)
		if f >= lo && f <= hi {
			out = append(out, f)
		}
	}
	return out
}

func newResponseCmd(flags *globalFlags) *cobra.Command {
	var (
		cfg     response.Config
		levelDB float64
	)

	cmd := &cobra.Command{
		Use:   "response MODEL",
		Short: "Measure the frequency response and harmonic levels of a model with a sweep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := flags.loader()
			if err != nil {
				return err
			}

			m, err := l.LoadFile(args[0])
			if err != nil {
				return err
			}

			cfg.SampleRate = m.SampleRate()
			cfg.Amplitude = float32(core.DBToLinear(levelDB))
			cfg.Tail = max(m.ReceptiveField(), 4096)

			r, err := response.Measure(m, cfg)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "FREQUENCY", "GAIN")
			lo, hi := r.Band()
			for _, f := range thirdOctaves(lo, hi) {
				table.Append([]string{strconv.FormatFloat(f, 'f', 0, 64) + " Hz", formatDB(r.MagnitudeDB(f))})
			}
			table.Render()

			table = newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
			table.Append([]string{"latency", strconv.Itoa(r.Latency()) + " samples"})
			for i, h := range r.Harmonics {
				table.Append([]string{"h" + strconv.Itoa(i+2), formatDB(h)})
			}
			table.Render()

			return nil
		},
	}

	cmd.Flags().Float64Var(&levelDB, "level", -24, "sweep level in dBFS")
	cmd.Flags().Float64Var(&cfg.Seconds, "seconds", 2, "sweep length")
	cmd.Flags().Float64Var(&cfg.StartHz, "start", 20, "sweep start frequency in Hz")
	cmd.Flags().Float64Var(&cfg.EndHz, "end", 20000, "sweep end frequency in Hz")
	cmd.Flags().IntVar(&cfg.MaxHarmonics, "harmonics", 5, "highest harmonic order to separate")

	return cmd
}
