package main

import (
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/nn/core"
	"github.com/cwbudde/algo-nam/measure/thd"
)

func newTHDCmd(flags *globalFlags) *cobra.Command {
	var (
		cfg     thd.Config
		levelDB float64
	)

	cmd := &cobra.Command{
		Use:   "thd MODEL",
		Short: "Measure the harmonic distortion of a model on a sine",
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
			cfg.Settle = max(m.ReceptiveField(), cfg.FFTSize)

			res, err := thd.Measure(m, cfg)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
			table.AppendBulk([][]string{
				{"fundamental", strconv.FormatFloat(res.Fundamental, 'f', 2, 64) + " Hz"},
				{"input level", formatDB(levelDB)},
				{"gain", formatDB(res.Gain(cfg.Amplitude))},
				{"thd", fmt.Sprintf("%.3f%% (%s)", res.THD*100, formatDB(res.THDdB()))},
				{"thd+n", fmt.Sprintf("%.3f%% (%s)", res.THDN*100, formatDB(res.THDNdB()))},
				{"odd", formatDB(20 * math.Log10(res.OddHD))},
				{"even", formatDB(20 * math.Log10(res.EvenHD))},
			})
			for i, h := range res.Harmonics {
				table.Append([]string{"h" + strconv.Itoa(i+2), formatDB(20 * math.Log10(h))})
			}
			table.Render()

			return nil
		},
	}

	cmd.Flags().Float64Var(&cfg.Frequency, "freq", 1000, "test tone frequency in Hz")
	cmd.Flags().Float64Var(&levelDB, "level", -12, "test tone level in dBFS")
	cmd.Flags().IntVar(&cfg.FFTSize, "fft", 8192, "analysis length, a power of two")
	cmd.Flags().IntVar(&cfg.MaxHarmonics, "harmonics", 9, "number of harmonics to report")

	return cmd
}
