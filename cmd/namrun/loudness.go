package main

import (
	"math"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/measure/loudness"
	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/signal"
)

func newLoudnessCmd(flags *globalFlags) *cobra.Command {
	var (
		seconds float64
		opt     runOptions
	)

	cmd := &cobra.Command{
		Use:   "loudness MODEL [IN.wav]",
		Short: "Meter the output loudness of a model",
		Long: "Renders the input through the model and reports BS.1770 loudness next to the\n" +
			"declared metadata. Without an input file a logarithmic sweep at -12 dBFS is used.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := flags.loader()
			if err != nil {
				return err
			}

			m, err := l.LoadFile(args[0])
			if err != nil {
				return err
			}

			var in []float32
			source := "log sweep"
			if len(args) == 2 {
				c, err := readWAV(args[1])
				if err != nil {
					return err
				}
				checkSampleRate(m, c, args[1])
				in = c.samples
				source = filepath.Base(args[1])
			} else {
				g, err := signal.NewGenerator(signal.WithSampleRate(m.SampleRate()))
				if err != nil {
					return err
				}
				in, err = g.LogSweep(20, min(20000, m.SampleRate()*0.45), 0.25, g.Samples(seconds))
				if err != nil {
					return err
				}
			}

			out, err := render(cmd.Context(), m, in, opt)
			if err != nil {
				return err
			}

			meter, err := loudness.NewMeter(loudness.WithSampleRate(m.SampleRate()))
			if err != nil {
				return err
			}
			meter.Process(out)

			integrated := meter.Integrated()
			declared := "-"
			if lv := m.Metadata().Loudness; lv != nil {
				declared = formatDB(*lv)
			}

			table := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
			table.AppendBulk([][]string{
				{"input", source},
				{"seconds", strconv.FormatFloat(float64(len(in))/m.SampleRate(), 'f', 2, 64)},
				{"integrated", strconv.FormatFloat(integrated, 'f', 2, 64) + " LUFS"},
				{"sample peak", formatDB(peakDB(meter.Peak()))},
				{"declared loudness", declared},
				{"suggested output adjustment", formatDB(model.TargetLoudnessDB - integrated)},
			})
			table.Render()

			return nil
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 10, "sweep length when no input file is given")
	addRunFlags(cmd, &opt)

	return cmd
}

func peakDB(peak float32) float64 {
	if peak <= 0 {
		return loudness.Floor
	}
	return max(20*math.Log10(float64(peak)), loudness.Floor)
}
