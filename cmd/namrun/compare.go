package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/dsp/window"
	"github.com/cwbudde/algo-nam/measure/compare"
	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/activation"
	"github.com/cwbudde/algo-nam/signal"
)

func newCompareCmd(flags *globalFlags) *cobra.Command {
	var (
		against string
		winName string
		seconds float64
		opt     runOptions
	)

	cmd := &cobra.Command{
		Use:   "compare MODEL [IN.wav]",
		Short: "Compare the selected activation against another on the same input",
		Long: "Renders the input twice, once with --activation and once with --against, and\n" +
			"reports the difference. Without an input file a logarithmic sweep is used.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			refKind, err := activation.ParseKind(against)
			if err != nil {
				return err
			}

			win, err := window.Parse(winName)
			if err != nil {
				return err
			}

			l, err := flags.loader()
			if err != nil {
				return err
			}

			refLoader, err := flags.loader(model.WithActivation(refKind))
			if err != nil {
				return err
			}

			test, err := l.LoadFile(args[0])
			if err != nil {
				return err
			}

			ref, err := refLoader.LoadFile(args[0])
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
				checkSampleRate(test, c, args[1])
				in = c.samples
				source = filepath.Base(args[1])
			} else {
				g, err := signal.NewGenerator(signal.WithSampleRate(test.SampleRate()))
				if err != nil {
					return err
				}
				in, err = g.LogSweep(20, min(20000, test.SampleRate()*0.45), 0.5, g.Samples(seconds))
				if err != nil {
					return err
				}
			}

			a, err := render(cmd.Context(), ref, in, opt)
			if err != nil {
				return err
			}

			b, err := render(cmd.Context(), test, in, opt)
			if err != nil {
				return err
			}

			res, err := compare.Compare(a, b, compare.WithWindow(win))
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
			table.AppendBulk([][]string{
				{"input", source},
				{"reference", refKind.String()},
				{"test", flags.activation},
				{"window", win.String()},
				{"samples", strconv.Itoa(res.Samples)},
				{"rms", fmt.Sprintf("%.3e", res.RMS)},
				{"max abs", fmt.Sprintf("%.3e", res.MaxAbs)},
				{"snr", formatDB(res.SNR)},
				{"spectral deviation", formatDB(res.SpectralDeviation)},
			})
			table.Render()

			return nil
		},
	}

	cmd.Flags().StringVar(&against, "against", activation.KindExact.String(), "reference activation")
	cmd.Flags().StringVar(&winName, "window", window.TypeHann.String(), "analysis window for the spectral deviation")
	cmd.Flags().Float64Var(&seconds, "seconds", 2, "sweep length when no input file is given")
	addRunFlags(cmd, &opt)

	return cmd
}
