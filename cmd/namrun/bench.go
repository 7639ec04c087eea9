package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/signal"
)

func newBenchCmd(flags *globalFlags) *cobra.Command {
	var (
		seconds float64
		buffer  int
	)

	cmd := &cobra.Command{
		Use:   "bench MODEL",
		Short: "Measure processing speed relative to real time",
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

			g, err := signal.NewGenerator(signal.WithSampleRate(m.SampleRate()))
			if err != nil {
				return err
			}

			in, err := g.WhiteNoise(0.5, g.Samples(seconds))
			if err != nil {
				return err
			}

			if buffer < 1 {
				return fmt.Errorf("buffer must be positive: %d", buffer)
			}

			out := make([]float32, len(in))
			m.Prewarm()

			start := time.Now()
			for off := 0; off < len(in); off += buffer {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				end := min(off+buffer, len(in))
				m.Process(in[off:end], out[off:end])
			}
			elapsed := time.Since(start)

			audio := time.Duration(float64(len(in)) / m.SampleRate() * float64(time.Second))

			table := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
			table.AppendBulk([][]string{
				{"architecture", m.Architecture()},
				{"activation", flags.activation},
				{"buffer", strconv.Itoa(buffer)},
				{"audio", audio.String()},
				{"elapsed", elapsed.Round(time.Microsecond).String()},
				{"real-time factor", fmt.Sprintf("%.1fx", audio.Seconds()/elapsed.Seconds())},
				{"ns/sample", fmt.Sprintf("%.1f", float64(elapsed.Nanoseconds())/float64(len(in)))},
			})
			table.Render()

			return nil
		},
	}

	cmd.Flags().Float64Var(&seconds, "seconds", 10, "seconds of audio to process")
	cmd.Flags().IntVar(&buffer, "buffer", 128, "host buffer size in samples")

	return cmd
}
