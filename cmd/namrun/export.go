package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/measure/compare"
	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/weights"
	"github.com/cwbudde/algo-nam/signal"
)

var errNotExportable = errors.New("model cannot be exported as a raw blob")

func newExportCmd(flags *globalFlags) *cobra.Command {
	var encName string

	cmd := &cobra.Command{
		Use:   "export MODEL OUT.bin",
		Short: "Write the weights of a registered model as a raw f32 or f16 blob",
		Long: "Writes the NAM-ordered weight blob of a model whose topology is in the\n" +
			"registry, then reloads the blob and reports the output difference.\n" +
			"Raw blobs carry no metadata; load them with the architecture name.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := weights.ParseEncoding(encName)
			if err != nil {
				return err
			}

			l, err := flags.loader()
			if err != nil {
				return err
			}

			m, err := l.LoadFile(args[0])
			if err != nil {
				return err
			}

			if !m.IsStatic() {
				return fmt.Errorf("%w: %s does not match a registered architecture", errNotExportable, m.Architecture())
			}

			arch, ok := l.Registry().Lookup(m.Architecture())
			if !ok {
				return fmt.Errorf("%w: %s not in registry", errNotExportable, m.Architecture())
			}

			w := m.Weights()
			if len(w) != arch.NumWeights() {
				return fmt.Errorf("%w: %s has %d weights, raw layout needs %d", errNotExportable, arch.Name, len(w), arch.NumWeights())
			}

			data, err := weights.EncodeRaw(w, enc)
			if err != nil {
				return err
			}

			if err := os.WriteFile(args[1], data, 0o644); err != nil {
				return err
			}

			raw, err := l.LoadRaw(arch.Name, data, enc)
			if err != nil {
				return fmt.Errorf("reload %s: %w", args[1], err)
			}

			maxAbs, err := exportError(m, raw)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "METRIC", "VALUE")
			table.AppendBulk([][]string{
				{"architecture", arch.Name},
				{"encoding", enc.String()},
				{"weights", strconv.Itoa(len(w))},
				{"bytes", strconv.Itoa(len(data))},
				{"max abs", fmt.Sprintf("%.3e", maxAbs)},
			})
			table.Render()

			return nil
		},
	}

	cmd.Flags().StringVar(&encName, "encoding", weights.Float32LE.String(), "sample encoding (f32, f16)")

	return cmd
}

// exportError runs the same sweep through both models and returns the
// largest absolute output difference.
func exportError(a, b *model.Model) (float64, error) {
	g, err := signal.NewGenerator(signal.WithSampleRate(a.SampleRate()))
	if err != nil {
		return 0, err
	}

	in, err := g.LogSweep(20, min(20000, a.SampleRate()*0.45), 0.5, g.Samples(0.25))
	if err != nil {
		return 0, err
	}

	a.Reset()
	b.Reset()

	outA := make([]float32, len(in))
	outB := make([]float32, len(in))
	a.Process(in, outA)
	b.Process(in, outB)

	return compare.MaxAbsDiff(outA, outB)
}
