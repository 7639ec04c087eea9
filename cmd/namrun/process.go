package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-nam/internal/envconfig"
)

func addRunFlags(cmd *cobra.Command, opt *runOptions) {
	cmd.Flags().IntVar(&opt.hostBuffer, "buffer", 256, "host buffer size in samples")
	cmd.Flags().BoolVar(&opt.prewarm, "prewarm", true, "settle the model on silence before processing")
	cmd.Flags().BoolVar(&opt.applyGain, "gain", false, "apply the model's recommended input and output gain")
}

func newProcessCmd(flags *globalFlags) *cobra.Command {
	var opt runOptions

	cmd := &cobra.Command{
		Use:   "process MODEL IN.wav OUT.wav",
		Short: "Process one WAV file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := flags.loader()
			if err != nil {
				return err
			}

			m, err := l.LoadFile(args[0])
			if err != nil {
				return err
			}

			in, err := readWAV(args[1])
			if err != nil {
				return err
			}
			checkSampleRate(m, in, args[1])

			start := time.Now()
			out, err := render(cmd.Context(), m, in.samples, opt)
			if err != nil {
				return err
			}
			slog.Info("processed", "file", args[1], "samples", len(out), "elapsed", time.Since(start))

			return writeWAV(args[2], &clip{samples: out, sampleRate: in.sampleRate, bitDepth: in.bitDepth})
		},
	}

	addRunFlags(cmd, &opt)

	return cmd
}

func newBatchCmd(flags *globalFlags) *cobra.Command {
	var (
		opt  runOptions
		jobs uint
	)

	cmd := &cobra.Command{
		Use:   "batch MODEL OUTDIR IN.wav...",
		Short: "Process many WAV files concurrently, one model instance per worker",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			l, err := flags.loader()
			if err != nil {
				return err
			}

			// Fail early on a bad model instead of once per file.
			if _, err := l.Load(data, filepath.Base(args[0])); err != nil {
				return err
			}

			outDir := args[1]
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(int(max(jobs, 1)))

			for _, path := range args[2:] {
				g.Go(func() error {
					m, err := l.Load(data, filepath.Base(args[0]))
					if err != nil {
						return err
					}

					in, err := readWAV(path)
					if err != nil {
						return err
					}
					checkSampleRate(m, in, path)

					out, err := render(ctx, m, in.samples, opt)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}

					dst := filepath.Join(outDir, filepath.Base(path))
					if err := writeWAV(dst, &clip{samples: out, sampleRate: in.sampleRate, bitDepth: in.bitDepth}); err != nil {
						return err
					}

					slog.Info("processed", "file", path, "output", dst)
					return nil
				})
			}

			return g.Wait()
		},
	}

	addRunFlags(cmd, &opt)
	cmd.Flags().UintVarP(&jobs, "jobs", "j", envconfig.Jobs(), "files processed concurrently")

	return cmd
}
