package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/internal/envconfig"
	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/activation"
)

type globalFlags struct {
	block      uint
	activation string
	loadMode   string
	inputDBu   float64
	verbose    bool
}

func (g *globalFlags) loaderOptions(logger *slog.Logger) ([]model.Option, error) {
	kind, err := activation.ParseKind(g.activation)
	if err != nil {
		return nil, err
	}

	mode, err := model.ParseLoadMode(g.loadMode)
	if err != nil {
		return nil, err
	}

	return []model.Option{
		model.WithMaxBlockSize(int(g.block)),
		model.WithActivation(kind),
		model.WithLoadMode(mode),
		model.WithInputLevelDBu(g.inputDBu),
		model.WithLogger(logger),
	}, nil
}

func (g *globalFlags) loader(extra ...model.Option) (*model.Loader, error) {
	opts, err := g.loaderOptions(slog.Default())
	if err != nil {
		return nil, err
	}
	return model.NewLoader(append(opts, extra...)...)
}

// appendEnvDocs adds the variables a command honours to its usage text.
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-16s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "namrun",
		Short:         "Run neural amp models over audio files",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := envconfig.LogLevel()
			if flags.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.UintVar(&flags.block, "block", envconfig.MaxBlockSize(), "internal block size")
	pf.StringVar(&flags.activation, "activation", envconfig.Activation().String(), "activation implementation (fast, exact, approx)")
	pf.StringVar(&flags.loadMode, "load-mode", envconfig.LoadMode().String(), "registry use (prefer-static, require-static, dynamic)")
	pf.Float64Var(&flags.inputDBu, "input-dbu", envconfig.InputLevelDBu(), "host full-scale input level in dBu")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log debug output")

	envVars := envconfig.AsMap()
	shared := []envconfig.EnvVar{
		envVars["NAM_DEBUG"],
		envVars["NAM_MAX_BLOCK"],
		envVars["NAM_ACTIVATION"],
		envVars["NAM_LOAD_MODE"],
		envVars["NAM_INPUT_DBU"],
	}

	processCmd := newProcessCmd(flags)
	batchCmd := newBatchCmd(flags)
	infoCmd := newInfoCmd(flags)
	compareCmd := newCompareCmd(flags)
	thdCmd := newTHDCmd(flags)
	loudnessCmd := newLoudnessCmd(flags)
	responseCmd := newResponseCmd(flags)
	benchCmd := newBenchCmd(flags)
	exportCmd := newExportCmd(flags)

	for _, cmd := range []*cobra.Command{processCmd, batchCmd, infoCmd, compareCmd, thdCmd, loudnessCmd, responseCmd, benchCmd, exportCmd} {
		switch cmd {
		case batchCmd:
			appendEnvDocs(cmd, append(shared, envVars["NAM_JOBS"]))
		default:
			appendEnvDocs(cmd, shared)
		}
	}

	rootCmd.AddCommand(processCmd, batchCmd, infoCmd, compareCmd, thdCmd, loudnessCmd, responseCmd, benchCmd, exportCmd, newEnvCmd())

	return rootCmd
}
