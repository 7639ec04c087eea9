package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cwbudde/algo-vecmath/cpu"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-nam/internal/envconfig"
	"github.com/cwbudde/algo-nam/model"
	"github.com/cwbudde/algo-nam/nn/activation"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func formatDB(db float64) string {
	return strconv.FormatFloat(db, 'f', 2, 64) + " dB"
}

func modelRows(path string, m *model.Model) [][]string {
	meta := m.Metadata()
	name := meta.Name
	if name == "" {
		name = "-"
	}

	return [][]string{
		{"file", path},
		{"name", name},
		{"family", m.Family().String()},
		{"architecture", m.Architecture()},
		{"static", strconv.FormatBool(m.IsStatic())},
		{"weights", strconv.Itoa(m.NumWeights())},
		{"receptive field", strconv.Itoa(m.ReceptiveField())},
		{"sample rate", strconv.FormatFloat(m.SampleRate(), 'f', -1, 64)},
		{"max block size", strconv.Itoa(m.MaxBlockSize())},
		{"input adjustment", formatDB(m.RecommendedInputDBAdjustment())},
		{"output adjustment", formatDB(m.RecommendedOutputDBAdjustment())},
	}
}

func cpuFeatures() string {
	f := cpu.DetectFeatures()
	s := ""
	for _, c := range []struct {
		name string
		ok   bool
	}{
		{"sse2", f.HasSSE2},
		{"avx2", f.HasAVX2},
		{"neon", f.HasNEON},
	} {
		if c.ok {
			if s != "" {
				s += " "
			}
			s += c.name
		}
	}
	if s == "" {
		return "none"
	}
	return f.Architecture + ": " + s
}

func newInfoCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info MODEL...",
		Short: "Show model topology and metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := flags.loader()
			if err != nil {
				return err
			}

			for i, path := range args {
				m, err := l.LoadFile(path)
				if err != nil {
					return err
				}

				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}

				table := newTable(cmd.OutOrStdout(), "PROPERTY", "VALUE")
				table.AppendBulk(modelRows(path, m))
				table.Render()
			}

			fmt.Fprintln(cmd.OutOrStdout())
			table := newTable(cmd.OutOrStdout(), "RUNTIME", "VALUE")
			table.AppendBulk([][]string{
				{"activation", flags.activation},
				{"fast kernels", activation.Backend()},
				{"cpu", cpuFeatures()},
			})
			table.Render()

			return nil
		},
	}
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the NAM_* environment variables and their effective values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := envconfig.AsMap()
			names := []string{"NAM_DEBUG", "NAM_MAX_BLOCK", "NAM_ACTIVATION", "NAM_LOAD_MODE", "NAM_INPUT_DBU", "NAM_JOBS"}

			data := make([][]string, 0, len(names))
			for _, n := range names {
				v := vars[n]
				data = append(data, []string{v.Name, fmt.Sprintf("%v", v.Value), v.Description})
			}

			table := newTable(cmd.OutOrStdout(), "NAME", "VALUE", "DESCRIPTION")
			table.AppendBulk(data)
			table.Render()

			return nil
		},
	}
}
