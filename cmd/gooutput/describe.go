package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/logstash-plugins/go-output-example/internal/config"
	"github.com/logstash-plugins/go-output-example/internal/plugin"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe [output]",
		Short: "Show the settings an output recognizes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := config.DefaultOutput
			if len(args) == 1 {
				name = args[0]
			}
			reg, ok := plugin.DefaultRegistry.Lookup(name)
			if !ok {
				return fmt.Errorf("describe: no output registered as %q", name)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s: %s\n\n", reg.Name, reg.Description)
			fmt.Fprintln(w, settingsTable(reg.Schema))
			return nil
		},
	}
}

func settingsTable(schema []config.Setting) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("NAME", "TYPE", "DEFAULT", "REQUIRED")
	for _, s := range schema {
		t.Row(s.Name(), s.Type(), formatDefault(s.Default()), strconv.FormatBool(s.Required()))
	}
	return t.String()
}

func formatDefault(v any) string {
	if s, ok := v.(string); ok {
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}

func newPluginsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "List registered outputs",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range plugin.DefaultRegistry.Names() {
				reg, _ := plugin.DefaultRegistry.Lookup(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", name, reg.Description)
			}
		},
	}
}
