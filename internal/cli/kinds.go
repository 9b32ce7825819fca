package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"automata/internal/app"
	"automata/internal/rule"
)

func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List triggers, actions and their settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				c := a.Registry().Catalog()
				return f.Result(c, func(w io.Writer) { printCatalog(w, c) })
			})
		},
	}
}

func printCatalog(w io.Writer, c rule.Catalog) {
	fmt.Fprintln(w, "Triggers:")
	for _, t := range c.Triggers {
		fmt.Fprintf(w, "  %s  %s\n", t.Kind, t.Description)
		printFields(w, t.Fields)
	}
	fmt.Fprintln(w, "Actions:")
	for _, a := range c.Actions {
		fmt.Fprintf(w, "  %s  %s\n", a.Kind, a.Description)
		printFields(w, a.Fields)
		triggers := make([]string, len(a.Triggers))
		for i, t := range a.Triggers {
			triggers[i] = string(t)
		}
		fmt.Fprintf(w, "      runs on: %s\n", strings.Join(triggers, ", "))
	}
}

func printFields(w io.Writer, fields []rule.Field) {
	for _, fd := range fields {
		var notes []string
		if fd.Required {
			notes = append(notes, "required")
		}
		if fd.Default != "" {
			notes = append(notes, "default "+fd.Default)
		}
		if len(fd.Options) > 0 {
			notes = append(notes, strings.Join(fd.Options, "|"))
		}
		line := fmt.Sprintf("      %s (%s)", fd.Key, fd.Kind)
		if len(notes) > 0 {
			line += ": " + strings.Join(notes, ", ")
		}
		fmt.Fprintln(w, line)
	}
}
