package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"automata/internal/app"
	"automata/internal/templates"
)

type templateView struct {
	templates.Template
	Blank []string `json:"blank,omitempty"`
}

func NewTemplatesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List built-in rule templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				groups := a.Templates().Grouped()
				var all []templateView
				for _, g := range groups {
					for _, t := range g.Templates {
						all = append(all, templateView{Template: t, Blank: t.Blank()})
					}
				}
				return f.Result(all, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					for _, g := range groups {
						fmt.Fprintf(tw, "%s\n", g.Category.Title())
						for _, t := range g.Templates {
							needs := ""
							if blank := t.Blank(); len(blank) > 0 {
								needs = "needs " + strings.Join(blank, ", ")
							}
							fmt.Fprintf(tw, "  %s\t%s\t%s\n", t.ID, t.Subtitle, needs)
						}
					}
					_ = tw.Flush()
				})
			})
		},
	}
	cmd.AddCommand(newTemplateAddCommand(rootOpts))
	return cmd
}

func newTemplateAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		name     string
		sets     []string
		disabled bool
	)
	cmd := &cobra.Command{
		Use:     "add <template-id>",
		Short:   "Create a rule from a template",
		Example: `  automata templates add morning-workspace --set apps="Mail, Calendar" --set time=08:30`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return formatter(rootOpts, cmd).Fail(ExitCommandError, ErrCodeUsage, err, nil)
			}
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				r, err := a.InstantiateTemplate(args[0], values)
				if err != nil {
					return f.FailErr(err)
				}
				if cmd.Flags().Changed("name") {
					r.Name = strings.TrimSpace(name)
				}
				r.Enabled = !disabled
				return saveRule(cmd, a, f, r)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the template name)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "fill or replace a setting as key=value (repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "save without installing")
	return cmd
}
