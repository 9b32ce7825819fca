package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"automata/internal/app"
	"automata/internal/suggest"
)

func NewSuggestCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		accept int
		name   string
		sets   []string
	)
	cmd := &cobra.Command{
		Use:   "suggest <text...>",
		Short: "Turn a plain-language description into rule suggestions",
		Example: `  automata suggest "dark mode at 10pm"
  automata suggest "remind me to stretch every 45 minutes" --accept 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return formatter(rootOpts, cmd).Fail(ExitCommandError, ErrCodeUsage, err, nil)
			}
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				res := a.Suggest(strings.Join(args, " "))
				if accept == 0 {
					return f.Result(res, func(w io.Writer) { printSuggestions(w, res) })
				}
				if accept < 0 || accept > len(res.Suggestions) {
					return f.Fail(ExitCommandError, ErrCodeUsage,
						fmt.Errorf("--accept %d: there are %d suggestion(s)", accept, len(res.Suggestions)), nil)
				}
				r, err := res.Suggestions[accept-1].Accept(a.Registry(), name, values)
				if err != nil {
					return f.FailErr(err)
				}
				return saveRule(cmd, a, f, r)
			})
		},
	}
	cmd.Flags().IntVar(&accept, "accept", 0, "create the Nth suggestion (1-based)")
	cmd.Flags().StringVar(&name, "name", "", "display name for the accepted rule")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "fill or replace a setting as key=value (repeatable)")
	return cmd
}

func printSuggestions(w io.Writer, res suggest.Result) {
	if len(res.Suggestions) == 0 && len(res.Templates) == 0 {
		fmt.Fprintln(w, "No suggestions. Run `automata kinds` to build a rule by hand.")
		return
	}
	for i, s := range res.Suggestions {
		fmt.Fprintf(w, "%d. %s  (%s + %s, score %.2f)\n", i+1, s.Summary, s.Trigger, s.Action, s.Score)
		if len(s.Missing) > 0 {
			fmt.Fprintf(w, "   needs: %s\n", strings.Join(s.Missing, ", "))
		}
	}
	if len(res.Templates) > 0 {
		fmt.Fprintln(w, "Related templates:")
		for _, t := range res.Templates {
			fmt.Fprintf(w, "  %s  %s\n", t.ID, t.Name)
		}
	}
}
