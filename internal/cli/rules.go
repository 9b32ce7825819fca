package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"automata/internal/app"
	"automata/internal/rule"
)

// routeValues splits flat key=value input between the trigger and the
// action schema. A key neither side declares is a validation error.
func routeValues(reg *rule.Registry, tk rule.TriggerKind, ak rule.ActionKind, values map[string]string) (tv, av map[string]string, err error) {
	ts, ok := reg.Trigger(tk)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", rule.ErrUnknownTrigger, tk)
	}
	as, ok := reg.Action(ak)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", rule.ErrUnknownAction, ak)
	}
	tv, av = map[string]string{}, map[string]string{}
	for k, v := range values {
		switch {
		case hasField(ts.Fields, k):
			tv[k] = v
		case hasField(as.Fields(tk), k):
			av[k] = v
		default:
			return nil, nil, &rule.ValidationError{Variant: "rule", Field: k, Message: fmt.Sprintf("not a field of %s or %s", tk, ak)}
		}
	}
	return tv, av, nil
}

func hasField(fields []rule.Field, key string) bool {
	for _, f := range fields {
		if f.Key == key {
			return true
		}
	}
	return false
}

func buildRule(reg *rule.Registry, name string, tk rule.TriggerKind, ak rule.ActionKind, values map[string]string) (*rule.Rule, error) {
	tv, av, err := routeValues(reg, tk, ak, values)
	if err != nil {
		return nil, err
	}
	tc, ac, err := reg.DecodePair(tk, tv, ak, av)
	if err != nil {
		return nil, err
	}
	return rule.New(reg, name, tc, ac)
}

// saveRule creates r and reports it. An install failure still prints the
// saved rule so the user knows which id to retry.
func saveRule(cmd *cobra.Command, a *app.App, f *OutputFormatter, r *rule.Rule) error {
	err := a.CreateRule(cmd.Context(), r)
	if errors.Is(err, app.ErrInstall) {
		return f.Fail(ExitFailure, ErrCodeInstall,
			fmt.Errorf("saved as %s but not installed; run `automata enable %s` to retry: %w", r.ID, r.ID, err),
			map[string]any{"rule": r})
	}
	if err != nil {
		return f.FailErr(err)
	}
	return f.Result(r, func(w io.Writer) {
		fmt.Fprintf(w, "Created %s: %s\n", r.ID, r.Sentence())
		if !r.Enabled {
			fmt.Fprintln(w, "The rule is disabled; run `automata enable "+r.ID+"` to install it.")
		}
	})
}

func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		trigger, action, name string
		sets                  []string
		disabled              bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a rule and install it",
		Long: `Create a rule from a trigger, an action and their settings.

Settings are passed as --set key=value and go to whichever side declares the
key. Run "automata kinds" to list every trigger, action and field.`,
		Example: `  automata add --trigger fixed-schedule --action toggle-appearance --set time=22:00 --set mode=dark
  automata add --trigger fixed-interval --action show-notification --set minutes=45 --set message="Stand up"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return formatter(rootOpts, cmd).Fail(ExitCommandError, ErrCodeUsage, err, nil)
			}
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				r, err := buildRule(a.Registry(), name, rule.TriggerKind(trigger), rule.ActionKind(action), values)
				if err != nil {
					return f.FailErr(err)
				}
				r.Enabled = !disabled
				return saveRule(cmd, a, f, r)
			})
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "", "trigger kind (required)")
	cmd.Flags().StringVar(&action, "action", "", "action kind (required)")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "setting as key=value (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "save without installing")
	_ = cmd.MarkFlagRequired("trigger")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

type listView struct {
	Paused bool         `json:"paused"`
	Rules  []*rule.Rule `json:"rules"`
}

func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List rules",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				rules, err := a.ListRules(cmd.Context())
				if err != nil {
					return f.FailErr(err)
				}
				paused, err := a.Paused(cmd.Context())
				if err != nil {
					return f.FailErr(err)
				}
				if rules == nil {
					rules = []*rule.Rule{}
				}
				return f.Result(listView{Paused: paused, Rules: rules}, func(w io.Writer) {
					if paused {
						fmt.Fprintln(w, "All automations are paused (automata resume).")
					}
					if len(rules) == 0 {
						fmt.Fprintln(w, "No rules yet. Try: automata suggest \"dark mode at 10pm\"")
						return
					}
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tSTATE\tTRIGGER\tACTION\tNAME")
					for _, r := range rules {
						state := "enabled"
						if !r.Enabled {
							state = "disabled"
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, state, r.Trigger.Kind(), r.Action.Kind(), r.DisplayName())
					}
					_ = tw.Flush()
				})
			})
		},
	}
}

func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a rule, its compiled units and their next runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				d, err := a.Describe(cmd.Context(), args[0])
				if err != nil {
					return f.FailErr(err)
				}
				return f.Result(d, func(w io.Writer) { printDetail(w, d) })
			})
		},
	}
}

func printDetail(w io.Writer, d *app.Detail) {
	r := d.Rule
	state := "enabled"
	if !r.Enabled {
		state = "disabled"
	}
	if d.Paused && r.Enabled {
		state += " (paused)"
	}
	lastRun := "never"
	if r.LastRunAt != nil {
		lastRun = r.LastRunAt.Local().Format(time.DateTime)
	}
	fmt.Fprintf(w, "ID:       %s\n", r.ID)
	if r.Name != "" {
		fmt.Fprintf(w, "Name:     %s\n", r.Name)
	}
	fmt.Fprintf(w, "Rule:     %s\n", d.Sentence)
	fmt.Fprintf(w, "State:    %s\n", state)
	fmt.Fprintf(w, "Created:  %s\n", r.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(w, "Last run: %s\n", lastRun)
	fmt.Fprintln(w, "Units:")
	for _, u := range d.Units {
		installed := "not installed"
		if u.Installed {
			installed = "installed"
		}
		fmt.Fprintf(w, "  %s [%s, %s]\n", u.Label, u.Role, installed)
		fmt.Fprintf(w, "    when:   %s\n", u.Description)
		fmt.Fprintf(w, "    runs:   %s\n", strings.Join(u.Program, " "))
		if len(u.NextRuns) > 0 {
			next := make([]string, len(u.NextRuns))
			for i, t := range u.NextRuns {
				next[i] = t.Local().Format("Mon Jan 2 15:04")
			}
			fmt.Fprintf(w, "    next:   %s\n", strings.Join(next, ", "))
		}
	}
}

func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		trigger, action, name string
		sets                  []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a rule's trigger, action, settings or name",
		Long: `Change a rule in place and reinstall it.

Switching the trigger keeps the action when it can run on the new trigger;
otherwise the action resets to the first compatible one with default
settings. Switching the action does the same for the trigger.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseSets(sets)
			if err != nil {
				return formatter(rootOpts, cmd).Fail(ExitCommandError, ErrCodeUsage, err, nil)
			}
			nameSet := cmd.Flags().Changed("name")
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				r, err := a.GetRule(cmd.Context(), args[0])
				if err != nil {
					return f.FailErr(err)
				}
				reset, err := editRule(a.Registry(), r, rule.TriggerKind(trigger), rule.ActionKind(action), values)
				if err != nil {
					return f.FailErr(err)
				}
				if nameSet {
					r.Name = strings.TrimSpace(name)
				}
				if err := a.UpdateRule(cmd.Context(), r); err != nil {
					return f.FailErr(err)
				}
				return f.Result(r, func(w io.Writer) {
					if reset != "" {
						fmt.Fprintf(w, "Note: %s was reset to defaults to stay compatible.\n", reset)
					}
					fmt.Fprintf(w, "Updated %s: %s\n", r.ID, r.Sentence())
				})
			})
		},
	}
	cmd.Flags().StringVar(&trigger, "trigger", "", "new trigger kind")
	cmd.Flags().StringVar(&action, "action", "", "new action kind")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "setting as key=value (repeatable)")
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	return cmd
}

// editRule applies kind switches with the registry's edit rule, then merges
// values over the current settings and decodes strictly. It names the side
// that was reset, if any.
func editRule(reg *rule.Registry, r *rule.Rule, tk rule.TriggerKind, ak rule.ActionKind, values map[string]string) (string, error) {
	var reset string
	if tk != "" && tk != r.Trigger.Kind() {
		ts, ok := reg.Trigger(tk)
		if !ok {
			return "", fmt.Errorf("%w: %q", rule.ErrUnknownTrigger, tk)
		}
		if reg.SetTrigger(r, ts.Preview(nil)) {
			reset = "action"
		}
	}
	if ak != "" && (r.Action == nil || ak != r.Action.Kind()) {
		as, ok := reg.Action(ak)
		if !ok {
			return "", fmt.Errorf("%w: %q", rule.ErrUnknownAction, ak)
		}
		if reg.SetAction(r, as.Preview(nil, r.Trigger.Kind())) {
			reset = "trigger"
		}
	}
	if r.Action == nil {
		return reset, &rule.ValidationError{Variant: "rule", Message: "no action can run on " + string(r.Trigger.Kind())}
	}

	cur := r.Trigger.Kind()
	as, _ := reg.Action(r.Action.Kind())
	tv, av, err := routeValues(reg, cur, r.Action.Kind(), values)
	if err != nil {
		return reset, err
	}
	mergedT := r.Trigger.Values()
	for k, v := range tv {
		mergedT[k] = v
	}
	mergedA := as.Values(r.Action, cur)
	for k, v := range av {
		mergedA[k] = v
	}
	tc, ac, err := reg.DecodePair(cur, mergedT, r.Action.Kind(), mergedA)
	if err != nil {
		return reset, err
	}
	r.Trigger, r.Action = tc, ac
	return reset, nil
}

func idCommand(rootOpts *RootOptions, use, short string, run func(cmd *cobra.Command, a *app.App, f *OutputFormatter, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				return run(cmd, a, f, args[0])
			})
		},
	}
}

func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := idCommand(rootOpts, "remove", "Uninstall a rule and delete it", func(cmd *cobra.Command, a *app.App, f *OutputFormatter, id string) error {
		if err := a.RemoveRule(cmd.Context(), id); err != nil {
			return f.FailErr(err)
		}
		return f.Result(map[string]string{"removed": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Removed %s\n", id)
		})
	})
	cmd.Aliases = []string{"rm"}
	return cmd
}

func NewEnableCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "enable", "Enable a rule and register its units", func(cmd *cobra.Command, a *app.App, f *OutputFormatter, id string) error {
		r, err := a.EnableRule(cmd.Context(), id)
		if err != nil {
			return f.FailErr(err)
		}
		return f.Result(r, func(w io.Writer) {
			fmt.Fprintf(w, "Enabled %s: %s\n", r.ID, r.Sentence())
		})
	})
}

func NewDisableCommand(rootOpts *RootOptions) *cobra.Command {
	return idCommand(rootOpts, "disable", "Disable a rule; its files stay on disk", func(cmd *cobra.Command, a *app.App, f *OutputFormatter, id string) error {
		r, err := a.DisableRule(cmd.Context(), id)
		if err != nil {
			return f.FailErr(err)
		}
		return f.Result(r, func(w io.Writer) {
			fmt.Fprintf(w, "Disabled %s\n", r.ID)
		})
	})
}

func NewMarkRunCommand(rootOpts *RootOptions) *cobra.Command {
	var at string
	cmd := idCommand(rootOpts, "mark-run", "Record that a rule just ran", func(cmd *cobra.Command, a *app.App, f *OutputFormatter, id string) error {
		var when time.Time
		if at != "" {
			t, err := time.Parse(time.RFC3339, at)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeUsage, fmt.Errorf("invalid --at: %w", err), nil)
			}
			when = t
		}
		if err := a.MarkRun(cmd.Context(), id, when); err != nil {
			return f.FailErr(err)
		}
		return f.Result(map[string]string{"marked": id}, func(w io.Writer) {
			fmt.Fprintf(w, "Marked %s as run\n", id)
		})
	})
	cmd.Hidden = true
	cmd.Flags().StringVar(&at, "at", "", "run time (RFC 3339); defaults to now")
	return cmd
}
