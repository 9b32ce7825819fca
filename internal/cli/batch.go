package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"automata/internal/app"
	"automata/internal/lifecycle"
)

type batchItem struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type batchView struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Results   []batchItem `json:"results"`
}

func newBatchView(res lifecycle.BatchResult) batchView {
	v := batchView{Total: res.Total, Succeeded: res.SuccessCount, Failed: res.FailureCount, Results: []batchItem{}}
	for _, r := range res.Results {
		v.Results = append(v.Results, batchItem{Name: r.Name, Success: r.Success, Message: r.Message})
	}
	return v
}

// reportBatch prints a batch outcome. Any failed step makes the command fail
// after the full report is printed.
func reportBatch(f *OutputFormatter, verb string, res lifecycle.BatchResult) error {
	v := newBatchView(res)
	if res.FailureCount > 0 {
		var errs []error
		for _, r := range res.Results {
			if r.Error != nil {
				errs = append(errs, r.Error)
			}
		}
		return f.Fail(ExitFailure, ErrCodeInstall,
			fmt.Errorf("%s: %d of %d steps failed: %w", verb, res.FailureCount, res.Total, errors.Join(errs...)), v)
	}
	return f.Result(v, func(w io.Writer) {
		for _, r := range res.Results {
			f.VerboseLog("%s", r.Message)
		}
		fmt.Fprintf(w, "%s: %d ok\n", verb, res.SuccessCount)
	})
}

func NewPauseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Unregister every enabled rule until resume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				n, err := a.Pause(cmd.Context())
				if err != nil {
					return f.FailErr(err)
				}
				return f.Result(map[string]int{"paused": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Paused %d rule(s). Run `automata resume` to bring them back.\n", n)
				})
			})
		},
	}
}

func NewResumeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Re-register the rules paused by pause",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				n, err := a.Resume(cmd.Context())
				if err != nil {
					return f.FailErr(err)
				}
				return f.Result(map[string]int{"resumed": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Resumed %d rule(s).\n", n)
				})
			})
		},
	}
}

func NewRemoveAllCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove-all",
		Short: "Uninstall every automata unit and script",
		Long: `Uninstall every unit carrying the automata label prefix, including
orphans no rule owns, and delete every generated script. Stored rules are
kept; "automata sync" installs the enabled ones again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return formatter(rootOpts, cmd).Fail(ExitCommandError, ErrCodeUsage,
					errors.New("remove-all uninstalls every unit; pass --yes to confirm"), nil)
			}
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				res, err := a.RemoveAll(cmd.Context())
				if err != nil {
					return f.FailErr(err)
				}
				return reportBatch(f, "remove-all", res)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm removal")
	return cmd
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reinstall missing units and remove orphaned ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
				res, err := a.Sync(cmd.Context())
				if err != nil {
					return f.FailErr(err)
				}
				return reportBatch(f, "sync", res)
			})
		},
	}
}
