package cli

import (
	"github.com/spf13/cobra"

	"automata/internal/app"
)

func runApp(rootOpts *RootOptions, cmd *cobra.Command, opts app.RunOptions) error {
	return withApp(rootOpts, cmd, func(a *app.App, f *OutputFormatter) error {
		f.VerboseLog("running (serve=%v watch=%v)", opts.Serve, opts.Watch)
		if err := a.Run(cmd.Context(), opts); err != nil {
			return f.Fail(ExitFailure, ErrCodeInternal, err, nil)
		}
		return nil
	})
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API on api.addr until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, app.RunOptions{Serve: true, Watch: watch})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "also reload config and reconcile units periodically")
	return cmd
}

func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Reload config on change and keep installed units in sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(rootOpts, cmd, app.RunOptions{Watch: true})
		},
	}
}
