// Package cli is the automata command line, built with cobra.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"automata/internal/app"
	"automata/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	// Open builds the application. Tests replace it.
	Open func(opts *RootOptions) (*app.App, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// DefaultConfigPath is ~/.automata/config.yaml, or config.yaml when the
// home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".automata", "config.yaml")
}

func openApp(opts *RootOptions) (*app.App, error) {
	if opts.Verbose && os.Getenv(config.EnvLogLevel) == "" {
		_ = os.Setenv(config.EnvLogLevel, "debug")
	}
	return app.New(opts.ConfigPath)
}

// NewRootCommand creates the root command. opts may be nil.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.Open == nil {
		opts.Open = openApp
	}

	cmd := &cobra.Command{
		Use:   "automata",
		Short: "Personal automation rules compiled to launchd or systemd jobs",
		Long: `automata turns "when <trigger>, do <action>" rules into native scheduler
jobs and manages their lifecycle: install, enable, disable, pause and remove.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", DefaultConfigPath(), "config file (json or yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(
		NewAddCommand(opts),
		NewListCommand(opts),
		NewShowCommand(opts),
		NewEditCommand(opts),
		NewRemoveCommand(opts),
		NewEnableCommand(opts),
		NewDisableCommand(opts),
		NewPauseCommand(opts),
		NewResumeCommand(opts),
		NewRemoveAllCommand(opts),
		NewSyncCommand(opts),
		NewSuggestCommand(opts),
		NewTemplatesCommand(opts),
		NewKindsCommand(opts),
		NewServeCommand(opts),
		NewWatchCommand(opts),
		NewMarkRunCommand(opts),
	)
	return cmd
}

func formatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// withApp opens the app for one command and closes it afterwards. A failed
// open is a command error.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(a *app.App, f *OutputFormatter) error) error {
	f := formatter(opts, cmd)
	a, err := opts.Open(opts)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInternal, err, nil)
	}
	defer a.Close()
	return fn(a, f)
}

// parseSets turns repeated --set k=v flags into a map.
func parseSets(sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", s)
		}
		out[k] = v
	}
	return out, nil
}
