package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"automata/internal/app"
	"automata/internal/rule"
	"automata/internal/storage"
	"automata/internal/templates"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran and failed (validation, install, not found)
	ExitCommandError = 2 // Bad invocation or the app could not start
)

// Error codes carried in JSON output and text error lines.
const (
	ErrCodeValidation = "E_VALIDATION"
	ErrCodeInstall    = "E_INSTALL"
	ErrCodeNotFound   = "E_NOT_FOUND"
	ErrCodeUsage      = "E_USAGE"
	ErrCodeInternal   = "E_INTERNAL"
)

// ExitError represents an error with a specific exit code. Commands print
// it through the formatter before returning it, so main only exits.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	ErrCode string // E_* code
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// GetExitCode extracts the exit code from an error. Errors that did not
// come from a command body (unknown flags, wrong arity) are command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// classify maps an application error to its exit code and E_* code.
func classify(err error) (int, string) {
	switch {
	case rule.IsValidation(err), errors.Is(err, rule.ErrUnknownTrigger), errors.Is(err, rule.ErrUnknownAction):
		return ExitFailure, ErrCodeValidation
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, templates.ErrUnknown):
		return ExitFailure, ErrCodeNotFound
	case errors.Is(err, app.ErrInstall), errors.Is(err, app.ErrUninstall):
		return ExitFailure, ErrCodeInstall
	default:
		return ExitFailure, ErrCodeInternal
	}
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Text errors and verbose lines go here so JSON stays clean
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (f *OutputFormatter) JSON() bool { return f.Format == "json" }

// Result prints data as JSON, or calls text to print it for humans.
func (f *OutputFormatter) Result(data any, text func(w io.Writer)) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Fail prints err and returns it as an *ExitError.
func (f *OutputFormatter) Fail(code int, errCode string, err error, details any) error {
	if f.JSON() {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: errCode, Message: err.Error(), Details: details},
		})
	} else {
		fmt.Fprintf(f.errWriter(), "Error [%s]: %v\n", errCode, err)
		if f.Verbose && details != nil {
			fmt.Fprintf(f.errWriter(), "Details: %v\n", details)
		}
	}
	return &ExitError{Code: code, ErrCode: errCode, Message: errCode, Err: err}
}

// FailErr classifies err and prints it.
func (f *OutputFormatter) FailErr(err error) error {
	code, errCode := classify(err)
	return f.Fail(code, errCode, err, nil)
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
