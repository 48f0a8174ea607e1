package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/registry/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected input, unknown id, or failed scenarios
	ExitCommandError = 2 // Command error (unreadable config, storage failure, etc.)
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// exitCodeFor maps a service error to an exit code: the caller's mistakes
// exit 1, everything else exits 2.
func exitCodeFor(err error) int {
	if domain.IsValidation(err) || domain.IsNotFound(err) {
		return ExitFailure
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // VALIDATION, NOT_FOUND, STORAGE, ...
	Message string      `json:"message"`           // human-readable message
	Field   string      `json:"field,omitempty"`   // rejected input field
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// text renders the human-readable form; nil falls back to fmt.Println(data).
func (f *OutputFormatter) Success(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if text != nil {
		text(f.Writer)
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error writes an error envelope without deciding the exit code.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	return f.writeError(&CLIError{Code: code, Message: message, Details: details})
}

// Fail reports a service error and returns the ExitError the command should
// return. Domain errors keep their code and field; anything else is reported
// as STORAGE.
func (f *OutputFormatter) Fail(op string, err error) error {
	e := &CLIError{Code: string(domain.ErrCodeStorage), Message: err.Error()}

	var derr *domain.Error
	if errors.As(err, &derr) {
		e.Code = string(derr.Code)
		e.Message = derr.Message
		e.Field = derr.Field
	}
	_ = f.writeError(e)

	return WrapExitError(exitCodeFor(err), op+" failed", err)
}

func (f *OutputFormatter) writeError(e *CLIError) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: e})
	}

	if e.Field != "" {
		fmt.Fprintf(f.Writer, "Error [%s] %s: %s\n", e.Code, e.Field, e.Message)
	} else {
		fmt.Fprintf(f.Writer, "Error [%s]: %s\n", e.Code, e.Message)
	}
	if f.Verbose && e.Details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", e.Details)
	}
	return nil
}

// VerboseLog writes a diagnostic line to the error writer when verbose mode
// is on. JSON output on Writer stays clean as long as ErrWriter is set.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when none is set.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
