package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/tablegate/internal/catalog"
	"github.com/roach88/tablegate/internal/engine"
	"github.com/roach88/tablegate/internal/filter"
	"github.com/roach88/tablegate/internal/harness"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected request (rolled back batch, denied view, failed scenarios, invalid catalog)
	ExitCommandError = 2 // Command error (invalid paths, unreadable input, database not found, etc.)
)

// Error codes of runtime failures. Catalog load and compile failures use
// the catalog.ErrCode* codes.
const (
	ErrCodeWriteFailed  = "E007" // File write error
	ErrCodeInput        = "E008" // Unreadable or malformed input file
	ErrCodeDatabase     = "E009" // Database open or query error
	ErrCodePrivilege    = "E201" // Missing privilege
	ErrCodeInvalidBatch = "E202" // Malformed batch
	ErrCodeItemLimit    = "E203" // Too many items
	ErrCodeResolve      = "E204" // Unresolved value rule
	ErrCodeAssertion    = "E205" // Procedure assertion failed
	ErrCodeProcedure    = "E206" // Procedure statement failed
	ErrCodeFilter       = "E211" // Invalid filter table
	ErrCodeRule         = "E212" // Invalid filter rule
	ErrCodeTestFailed   = "E_TEST_FAILED"
)

var batchErrorCodes = map[string]string{
	harness.ErrorPrivilege:    ErrCodePrivilege,
	harness.ErrorInvalidBatch: ErrCodeInvalidBatch,
	harness.ErrorItemLimit:    ErrCodeItemLimit,
	harness.ErrorResolve:      ErrCodeResolve,
	harness.ErrorAssertion:    ErrCodeAssertion,
	harness.ErrorProcedure:    ErrCodeProcedure,
}

// errorCode maps a request failure to its error code.
func errorCode(err error) string {
	if be, ok := engine.AsBatchError(err); ok {
		return batchErrorCodes[harness.ClassifyError(be.Err)]
	}
	switch {
	case filter.IsInvalidRule(err):
		return ErrCodeRule
	case filter.IsInvalidFilter(err):
		return ErrCodeFilter
	case engine.IsPrivilegeError(err):
		return ErrCodePrivilege
	}
	var le *catalog.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return catalog.ErrCodeGeneric
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
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
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
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
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
	Token  string    `json:"token,omitempty"` // batch token, when a batch ran
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E201", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err under its error code and returns the ExitError the
// command should return.
func (f *OutputFormatter) Fail(exitCode int, err error, details any) error {
	code := errorCode(err)
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exitCode, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
