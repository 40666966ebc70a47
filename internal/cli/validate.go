package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tablegate/internal/catalog"
)

// ValidationIssue is one catalog problem.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool              `json:"valid"`
	Procedures int               `json:"procedures"`
	Errors     []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Validate the procedure catalog",
		Long: `Validate the CUE procedure catalog without writing anything.

Checks syntax, parameter types and directions, statement parameter
references and duplicate names. The directory defaults to the configured
catalog.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.config().Catalog
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, errs := catalog.Load(dir)
	if loaded == nil {
		code, message := loadErrorParts(errs[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)
	for _, name := range loaded.Catalog.Names() {
		formatter.VerboseLog("Validated procedure: %s", name)
	}

	if len(errs) > 0 {
		return outputValidationErrors(formatter, toIssues(errs))
	}
	return outputValidateSuccess(formatter, loaded.Catalog.Len())
}

// loadErrorParts extracts the code and message of a catalog error.
func loadErrorParts(err error) (string, string) {
	var le *catalog.LoadError
	if errors.As(err, &le) {
		return le.Code, le.Message
	}
	return catalog.ErrCodeGeneric, err.Error()
}

func toIssues(errs []error) []ValidationIssue {
	issues := make([]ValidationIssue, 0, len(errs))
	for _, err := range errs {
		issue := ValidationIssue{}
		issue.Code, issue.Message = loadErrorParts(err)
		var le *catalog.LoadError
		if errors.As(err, &le) && le.Pos.IsValid() {
			issue.File = le.Pos.Filename()
			issue.Line = le.Pos.Line()
		}
		issues = append(issues, issue)
	}
	return issues
}

func outputValidateSuccess(formatter *OutputFormatter, procedures int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Procedures: procedures})
	}

	fmt.Fprintf(formatter.Writer, "✓ Catalog valid: %d procedure(s)\n", procedures)
	return nil
}

func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return exitErr
}
