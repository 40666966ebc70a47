package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tablegate/internal/catalog"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled catalog in procedure name order.
type CompilationResult struct {
	Procedures []catalog.Procedure `json:"procedures"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Procedures int
	Params     int
	Statements int
	Checkers   int // procedures carrying assert statements
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [catalog-dir]",
		Short: "Compile the procedure catalog to JSON",
		Long: `Compile the CUE procedure catalog to its JSON form.

Every error in the catalog is reported, not just the first. The
directory defaults to the configured catalog.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.config().Catalog
			if len(args) == 1 {
				dir = args[0]
			}
			return runCompile(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	loaded, errs := catalog.Load(dir)
	if loaded == nil {
		code, message := loadErrorParts(errs[0])
		return outputCompileError(formatter, code, message)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	if len(errs) > 0 {
		return outputCompileErrors(formatter, toIssues(errs))
	}

	result := &CompilationResult{Procedures: make([]catalog.Procedure, 0, loaded.Catalog.Len())}
	for _, name := range loaded.Catalog.Names() {
		formatter.VerboseLog("Compiling procedure: %s", name)
		p, _ := loaded.Catalog.Lookup(name)
		result.Procedures = append(result.Procedures, *p)
	}

	if opts.Output != "" {
		if err := writeCatalogFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, calculateStats(result), opts.Output)
}

func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{Procedures: len(result.Procedures)}
	for _, p := range result.Procedures {
		stats.Params += len(p.Params)
		stats.Statements += len(p.Statements())
		if len(p.Assert) > 0 {
			stats.Checkers++
		}
	}
	return stats
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d procedure(s), %d statement(s), %d checker(s)\n\n",
		stats.Procedures, stats.Statements, stats.Checkers)

	if len(result.Procedures) > 0 {
		fmt.Fprintln(w, "Procedures:")
		for _, p := range result.Procedures {
			fmt.Fprintf(w, "  %s: %d param(s), %d statement(s)\n", p.Name, len(p.Params), len(p.Statements()))
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled catalog to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs every compilation error.
func outputCompileErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	exitErr := NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(issues)))

	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(issues))
		for i, issue := range issues {
			cliErrors[i] = CLIError{Code: issue.Code, Message: issue.Message}
		}
		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", issue.File, issue.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
	}
	return exitErr
}

// writeCatalogFile writes the compiled catalog as indented JSON.
func writeCatalogFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
