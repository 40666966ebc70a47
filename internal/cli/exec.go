package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tablegate/internal/engine"
	"github.com/roach88/tablegate/internal/harness"
	"github.com/roach88/tablegate/internal/ir"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	User        string
	Authorities []string
	Token       string // explicit batch token
}

// ExecResult is the outcome of one submitted batch.
type ExecResult struct {
	Token     string          `json:"token"`
	Outcome   string          `json:"outcome"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Results   []ir.ItemResult `json:"results"`
}

// tokenRecorder remembers the token handed to the orchestrator.
type tokenRecorder struct {
	gen  engine.TokenGenerator
	last string
}

func (r *tokenRecorder) Generate() string {
	r.last = r.gen.Generate()
	return r.last
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <batch.json>",
		Short: "Execute a transaction batch",
		Long: `Execute a batch of procedure calls in one transaction.

The batch file holds a JSON array of items, each {"id", "seq", "table"}.
The table names the catalog procedure and holds one row per call. A
value whose rule names an earlier item reads that item's output
("<row>-<column>"). With security enabled every procedure needs a
privilege, and the checkers mapped to the executed procedures run after
the batch. Any failure rolls the whole batch back.

Exit codes:
  0 - Batch committed
  1 - Batch rolled back
  2 - Command error (unreadable batch, missing catalog, etc.)

Examples:
  tablegate exec order.json
  tablegate exec order.json --user alice
  tablegate exec order.json --user alice --authority sales --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "caller user name")
	cmd.Flags().StringSliceVar(&opts.Authorities, "authority", nil, "caller group (repeatable; default: the user's groups)")
	cmd.Flags().StringVar(&opts.Token, "token", "", "batch token (default: a new UUIDv7)")

	return cmd
}

func runExec(opts *ExecOptions, batchFile string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	var items []ir.TransactionItem
	if err := readJSON(batchFile, &items); err != nil {
		return err
	}

	e, err := opts.openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	sc, err := e.securityContext(ctx, opts.User, opts.Authorities)
	if err != nil {
		return err
	}

	var gen engine.TokenGenerator = engine.UUIDv7Generator{}
	if opts.Token != "" {
		gen = engine.NewFixedGenerator(opts.Token)
	}
	tokens := &tokenRecorder{gen: gen}

	results, err := e.orchestrator(engine.WithTokenGenerator(tokens)).Execute(ctx, sc, items)
	if err != nil {
		batchErr, ok := engine.AsBatchError(err)
		if !ok {
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		return outputExecFailure(formatter, batchErr)
	}

	res := ExecResult{
		Token:   tokens.last,
		Outcome: harness.OutcomeCommitted,
		Results: results,
	}
	if opts.Format == "json" {
		return json.NewEncoder(formatter.Writer).Encode(CLIResponse{Status: "ok", Data: res, Token: res.Token})
	}
	fmt.Fprintf(formatter.Writer, "✓ Batch %s committed\n", res.Token)
	writeResults(formatter.Writer, results)
	return nil
}

func outputExecFailure(formatter *OutputFormatter, be *engine.BatchError) error {
	code := errorCode(be)
	res := ExecResult{
		Token:     be.Token,
		Outcome:   harness.OutcomeRolledBack,
		ErrorKind: harness.ClassifyError(be.Err),
		Results:   be.Results,
	}
	if res.Results == nil {
		res.Results = []ir.ItemResult{}
	}
	exitErr := WrapExitError(ExitFailure, code, be)

	if formatter.Format == "json" {
		err := json.NewEncoder(formatter.Writer).Encode(CLIResponse{
			Status: "error",
			Data:   res,
			Token:  be.Token,
			Error:  &CLIError{Code: code, Message: be.Err.Error()},
		})
		if err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintf(formatter.Writer, "✗ Batch %s rolled back (%s)\n", be.Token, res.ErrorKind)
	fmt.Fprintf(formatter.Writer, "Error [%s]: %s\n", code, be.Err)
	if len(be.Results) > 0 {
		fmt.Fprintf(formatter.Writer, "\nExecuted before the failure:\n")
		writeResults(formatter.Writer, be.Results)
	}
	return exitErr
}

// writeResults prints one line per item result plus its output rows.
func writeResults(w io.Writer, results []ir.ItemResult) {
	for _, r := range results {
		rows := 0
		if r.Result != nil && r.Result.ResultSet != nil {
			rows = len(r.Result.ResultSet.Rows)
		}
		fmt.Fprintf(w, "  [%d] %s %s (%d result row(s))\n", r.Seq, r.ID, r.Procedure, rows)
		if r.Result == nil || r.Result.OutputParameters == nil {
			continue
		}
		out := r.Result.OutputParameters
		for _, row := range out.Rows {
			fmt.Fprint(w, "       ")
			for i, col := range out.Columns {
				v := "NULL"
				if i < len(row.Values) && row.Values[i] != nil && !row.Values[i].IsNull() {
					v = row.Values[i].Text()
				}
				fmt.Fprintf(w, " %s=%s", col.Name, v)
			}
			fmt.Fprintln(w)
		}
	}
}
