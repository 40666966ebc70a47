package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/tablegate/internal/engine"
	"github.com/roach88/tablegate/internal/filter"
	"github.com/roach88/tablegate/internal/ir"
)

// ViewOptions holds flags for the view command.
type ViewOptions struct {
	*RootOptions
	AutoLike    bool
	MaxRows     int
	Count       bool
	User        string
	Authorities []string
	SQLOnly     bool
}

// ViewSQL is the output of view --sql-only. Where is the condition of the
// filter alone, before any row-level security is added.
type ViewSQL struct {
	SQL    string `json:"sql"`
	Where  string `json:"where"`
	Params []any  `json:"params"`
}

// NewViewCommand creates the view command.
func NewViewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ViewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "view <filter.json>",
		Short: "Query a relation with a filter table",
		Long: `Query a relation with a filter table.

The filter file holds one table in JSON wire form. Its name is the
relation, its columns are the projection and each row is a condition
group; groups are ORed unless the row sets its "&" column to true.

With security enabled the caller needs a privilege for the relation,
and row-level security limits the rows to the caller's tokens.

Examples:
  tablegate view orders.json
  tablegate view orders.json --count
  tablegate view orders.json --user alice --max-rows 50
  tablegate view orders.json --sql-only --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.AutoLike, "auto-like", false, "compare rule-less string values with LIKE (default from config)")
	cmd.Flags().IntVar(&opts.MaxRows, "max-rows", 0, "row limit (default from config)")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "return the number of matching rows")
	cmd.Flags().StringVar(&opts.User, "user", "", "caller user name")
	cmd.Flags().StringSliceVar(&opts.Authorities, "authority", nil, "caller group (repeatable; default: the user's groups)")
	cmd.Flags().BoolVar(&opts.SQLOnly, "sql-only", false, "print the compiled SQL instead of running it")

	return cmd
}

func runView(opts *ViewOptions, filterFile string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	var table ir.Table
	if err := readJSON(filterFile, &table); err != nil {
		return err
	}

	e, err := opts.openEnv(false)
	if err != nil {
		return err
	}
	defer e.Close()

	req := engine.ViewRequest{
		Table:    table,
		AutoLike: opts.AutoLike || e.cfg.View.AutoLike,
		MaxRows:  e.cfg.View.MaxRows,
		Counting: opts.Count,
	}
	if opts.MaxRows > 0 {
		req.MaxRows = opts.MaxRows
	}

	sc, err := e.securityContext(ctx, opts.User, opts.Authorities)
	if err != nil {
		return err
	}

	viewer := e.viewer()
	if opts.SQLOnly {
		sql, params, err := viewer.Prepare(ctx, sc, req)
		if err != nil {
			return formatter.Fail(ExitFailure, err, nil)
		}
		where, _, err := filter.WhereClause(req.Table, req.AutoLike)
		if err != nil {
			return formatter.Fail(ExitFailure, err, nil)
		}
		if params == nil {
			params = []any{}
		}
		if opts.Format == "json" {
			return formatter.Success(ViewSQL{SQL: sql, Where: where, Params: params})
		}
		fmt.Fprintln(formatter.Writer, sql)
		formatter.VerboseLog("where: %s", where)
		formatter.VerboseLog("params: %v", params)
		return nil
	}

	result, err := viewer.View(ctx, sc, req)
	if err != nil {
		return formatter.Fail(ExitFailure, err, nil)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	writeTable(formatter.Writer, result)
	return nil
}

// writeTable prints a table as aligned text columns. NULL prints as
// "NULL".
func writeTable(w io.Writer, t ir.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	fmt.Fprintln(tw, strings.Join(names, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range cells {
			cells[i] = "NULL"
			if i < len(row.Values) && row.Values[i] != nil && !row.Values[i].IsNull() {
				cells[i] = row.Values[i].Text()
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "(%d row(s))\n", len(t.Rows))
}
