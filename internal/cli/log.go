package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tablegate/internal/ir"
	"github.com/roach88/tablegate/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Limit int
	Hash  string
	Batch string // batch file whose fingerprint selects the entries
}

// LogResult holds the selected batch log entries.
type LogResult struct {
	Hash    string           `json:"batch_hash,omitempty"`
	Entries []store.BatchLog `json:"entries"`
	Stats   LogStats         `json:"stats"`
}

// LogStats summarizes the selected entries.
type LogStats struct {
	Total      int `json:"total"`
	Committed  int `json:"committed"`
	RolledBack int `json:"rolled_back"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show executed batches",
		Long: `Show the batch log: one entry per executed batch with its token,
fingerprint, caller, item and result counts and outcome.

Entries can be selected by fingerprint, given directly or computed from
a batch file. Resubmitting the same batch yields the same fingerprint.

Examples:
  tablegate log --db ./tablegate.db
  tablegate log --db ./tablegate.db --limit 20
  tablegate log --db ./tablegate.db --batch ./order.json
  tablegate log --db ./tablegate.db --hash 3f2a... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent entries (0 = all)")
	cmd.Flags().StringVar(&opts.Hash, "hash", "", "select entries by batch fingerprint")
	cmd.Flags().StringVar(&opts.Batch, "batch", "", "select entries by the fingerprint of a batch file")
	cmd.MarkFlagsMutuallyExclusive("hash", "batch")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	hash := opts.Hash
	if opts.Batch != "" {
		var items []ir.TransactionItem
		if err := readJSON(opts.Batch, &items); err != nil {
			return err
		}
		h, err := ir.BatchHash(items)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeInput, err)
		}
		hash = h
	}

	e, err := opts.openEnv(false)
	if err != nil {
		return err
	}
	defer e.Close()

	var entries []store.BatchLog
	if hash != "" {
		entries, err = e.store.FindBatchLogsByHash(ctx, hash)
	} else {
		entries, err = e.store.ReadBatchLogs(ctx, opts.Limit)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
	}

	result := LogResult{Hash: hash, Entries: entries}
	if result.Entries == nil {
		result.Entries = []store.BatchLog{}
	}
	for _, entry := range entries {
		result.Stats.Total++
		switch entry.Status {
		case store.StatusCommitted:
			result.Stats.Committed++
		case store.StatusRolledBack:
			result.Stats.RolledBack++
		}
	}

	if opts.Format == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result})
	}
	outputLogText(cmd.OutOrStdout(), result, opts.Verbose)
	return nil
}

func outputLogText(w io.Writer, result LogResult, verbose bool) {
	if result.Hash != "" {
		fmt.Fprintf(w, "Batches with fingerprint %s\n\n", truncateID(result.Hash))
	}
	if len(result.Entries) == 0 {
		fmt.Fprintln(w, "  (no batches)")
		return
	}

	for _, entry := range result.Entries {
		user := entry.User
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(w, "  [%d] %s %-11s user=%s items=%d results=%d\n",
			entry.Seq, truncateID(entry.ID), entry.Status, user, entry.Items, entry.Results)
		if verbose {
			fmt.Fprintf(w, "       Hash: %s\n", entry.Hash)
		}
		if entry.Error != "" {
			fmt.Fprintf(w, "       Error: %s\n", entry.Error)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total: %d (committed %d, rolled back %d)\n",
		result.Stats.Total, result.Stats.Committed, result.Stats.RolledBack)
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
