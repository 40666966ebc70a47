package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tablegate/internal/security"
	"github.com/roach88/tablegate/internal/store"
)

// AdminResult reports one applied authorization change.
type AdminResult struct {
	Action  string   `json:"action"`
	Name    string   `json:"name"`
	Key     int64    `json:"key,omitempty"`
	Details []string `json:"details,omitempty"`
}

// NewAdminCommand creates the admin command and its subcommands.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage privileges, groups and users",
		Long: `Manage the authorization tables: privileges (one per relation or
procedure, optionally naming a checker), user groups with their
row-level security tokens, users and their group memberships.

Every subcommand runs in one transaction.`,
	}

	cmd.AddCommand(newAdminPrivilegeCommand(rootOpts))
	cmd.AddCommand(newAdminGroupCommand(rootOpts))
	cmd.AddCommand(newAdminUserCommand(rootOpts))
	cmd.AddCommand(newAdminGrantCommand(rootOpts))
	cmd.AddCommand(newAdminAdminUserCommand(rootOpts))
	cmd.AddCommand(newAdminAuthoritiesCommand(rootOpts))

	return cmd
}

func newAdminPrivilegeCommand(rootOpts *RootOptions) *cobra.Command {
	var checker string
	cmd := &cobra.Command{
		Use:           "privilege <name>",
		Short:         "Create a privilege, optionally mapped to a checker procedure",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(rootOpts, cmd, func(ctx context.Context, q store.Querier) (AdminResult, error) {
				key, err := security.FindOrCreatePrivilege(ctx, q, args[0], checker)
				res := AdminResult{Action: "privilege", Name: args[0], Key: key}
				if checker != "" {
					res.Details = []string{"checker " + checker}
				}
				return res, err
			})
		},
	}
	cmd.Flags().StringVar(&checker, "checker", "", "checker procedure run after batches using this privilege")
	return cmd
}

func newAdminGroupCommand(rootOpts *RootOptions) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:           "group <name>",
		Short:         "Create a group or add row-level security tokens to it",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(rootOpts, cmd, func(ctx context.Context, q store.Querier) (AdminResult, error) {
				key, err := security.CreateOrUpdateUserGroup(ctx, q, args[0], token)
				res := AdminResult{Action: "group", Name: args[0], Key: key}
				if token != "" {
					res.Details = []string{"tokens " + token}
				}
				return res, err
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", `security tokens, "#"-separated (e.g. "#north#south")`)
	return cmd
}

func newAdminUserCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		password string
		groups   []string
	)
	cmd := &cobra.Command{
		Use:           "user <name>",
		Short:         "Create a user and add it to groups",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(rootOpts, cmd, func(ctx context.Context, q store.Querier) (AdminResult, error) {
				key, err := security.FindOrCreateUser(ctx, q, args[0], password)
				res := AdminResult{Action: "user", Name: args[0], Key: key}
				if err != nil {
					return res, err
				}
				for _, g := range groups {
					if _, err := security.CreateOrUpdateUserGroup(ctx, q, g, ""); err != nil {
						return res, err
					}
					if err := security.AddAuthority(ctx, q, args[0], g); err != nil {
						return res, err
					}
					res.Details = append(res.Details, "member of "+g)
				}
				return res, nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password for a new user")
	cmd.Flags().StringSliceVar(&groups, "group", nil, "group to join (repeatable)")
	return cmd
}

func newAdminGrantCommand(rootOpts *RootOptions) *cobra.Command {
	var rls bool
	cmd := &cobra.Command{
		Use:           "grant <privilege> <group>",
		Short:         "Grant a privilege to a group",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(rootOpts, cmd, func(ctx context.Context, q store.Querier) (AdminResult, error) {
				res := AdminResult{Action: "grant", Name: args[0], Details: []string{"group " + args[1]}}
				if rls {
					res.Details = append(res.Details, "row-level security")
				}
				return res, security.Grant(ctx, q, args[0], args[1], rls)
			})
		},
	}
	cmd.Flags().BoolVar(&rls, "rls", false, "restrict the group's rows by its security tokens")
	return cmd
}

func newAdminAdminUserCommand(rootOpts *RootOptions) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "admin-user <name>",
		Short: "Make a user a member of the admin group",
		Long: `Make a user a member of the admin group and grant that group every
privilege defined so far. Run it again after adding privileges.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(rootOpts, cmd, func(ctx context.Context, q store.Querier) (AdminResult, error) {
				res := AdminResult{Action: "admin-user", Name: args[0], Details: []string{"member of " + security.AdminGroup}}
				return res, security.CreateOrUpdateAdminUser(ctx, q, args[0], password)
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password for a new user")
	return cmd
}

func newAdminAuthoritiesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "authorities <user>",
		Short:         "List the groups of a user",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(rootOpts, cmd, func(ctx context.Context, q store.Querier) (AdminResult, error) {
				groups, err := security.NewService(true).UserAuthorities(ctx, q, args[0])
				return AdminResult{Action: "authorities", Name: args[0], Details: groups}, err
			})
		},
	}
}

// runAdmin runs fn in one transaction and reports its result.
func runAdmin(opts *RootOptions, cmd *cobra.Command, fn func(context.Context, store.Querier) (AdminResult, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := opts.formatter(cmd)

	e, err := opts.openEnv(false)
	if err != nil {
		return err
	}
	defer e.Close()

	batch, err := e.store.BeginBatch(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
	}
	res, err := fn(ctx, batch.Querier())
	if err == nil {
		err = batch.Commit()
	}
	if err != nil {
		if rbErr := batch.Rollback(); rbErr != nil {
			e.logger.Error("admin rollback failed", "error", rbErr)
		}
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
	}
	e.logger.Info("admin change applied", "action", res.Action, "name", res.Name)

	if opts.Format == "json" {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %s\n", res.Action, res.Name)
	for _, d := range res.Details {
		fmt.Fprintf(formatter.Writer, "  %s\n", d)
	}
	return nil
}
