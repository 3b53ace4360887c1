package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/blindauth/internal/common"
	"github.com/dmitrijs2005/blindauth/internal/cryptox"
	"github.com/dmitrijs2005/blindauth/internal/server/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	dsn        string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Administrative tasks for the blindauth database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Server config file (JSON or YAML)")
	cmd.PersistentFlags().StringVarP(&opts.dsn, "dsn", "d", "", "PostgreSQL DSN, overrides the config file")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newRevokeAllCommand(opts))
	cmd.AddCommand(newDeleteUserCommand(opts))
	cmd.AddCommand(newGenKeyCommand())
	return cmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var args []string
	if o.configFile != "" {
		args = append(args, "-c", o.configFile)
	}
	if o.dsn != "" {
		args = append(args, "-d", o.dsn)
	}
	return config.LoadConfig(args)
}

// withBackend opens the database for the duration of fn.
func (o *rootOptions) withBackend(cmd *cobra.Command, fn func(ctx context.Context, b backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	return fn(ctx, b)
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, b backend) error {
				if err := b.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newRevokeAllCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-all <user-id>",
		Short: "Revoke every refresh token of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, b backend) error {
				n, err := b.RevokeAll(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %d refresh token(s) of %s\n", n, args[0])
				return nil
			})
		},
	}
}

func newDeleteUserCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <user-id>",
		Short: "Soft-delete a user and revoke its sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withBackend(cmd, func(ctx context.Context, b backend) error {
				if err := b.DeleteUser(ctx, args[0]); err != nil {
					if errors.Is(err, common.ErrNotFound) {
						return fmt.Errorf("user %s not found", args[0])
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted user %s\n", args[0])
				return nil
			})
		},
	}
}

func newGenKeyCommand() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "gen-key",
		Short: "Print a random hex signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size < config.MinSecretKeyLength/2 {
				return fmt.Errorf("size must be at least %d bytes", config.MinSecretKeyLength/2)
			}
			key, err := cryptox.MakeRandHexString(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "Number of random bytes")
	return cmd
}
