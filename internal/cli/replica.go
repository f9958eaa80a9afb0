package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unclebandit/spinwin-backend/internal/config"
	appErrors "github.com/unclebandit/spinwin-backend/internal/errors"
	"github.com/unclebandit/spinwin-backend/internal/replica"
	"github.com/unclebandit/spinwin-backend/internal/repository"
)

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:           "pull",
		Short:         "Restore the local ledger from the replica store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.Ledger.Path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", cfg.Ledger.Path)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Replica.Timeout)
			defer cancel()

			rep, closeFn, err := openReplica(ctx, rootOpts, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := rep.Pull(ctx, cfg.Ledger.Path); err != nil {
				if errors.Is(err, appErrors.ErrReplicaNotFound) {
					return fmt.Errorf("no replica of %s/%s exists yet", cfg.Replica.Folder, cfg.Replica.ObjectName)
				}
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts,
				map[string]string{"pulled": cfg.Ledger.Path},
				"pulled replica into "+cfg.Ledger.Path)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing ledger")
	return cmd
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "push",
		Short:         "Upload the local ledger to the replica store",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			ledger := repository.NewLedgerRepository(cfg.Ledger.Path, repository.LedgerOptions{})
			data, err := ledger.ReadRaw()
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Replica.Timeout)
			defer cancel()

			rep, closeFn, err := openReplica(ctx, rootOpts, cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := rep.Push(ctx, data); err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), rootOpts,
				map[string]interface{}{"pushed": cfg.Ledger.Path, "bytes": len(data)},
				fmt.Sprintf("pushed %d bytes from %s", len(data), cfg.Ledger.Path))
		},
	}
}

func openReplica(ctx context.Context, rootOpts *RootOptions, cfg *config.Config) (*replica.Replica, func() error, error) {
	rep, closeFn, err := replica.Open(ctx, cfg, newLogger(rootOpts), nil)
	if err != nil {
		return nil, nil, err
	}
	if rep == nil {
		closeFn()
		return nil, nil, errors.New("no replica configured (replica.driver=none)")
	}
	return rep, closeFn, nil
}
