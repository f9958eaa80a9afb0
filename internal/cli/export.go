package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unclebandit/spinwin-backend/internal/repository"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:           "export",
		Short:         "Copy the ledger file to --out, or stdout with --out -",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			ledger := repository.NewLedgerRepository(cfg.Ledger.Path, repository.LedgerOptions{Logger: newLogger(rootOpts)})
			data, err := ledger.ReadRaw()
			if err != nil {
				return fmt.Errorf("read ledger: %w", err)
			}

			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := repository.WriteFileAtomic(out, data); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return printResult(cmd.OutOrStdout(), rootOpts,
				map[string]interface{}{"path": out, "bytes": len(data)},
				fmt.Sprintf("exported %d bytes to %s", len(data), out))
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "customers.xlsx", "destination file")
	return cmd
}
