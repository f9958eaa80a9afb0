package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unclebandit/spinwin-backend/internal/codec"
	"github.com/unclebandit/spinwin-backend/internal/lookup"
	"github.com/unclebandit/spinwin-backend/internal/model"
)

// VerifyResult describes the state of a ledger file.
type VerifyResult struct {
	Path       string   `json:"path"`
	Valid      bool     `json:"valid"`
	Error      string   `json:"error,omitempty"`
	Header     []string `json:"header,omitempty"`
	Rows       int      `json:"rows"`
	WithOffer  int      `json:"with_offer"`
	Duplicates int      `json:"duplicates"`
}

// NewVerifyCommand creates the verify command. It never modifies the file.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "verify",
		Short:         "Check that the ledger file decodes and report its contents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}

			res := verifyLedger(cfg.Ledger.Path)
			text := fmt.Sprintf("%s: %d rows, %d with offer, %d duplicates", res.Path, res.Rows, res.WithOffer, res.Duplicates)
			if !res.Valid {
				text = fmt.Sprintf("%s: invalid: %s", res.Path, res.Error)
			}
			if err := printResult(cmd.OutOrStdout(), rootOpts, res, text); err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("ledger %s is invalid", res.Path)
			}
			return nil
		},
	}
}

func verifyLedger(path string) VerifyResult {
	res := VerifyResult{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	l, err := codec.Decode(data)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	res.Valid = true
	res.Header = l.Header
	res.Rows = l.Len()
	res.Duplicates = countDuplicates(l)
	for _, r := range l.Rows {
		if strings.TrimSpace(r.Offer) != "" {
			res.WithOffer++
		}
	}
	return res
}

// countDuplicates counts rows whose email or phone already appeared earlier.
func countDuplicates(l *model.Ledger) int {
	n := 0
	for i, r := range l.Rows {
		seen := &model.Ledger{Header: l.Header, Rows: l.Rows[:i]}
		if lookup.FindConflict(seen, r.Email, r.Phone) != lookup.ConflictNone {
			n++
		}
	}
	return n
}
