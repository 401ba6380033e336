package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bankfeed-dev/bankfeed/internal/codec"
)

func newImportCommand(dir *string) *cobra.Command {
	flags := codec.AllFlags()

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a previously exported dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			payload, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			svc := ws.codecService()
			result, err := svc.Import(ctx, payload, flags)
			if err != nil {
				return err
			}
			ws.rules = svc.Rules()
			if err := ws.save(ctx); err != nil {
				return err
			}

			fmt.Printf("Imported %d transactions (%d skipped), %d accounts, %d history entries\n",
				result.Transactions, len(result.Skipped), result.Accounts, result.HistoryEntries)
			for _, issue := range result.Skipped {
				fmt.Printf("  row %d: %s (%s)\n", issue.Row, issue.Reason, issue.Field)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.Transactions, "transactions", true, "import transactions")
	cmd.Flags().BoolVar(&flags.Accounts, "accounts", true, "import accounts")
	cmd.Flags().BoolVar(&flags.Categories, "categories", true, "import categories")
	cmd.Flags().BoolVar(&flags.Budgets, "budgets", true, "import budgets")
	cmd.Flags().BoolVar(&flags.Rules, "rules", true, "import categorization rules")
	cmd.Flags().BoolVar(&flags.Preferences, "preferences", true, "import preferences")
	cmd.Flags().BoolVar(&flags.TransactionHistory, "history", true, "import transaction history")

	return cmd
}
