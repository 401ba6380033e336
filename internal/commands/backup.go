package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bankfeed-dev/bankfeed/internal/backup"
	"github.com/bankfeed-dev/bankfeed/internal/model"
)

func newBackupCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create, list, restore, and prune dataset backups",
	}

	cmd.AddCommand(newBackupCreateCommand(dir))
	cmd.AddCommand(newBackupListCommand(dir))
	cmd.AddCommand(newBackupRestoreCommand(dir))
	cmd.AddCommand(newBackupDeleteCommand(dir))
	cmd.AddCommand(newBackupStatsCommand(dir))
	cmd.AddCommand(newBackupPruneCommand(dir))

	return cmd
}

func backupManager(ws *workspace) *backup.Manager {
	return backup.NewManager(ws.store, ws.codecService(), ws.metrics)
}

func newBackupCreateCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Snapshot the current dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			meta, err := backupManager(ws).Create(ctx, model.BackupManual)
			if err != nil {
				return err
			}
			if err := ws.save(ctx); err != nil {
				return err
			}

			fmt.Printf("Created backup %s (%d transactions, %d bytes)\n", meta.ID, meta.TransactionCount, meta.Size)
			return nil
		},
	}
}

func newBackupListCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			metas, err := backupManager(ws).List(ctx)
			if err != nil {
				return err
			}
			if len(metas) == 0 {
				fmt.Println("No backups.")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Created", "Transactions", "Accounts", "Size", "By"})
			for _, meta := range metas {
				table.Append([]string{
					meta.ID,
					meta.Timestamp.Format(time.RFC3339),
					fmt.Sprintf("%d", meta.TransactionCount),
					fmt.Sprintf("%d", meta.AccountCount),
					fmt.Sprintf("%d", meta.Size),
					string(meta.CreatedBy),
				})
			}
			table.Render()
			return nil
		},
	}
}

func newBackupRestoreCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Replace the current dataset with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			result, err := backupManager(ws).Restore(ctx, args[0])
			if err != nil {
				return err
			}
			if err := ws.save(ctx); err != nil {
				return err
			}

			fmt.Printf("Restored %d transactions from %s\n", result.Transactions, args[0])
			return nil
		},
	}
}

func newBackupDeleteCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <backup-id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			if err := backupManager(ws).Delete(ctx, args[0]); err != nil {
				return err
			}
			if err := ws.save(ctx); err != nil {
				return err
			}

			fmt.Printf("Deleted backup %s\n", args[0])
			return nil
		},
	}
}

func newBackupStatsCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show backup totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			stats, err := backupManager(ws).GetStats(ctx)
			if err != nil {
				return err
			}
			if stats.Count == 0 {
				fmt.Println("No backups.")
				return nil
			}

			fmt.Printf("Backups:    %d\n", stats.Count)
			fmt.Printf("Total size: %d bytes\n", stats.TotalSize)
			fmt.Printf("Oldest:     %s\n", stats.Oldest.Format(time.RFC3339))
			fmt.Printf("Newest:     %s\n", stats.Newest.Format(time.RFC3339))
			return nil
		},
	}
}

func newBackupPruneCommand(dir *string) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete automatic backups beyond the newest --keep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			pruned, err := backupManager(ws).Prune(ctx, keep)
			if err != nil {
				return err
			}
			if err := ws.save(ctx); err != nil {
				return err
			}

			fmt.Printf("Pruned %d backups\n", pruned)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 5, "automatic backups to keep")
	return cmd
}
