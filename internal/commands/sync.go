package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bankfeed-dev/bankfeed/internal/cloudsync"
	"github.com/bankfeed-dev/bankfeed/internal/codec"
)

func newSyncCommand(dir *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push or pull dataset snapshots against the sync endpoint",
	}

	cmd.AddCommand(newSyncPushCommand(dir))
	cmd.AddCommand(newSyncPullCommand(dir))

	return cmd
}

func syncClient(ws *workspace) (*cloudsync.Client, error) {
	client := cloudsync.NewClient(ws.cfg.Sync, ws.metrics)
	if !client.Enabled() {
		return nil, fmt.Errorf("sync is not configured; set sync.endpoint and sync.user in %s", configFileName)
	}
	return client, nil
}

func newSyncPushCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload the current dataset as a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}
			client, err := syncClient(ws)
			if err != nil {
				return err
			}

			payload, err := ws.codecService().Export(ctx)
			if err != nil {
				return err
			}
			if err := client.Push(ctx, payload); err != nil {
				return err
			}

			fmt.Printf("Pushed %d bytes\n", len(payload))
			return nil
		},
	}
}

func newSyncPullCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download the latest snapshot and import it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}
			client, err := syncClient(ws)
			if err != nil {
				return err
			}

			payload, err := client.Pull(ctx)
			if err != nil {
				return err
			}

			result, err := ws.codecService().Import(ctx, payload, codec.AllFlags())
			if err != nil {
				return err
			}
			if err := ws.save(ctx); err != nil {
				return err
			}

			fmt.Printf("Pulled %d transactions (%d skipped)\n", result.Transactions, len(result.Skipped))
			return nil
		},
	}
}
