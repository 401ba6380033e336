package commands

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/bankfeed-dev/bankfeed/internal/pipeline"
)

func newIngestCommand(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [file...]",
		Short: "Ingest bank export files (or everything under import/)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ws, err := openWorkspace(ctx, *dir)
			if err != nil {
				return err
			}

			svc := pipeline.New(ws.cfg, ws.store, ws.accounts, ws.history, ws.metrics, ws.rules)

			var results []pipeline.FileResult
			if len(args) == 0 {
				results, err = svc.IngestDir(ctx, *dir)
				if err != nil {
					return err
				}
			} else {
				for _, path := range args {
					content, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("reading %s: %w", path, err)
					}
					result, err := svc.IngestFile(ctx, path, content)
					if err != nil {
						return err
					}
					results = append(results, result)
				}
			}

			ws.rules = svc.Rules()
			if err := ws.save(ctx); err != nil {
				return err
			}

			printIngestResults(results)
			return nil
		},
	}
}

func printIngestResults(results []pipeline.FileResult) {
	if len(results) == 0 {
		fmt.Println("Nothing to ingest.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"File", "Format", "Account", "Parsed", "Imported", "Skipped", "Duplicates"})
	for _, r := range results {
		table.Append([]string{
			r.Filename,
			string(r.Format),
			r.Account,
			fmt.Sprintf("%d", r.Parsed),
			fmt.Sprintf("%d", r.Imported),
			fmt.Sprintf("%d", len(r.Skipped)),
			fmt.Sprintf("%d", len(r.Duplicates)),
		})
	}
	table.Render()

	for _, r := range results {
		for _, issue := range r.Skipped {
			fmt.Printf("  %s row %d: %s (%s)\n", r.Filename, issue.Row, issue.Reason, issue.Field)
		}
		for _, issue := range r.Warnings {
			fmt.Printf("  %s row %d: warning: %s\n", r.Filename, issue.Row, issue.Reason)
		}
	}
}
