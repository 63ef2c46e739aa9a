package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var uploadEntities = map[string]bool{
	"styles": true,
	"stores": true,
	"skus":   true,
	"sales":  true,
}

// NewUploadCommand creates the upload command
func NewUploadCommand() *cobra.Command {
	var (
		async bool
		wait  bool
	)

	cmd := &cobra.Command{
		Use:   "upload <entity> <file>",
		Short: "Upload a TSV file (styles, stores, skus, sales)",
		Long: `Upload a tab-separated master or sales file to the server.

By default the upload runs synchronously and prints the full outcome,
including row errors. Use --async to schedule it as a background task
instead, and --wait to follow that task to completion.

Examples:
  noosctl upload styles ./styles.tsv
  noosctl upload sales ./sales.tsv --async --wait`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, file := args[0], args[1]
			if !uploadEntities[entity] {
				return fmt.Errorf("unknown entity %q (expected styles, stores, skus, or sales)", entity)
			}

			client := NewAPIClient(serverURL)

			if async || wait {
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				t, err := client.UploadFileAsync(ctx, entity, file)
				if err != nil {
					return fmt.Errorf("failed to schedule upload: %w", err)
				}

				fmt.Printf("✓ Upload scheduled: task %d (%s)\n", t.ID, t.Kind)

				if !wait {
					fmt.Printf("  Follow it with: noosctl tasks get %d\n", t.ID)
					return nil
				}

				final, err := waitForTask(client, t.ID, 30*time.Minute)
				if err != nil {
					return err
				}
				printUploadTaskOutcome(final)
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			outcome, err := client.UploadFile(ctx, entity, file)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			printUploadOutcome(outcome)
			if !outcome.Success {
				return fmt.Errorf("upload rejected")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&async, "async", false, "Schedule the upload as a background task")
	cmd.Flags().BoolVar(&wait, "wait", false, "Schedule asynchronously and wait for completion")

	return cmd
}

// printUploadOutcome renders a synchronous upload response
func printUploadOutcome(o *UploadOutcome) {
	if o.Success {
		fmt.Printf("✓ %s\n", o.Message)
	} else {
		fmt.Printf("✗ %s\n", o.Message)
	}
	for _, m := range o.Messages {
		fmt.Printf("  %s\n", m)
	}
	if o.RecordCount > 0 {
		fmt.Printf("  Rows processed: %d\n", o.RecordCount)
	}
	if o.SkippedCount > 0 {
		fmt.Printf("  Rows skipped:   %d\n", o.SkippedCount)
	}
	if o.ErrorCount > 0 {
		fmt.Printf("  Row errors:     %d\n", o.ErrorCount)
	}
	for _, e := range o.Errors {
		fmt.Printf("  ERROR %s\n", e)
	}
	for _, w := range o.Warnings {
		fmt.Printf("  WARN  %s\n", w)
	}
	if len(o.ErrorFiles) > 0 {
		fmt.Println("  Error reports (on the server):")
		for kind, path := range o.ErrorFiles {
			fmt.Printf("    %-22s %s\n", kind, path)
		}
	}
}

// printUploadTaskOutcome renders the terminal state of a waited task
func printUploadTaskOutcome(t *TaskInfo) {
	switch t.Status {
	case "COMPLETED":
		fmt.Printf("✓ Task %d completed: %s\n", t.ID, t.Message)
	case "CANCELLED":
		fmt.Printf("✗ Task %d cancelled: %s\n", t.ID, t.Message)
	default:
		fmt.Printf("✗ Task %d %s: %s\n", t.ID, t.Status, t.ErrorMessage)
	}
	if t.TotalRecords > 0 {
		fmt.Printf("  Records: %d/%d (errors: %d)\n", t.ProcessedRecords, t.TotalRecords, t.ErrorCount)
	}
}
