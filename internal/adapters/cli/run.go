package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command with subcommands
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger algorithm runs",
	}

	cmd.AddCommand(newRunNoosCommand())

	return cmd
}

// newRunNoosCommand schedules a NOOS classification run
func newRunNoosCommand() *cobra.Command {
	var (
		paramsFile string
		wait       bool
	)

	cmd := &cobra.Command{
		Use:   "noos",
		Short: "Schedule a NOOS classification run",
		Long: `Schedule a NOOS classification run over the loaded sales data.

Without flags the run uses the active parameter set. --params-file
points at a JSON document overriding individual parameters.

Examples:
  noosctl run noos
  noosctl run noos --wait
  noosctl run noos --params-file ./aggressive.json --wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var paramsJSON []byte
			if paramsFile != "" {
				data, err := os.ReadFile(paramsFile)
				if err != nil {
					return fmt.Errorf("failed to read params file: %w", err)
				}
				paramsJSON = data
			}

			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			t, err := client.RunNoos(ctx, paramsJSON)
			if err != nil {
				return fmt.Errorf("failed to schedule run: %w", err)
			}

			fmt.Printf("✓ Classification run scheduled: task %d\n", t.ID)
			if t.Parameters != "" {
				fmt.Printf("  Parameters: %s\n", t.Parameters)
			}

			if !wait {
				fmt.Printf("  Follow it with: noosctl tasks get %d\n", t.ID)
				return nil
			}

			final, err := waitForTask(client, t.ID, time.Hour)
			if err != nil {
				return err
			}
			switch final.Status {
			case "COMPLETED":
				fmt.Printf("✓ Run complete: %s\n", final.Message)
			case "CANCELLED":
				fmt.Printf("✗ Run cancelled: %s\n", final.Message)
			default:
				fmt.Printf("✗ Run %s: %s\n", final.Status, final.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&paramsFile, "params-file", "", "JSON file with parameter overrides")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the run to finish")

	return cmd
}
