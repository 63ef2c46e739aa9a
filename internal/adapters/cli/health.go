package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewHealthCommand creates the health command
func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			h, err := client.Health(ctx)
			if err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}

			fmt.Printf("✓ Server at %s is %s\n", serverURL, h.Status)

			if verbose {
				stats, err := client.TaskStats(ctx)
				if err != nil {
					return nil
				}
				fmt.Printf("  Tasks: %d total, %d running\n", stats.Total, stats.Running)
			}

			return nil
		},
	}

	return cmd
}
