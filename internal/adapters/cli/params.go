package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewParamsCommand creates the params command with subcommands
func NewParamsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Manage algorithm parameter sets",
	}

	cmd.AddCommand(newParamsListCommand())
	cmd.AddCommand(newParamsActivateCommand())

	return cmd
}

// newParamsListCommand lists stored parameter sets
func newParamsListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored parameter sets",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			sets, err := client.ListParams(ctx)
			if err != nil {
				return fmt.Errorf("failed to list parameter sets: %w", err)
			}

			if len(sets) == 0 {
				fmt.Println("No parameter sets found")
				return nil
			}

			fmt.Printf("%-20s %-8s %-12s %-12s %-10s %-12s %s\n",
				"NAME", "ACTIVE", "LIQUIDATION", "BESTSELLER", "MINVOL", "CONSISTENCY", "AVAILABILITY")
			fmt.Println("────────────────────────────────────────────────────────────────────────────────────────────")

			for _, p := range sets {
				active := ""
				if p.IsActive {
					active = "✓"
				}
				fmt.Printf("%-20s %-8s %-12.2f %-12.2f %-10.0f %-12.2f %s\n",
					truncate(p.ParameterSet, 20),
					active,
					p.LiquidationThreshold,
					p.BestsellerMultiplier,
					p.MinVolumeThreshold,
					p.ConsistencyThreshold,
					p.AvailabilityPolicy,
				)
			}

			fmt.Printf("\nTotal: %d parameter sets\n", len(sets))

			return nil
		},
	}

	return cmd
}

// newParamsActivateCommand switches the active parameter set
func newParamsActivateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "activate <name>",
		Short: "Make the named parameter set the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			msg, err := client.ActivateParams(ctx, name)
			if err != nil {
				return fmt.Errorf("failed to activate parameter set: %w", err)
			}
			fmt.Printf("✓ %s\n", msg)

			p, err := client.GetParams(ctx, name)
			if err != nil {
				return nil
			}
			fmt.Printf("  Liquidation threshold: %.2f\n", p.LiquidationThreshold)
			fmt.Printf("  Bestseller multiplier: %.2f\n", p.BestsellerMultiplier)
			fmt.Printf("  Min volume threshold:  %.0f\n", p.MinVolumeThreshold)
			fmt.Printf("  Consistency threshold: %.2f\n", p.ConsistencyThreshold)
			fmt.Printf("  Availability policy:   %s\n", p.AvailabilityPolicy)

			return nil
		},
	}

	return cmd
}
