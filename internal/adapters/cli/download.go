package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var downloadEntities = map[string]bool{
	"styles": true,
	"stores": true,
	"skus":   true,
	"sales":  true,
	"noos":   true,
}

// NewDownloadCommand creates the download command
func NewDownloadCommand() *cobra.Command {
	var (
		out   string
		runID int64
	)

	cmd := &cobra.Command{
		Use:   "download <entity>",
		Short: "Download a TSV export (styles, stores, skus, sales, noos)",
		Long: `Export the server's current data as a tab-separated file.

The noos entity exports classification results; --run-id selects a
specific algorithm run (default: the latest).

Examples:
  noosctl download styles
  noosctl download noos --out noos_results.tsv
  noosctl download noos --run-id 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := args[0]
			if !downloadEntities[entity] {
				return fmt.Errorf("unknown entity %q (expected styles, stores, skus, sales, or noos)", entity)
			}
			if runID > 0 && entity != "noos" {
				return fmt.Errorf("--run-id only applies to the noos entity")
			}

			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()

			path, size, err := client.DownloadFile(ctx, entity, runID, out)
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}

			fmt.Printf("✓ Export saved: %s (%d bytes)\n", path, size)

			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file path (default: server-suggested name)")
	cmd.Flags().Int64Var(&runID, "run-id", 0, "Algorithm run to export (noos only, default latest)")

	return cmd
}
