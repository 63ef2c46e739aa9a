package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	verbose   bool
)

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "noosctl",
		Short: "NOOS CLI - Interact with the NOOS classification server",
		Long: `NOOS CLI provides commands to drive a running classification server.
The CLI communicates with the server over its HTTP API.

Examples:
  noosctl upload styles ./styles.tsv
  noosctl upload sales ./sales.tsv --wait
  noosctl run noos
  noosctl tasks list --status RUNNING
  noosctl tasks cancel 42
  noosctl download noos --out noos_results.tsv
  noosctl params list
  noosctl params activate aggressive`,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", getDefaultServerURL(),
		"Base URL of the NOOS server")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose output")

	// Add command groups
	rootCmd.AddCommand(NewTasksCommand())
	rootCmd.AddCommand(NewUploadCommand())
	rootCmd.AddCommand(NewDownloadCommand())
	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewParamsCommand())
	rootCmd.AddCommand(NewHealthCommand())

	return rootCmd
}

// getDefaultServerURL returns the default server base URL
func getDefaultServerURL() string {
	if url := os.Getenv("NOOS_SERVER_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
