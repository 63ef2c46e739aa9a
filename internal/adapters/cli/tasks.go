package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewTasksCommand creates the tasks command with subcommands
func NewTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Inspect and control background tasks",
		Long:  `Inspect and control the background tasks created by uploads, downloads, and algorithm runs.`,
	}

	cmd.AddCommand(newTasksListCommand())
	cmd.AddCommand(newTasksGetCommand())
	cmd.AddCommand(newTasksCancelCommand())
	cmd.AddCommand(newTasksStatsCommand())
	cmd.AddCommand(newTasksResultCommand())

	return cmd
}

// newTasksListCommand lists recent tasks
func newTasksListCommand() *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent tasks",
		Long:  `List recent tasks, newest first, optionally filtered by status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var tasks []TaskInfo
			var err error
			if status != "" {
				tasks, err = client.ListTasksByStatus(ctx, status, limit)
			} else {
				tasks, err = client.ListTasks(ctx, limit)
			}
			if err != nil {
				return fmt.Errorf("failed to list tasks: %w", err)
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks found")
				return nil
			}

			// Display tasks in table format
			fmt.Printf("%-6s %-22s %-10s %-9s %-25s %s\n",
				"ID", "KIND", "STATUS", "PROGRESS", "FILE", "CREATED")
			fmt.Println("────────────────────────────────────────────────────────────────────────────────────────────")

			for _, t := range tasks {
				fmt.Printf("%-6d %-22s %-10s %8.1f%% %-25s %s\n",
					t.ID,
					truncate(t.Kind, 22),
					t.Status,
					t.Progress,
					truncate(t.FileName, 25),
					formatTimestamp(t.CreatedAt),
				)
			}

			fmt.Printf("\nTotal: %d tasks\n", len(tasks))

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of tasks to list")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED, CANCELLED)")

	return cmd
}

// newTasksGetCommand gets detailed task info
func newTasksGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <task-id>",
		Short: "Get detailed task information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			t, err := client.GetTask(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get task: %w", err)
			}

			printTaskDetails(t)

			return nil
		},
	}

	return cmd
}

// newTasksCancelCommand requests cancellation of a task
func newTasksCancelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a pending or running task",
		Long: `Request cooperative cancellation of a task. The worker stops at its
next checkpoint; the final state shows up as CANCELLED shortly after.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			msg, err := client.CancelTask(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to cancel task: %w", err)
			}

			fmt.Printf("✓ %s\n", msg)

			return nil
		},
	}

	return cmd
}

// newTasksStatsCommand prints lifetime task counts
func newTasksStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			stats, err := client.TaskStats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get task stats: %w", err)
			}

			fmt.Println("Task statistics")
			fmt.Println("══════════════════════════")
			fmt.Printf("  Total:     %d\n", stats.Total)
			fmt.Printf("  Running:   %d\n", stats.Running)
			fmt.Printf("  Completed: %d\n", stats.Completed)
			fmt.Printf("  Failed:    %d\n", stats.Failed)
			fmt.Printf("  Cancelled: %d\n", stats.Cancelled)

			return nil
		},
	}

	return cmd
}

// newTasksResultCommand downloads the result file of a completed task
func newTasksResultCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "result <task-id>",
		Short: "Download the result file of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			client := NewAPIClient(serverURL)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			path, size, err := client.DownloadTaskResult(ctx, id, out)
			if err != nil {
				return fmt.Errorf("failed to download result: %w", err)
			}

			fmt.Printf("✓ Result saved: %s (%d bytes)\n", path, size)

			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file path (default: server-suggested name)")

	return cmd
}

// printTaskDetails renders the full task record
func printTaskDetails(t *TaskInfo) {
	fmt.Printf("Task: %d\n", t.ID)
	fmt.Println("══════════════════════════════════════════════")
	fmt.Printf("  Kind:              %s\n", t.Kind)
	fmt.Printf("  Status:            %s\n", t.Status)
	fmt.Printf("  Progress:          %.1f%%\n", t.Progress)
	if t.Phase != "" {
		fmt.Printf("  Phase:             %s\n", t.Phase)
	}
	if t.Message != "" {
		fmt.Printf("  Message:           %s\n", t.Message)
	}
	if t.FileName != "" {
		fmt.Printf("  File:              %s\n", t.FileName)
	}
	if t.Parameters != "" {
		fmt.Printf("  Parameters:        %s\n", t.Parameters)
	}
	if t.TotalRecords > 0 {
		fmt.Printf("  Records:           %d/%d (errors: %d)\n", t.ProcessedRecords, t.TotalRecords, t.ErrorCount)
	}
	if t.ErrorMessage != "" {
		fmt.Printf("  Error:             %s\n", t.ErrorMessage)
	}
	if t.CancellationRequested {
		fmt.Printf("  Cancel requested:  yes\n")
	}
	fmt.Printf("  Created At:        %s\n", formatTimestamp(t.CreatedAt))
	if t.StartedAt != "" {
		fmt.Printf("  Started At:        %s\n", formatTimestamp(t.StartedAt))
	}
	if t.EndedAt != "" {
		fmt.Printf("  Ended At:          %s\n", formatTimestamp(t.EndedAt))
	}
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task ID %q", arg)
	}
	return id, nil
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// waitForTask polls until the task reaches a terminal state, printing
// progress transitions along the way.
func waitForTask(client *APIClient, id int64, timeout time.Duration) (*TaskInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var lastLine string
	for {
		t, err := client.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}

		line := fmt.Sprintf("%s %.0f%% %s", t.Status, t.Progress, t.Phase)
		if line != lastLine {
			fmt.Printf("  %s\n", line)
			lastLine = line
		}
		if t.IsTerminal() {
			return t, nil
		}

		select {
		case <-ctx.Done():
			return t, fmt.Errorf("timed out waiting for task %d", id)
		case <-time.After(time.Second):
		}
	}
}
