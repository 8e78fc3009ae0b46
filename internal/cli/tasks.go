package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks [task-id]",
	Short: "List or inspect background generation tasks",
	Long: `List all generation tasks or inspect a specific task by ID.

Examples:
  acmtrack tasks                                        # List all tasks
  acmtrack tasks 4f1c9c1e-4be1-4a6e-8a3e-1f29c3b7d001  # Show one task`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTasks,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}

func runTasks(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	if len(args) == 1 {
		task, err := st.GetTask(args[0])
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}

		fmt.Printf("Task: %s\n", task.TaskID)
		fmt.Printf("  Kind: %s\n", task.Kind)
		fmt.Printf("  Subject: %s\n", task.SubjectKey)
		fmt.Printf("  Status: %s\n", task.Status)
		if task.ProviderName != "" {
			fmt.Printf("  Provider: %s\n", task.ProviderName)
		}
		fmt.Printf("  Created: %s\n", task.CreatedAt.Format(time.RFC3339))
		if task.StartedAt != nil {
			fmt.Printf("  Started: %s\n", task.StartedAt.Format(time.RFC3339))
		}
		if task.FinishedAt != nil {
			fmt.Printf("  Finished: %s\n", task.FinishedAt.Format(time.RFC3339))
			if task.StartedAt != nil {
				fmt.Printf("  Duration: %s\n", task.FinishedAt.Sub(*task.StartedAt).Round(time.Second))
			}
		}
		if task.ErrorMessage != "" {
			fmt.Printf("  Error: %s\n", task.ErrorMessage)
		}
		if task.OutputPath != "" {
			fmt.Printf("  Output: %s\n", task.OutputPath)
		}
		return nil
	}

	tasks, err := st.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks found")
		return nil
	}

	fmt.Printf("%-38s %-24s %-11s %s\n", "ID", "KIND", "STATUS", "SUBJECT")
	fmt.Println("--------------------------------------------------------------------------------------")
	for _, task := range tasks {
		fmt.Printf("%-38s %-24s %-11s %s\n", task.TaskID, task.Kind, task.Status, task.SubjectKey)
	}
	return nil
}
