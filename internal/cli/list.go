package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rzhai/acmtrack/internal/config"
	"github.com/rzhai/acmtrack/internal/models"
	"github.com/rzhai/acmtrack/internal/store"
)

var (
	listMonth   string
	listSource  string
	listStatus  string
	listKeyword string
	listPending bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked problems",
	Long: `List problems in the local store with optional filtering.

Examples:
  acmtrack list
  acmtrack list --month 2025-08
  acmtrack list --source codeforces --status unsolved
  acmtrack list --pending`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listMonth, "month", "m", "", "filter by creation month (YYYY-MM)")
	listCmd.Flags().StringVarP(&listSource, "source", "s", "", "filter by problem source")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by solve status")
	listCmd.Flags().StringVarP(&listKeyword, "keyword", "k", "", "full-text keyword filter")
	listCmd.Flags().BoolVar(&listPending, "pending", false, "only problems still wanting an AI solution")
	rootCmd.AddCommand(listCmd)
}

// openStore opens the configured storage root for read-mostly CLI commands
// that run next to the server.
func openStore() (*store.Store, error) {
	cfg := config.Load()
	if os.Getenv("ACMTRACK_STORAGE_DIR") == "" {
		if sidecar, err := config.LoadSidecar(); err == nil && sidecar.StorageDir != "" {
			cfg.StorageDir = sidecar.StorageDir
		}
	}
	logger, _ := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	return store.New(cfg.StorageDir, logger)
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	var records []models.ProblemRecord
	if listPending {
		records, err = st.ListPendingProblems(listMonth)
	} else {
		records, err = st.ListProblemsFiltered(store.ProblemFilter{
			Month:   listMonth,
			Source:  listSource,
			Status:  models.ProblemStatus(listStatus),
			Keyword: listKeyword,
		})
	}
	if err != nil {
		return fmt.Errorf("list problems: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No problems found.")
		return nil
	}

	fmt.Printf("Problems (%d):\n\n", len(records))
	for _, record := range records {
		difficulty := ""
		if record.Difficulty != nil {
			difficulty = fmt.Sprintf(" *%d", *record.Difficulty)
		}
		fmt.Printf("- %s:%s %s [%s]%s\n", record.Source, record.ID, record.Title, record.Status, difficulty)
	}
	return nil
}
