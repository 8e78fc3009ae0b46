// Package cli provides the command-line interface for acmtrack.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "acmtrack",
	Short: "Personal competitive-programming practice tracker",
	Long: `Acmtrack tracks your competitive-programming practice: imported problem
statements, accepted code, reflections, and AI-generated solutions and
training reports, all persisted as plain JSON and Markdown under one
storage directory.`,
	Version: Version,
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
