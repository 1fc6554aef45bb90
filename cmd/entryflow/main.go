// Entryflow is a terminal client for hub data entry flows.
//
// It drives the step-by-step dialogs a hub uses to set up integrations,
// reconfigure them, and repair issues: forms, menus, external
// authorization, and progress steps, rendered in the terminal instead of a
// web frontend.
//
// Usage:
//
//	entryflow [command] [flags]
//
// Running without arguments launches the interactive wizard against the
// default hub. See 'entryflow --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veldt/entryflow/internal/logging"
	"github.com/veldt/entryflow/internal/version"
)

func main() {
	logging.InitializeFromEnv()
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "entryflow",
	Short: "Hub Data Entry Flow Wizard",
	Long: `A terminal client for hub data entry flows.

Drives the step-by-step dialogs a hub uses to set up integrations,
reconfigure them, and repair issues. Connects over the hub WebSocket API
and renders forms, menus, external authorization, and progress steps in
the terminal.

If no command is specified, the interactive wizard will launch
automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run wizard when no subcommand provided
		return runWizard(cmd, args)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("entryflow %s (commit: %s)\n", version.Version, version.Commit)
	},
}
