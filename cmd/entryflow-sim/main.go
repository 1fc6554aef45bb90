// Entryflow-sim is a scripted hub simulator for developing and testing the
// entryflow wizard without a real hub.
//
// It serves the hub WebSocket API from a YAML script describing a flow: the
// steps, their schemas, routing between them, and the push events that
// external and progress steps emit. Point the wizard at it with
// --hub localhost:8123.
//
// Usage:
//
//	entryflow-sim serve --script flow.yaml [flags]
//
// See 'entryflow-sim serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/veldt/entryflow/internal/logging"
	"github.com/veldt/entryflow/internal/sim"
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
	Use:   "entryflow-sim",
	Short: "Scripted Hub Simulator",
	Long: `A scripted hub simulator for the entryflow wizard.

Serves the hub WebSocket API from a YAML flow script: auth handshake, flow
commands, and the push events that drive external and progress steps. Useful
for wizard development and for reproducing flow sequences without a hub.

Note: For talking to a real hub, use the 'entryflow' utility.`,
	Version: version.Version,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	scriptPath string
	listenAddr string
	authToken  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the simulator",
	Long: `Start the simulator and serve the scripted flow.

The script describes one handler: its first step, each step's type and
schema, and how form submissions route between steps. Connecting wizards
authenticate with the configured token (any token is accepted when none is
configured).`,
	Example: `  # Serve a scripted flow on the default hub port
  entryflow-sim serve --script testdata/knx.yaml

  # Require a specific access token on a custom port
  entryflow-sim serve --script flow.yaml --addr :9123 --token secret`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&scriptPath, "script", "", "Path to the flow script (required)")
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8123", "Listen address")
	serveCmd.Flags().StringVar(&authToken, "token", "", "Require this access token (default: accept any)")
	serveCmd.MarkFlagRequired("script")
}

func runServe(cmd *cobra.Command, args []string) error {
	script, err := sim.LoadScript(scriptPath)
	if err != nil {
		return err
	}

	fmt.Printf("Serving handler %q on %s\n", script.Handler, listenAddr)
	fmt.Println("Connect with: entryflow --hub localhost" + portSuffix(listenAddr))

	return sim.NewServer(script, authToken).ListenAndServe(listenAddr)
}

// checkCmd validates a script without serving it
var checkCmd = &cobra.Command{
	Use:   "check <script>",
	Short: "Validate a flow script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := sim.LoadScript(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("OK: handler %q, %d step(s), first step %q\n",
			script.Handler, len(script.Steps), script.FirstStep)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("entryflow-sim %s (commit: %s)\n", version.Version, version.Commit)
	},
}

// portSuffix extracts ":port" from a listen address like ":8123" or
// "0.0.0.0:8123" for the connect hint.
func portSuffix(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[i:]
		}
	}
	return ""
}
