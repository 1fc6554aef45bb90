package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/veldt/entryflow/internal/catalog"
	"github.com/veldt/entryflow/internal/config"
	"github.com/veldt/entryflow/internal/discovery"
	"github.com/veldt/entryflow/internal/hub"
	"github.com/veldt/entryflow/internal/urls"
	"github.com/veldt/entryflow/internal/wizard/tui"
)

// Command flags
var (
	hubRef      string
	flowDomain  string
	scanTimeout int
)

func init() {
	rootCmd.PersistentFlags().StringVar(&hubRef, "hub", "", "Hub to connect to (registry id, name, or address)")
	rootCmd.PersistentFlags().StringVar(&flowDomain, "domain", "config", "Flow domain (config, options, repairs)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(hubsCmd)
	rootCmd.AddCommand(handlersCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(wizardCmd)

	hubsCmd.AddCommand(hubsAddCmd)
	hubsCmd.AddCommand(hubsRemoveCmd)
	hubsCmd.AddCommand(hubsDefaultCmd)
}

// scanCmd discovers hubs on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for hubs on the network",
	Long: `Scan for hubs using mDNS/DNS-SD discovery.

This command listens for mDNS broadcasts and displays all discovered hubs
with their addresses, versions, and location names.`,
	Example: `  # Scan for 10 seconds (default)
  entryflow scan

  # Quick 3-second scan
  entryflow scan --timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for hubs (timeout: %ds)...\n\n", scanTimeout)

	hubs, err := discovery.ScanForHubs(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(hubs) == 0 {
		fmt.Println("No hubs found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the hub is powered on and reachable")
		fmt.Println("  - Verify your computer is on the same network segment")
		fmt.Println("  - Check that the firewall allows mDNS (UDP port 5353)")
		fmt.Println("  - Use --hub <address> to connect directly if discovery fails")
		return nil
	}

	fmt.Printf("Found %d hub(s):\n\n", len(hubs))
	for i, h := range hubs {
		fmt.Printf("%d. %s\n", i+1, h.String())
		if h.Version != "" {
			fmt.Printf("   Version: %s\n", h.Version)
		}
		fmt.Printf("   Address: %s\n", h.Address())
		fmt.Println()
	}

	fmt.Println("Use 'entryflow hubs add <name> <address>' to save a hub")
	fmt.Println("Use 'entryflow --hub <address>' to start the wizard against one")
	return nil
}

// hubsCmd lists the saved hub registry
var hubsCmd = &cobra.Command{
	Use:   "hubs",
	Short: "Manage saved hubs",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}

		if len(registry.Hubs) == 0 {
			fmt.Println("No hubs saved. Use 'entryflow hubs add <name> <address>'.")
			return nil
		}

		defaultID, _ := registry.DefaultHub()
		for _, id := range registry.SortedIDs() {
			h := registry.GetHub(id)
			marker := "  "
			if id == defaultID {
				marker = "* "
			}
			fmt.Printf("%s%s  %s  (%s)\n", marker, id[:8], h.Name, h.Address)
			if h.HubVersion != "" {
				fmt.Printf("    last seen version %s\n", h.HubVersion)
			}
		}
		return nil
	},
}

var hubsAddCmd = &cobra.Command{
	Use:   "add <name> <address>",
	Short: "Save a hub to the registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Reject addresses that cannot be dialed later.
		if _, err := urls.NormalizeHubAddress(args[1]); err != nil {
			return err
		}

		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		id := registry.AddHub(args[0], args[1])
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Saved hub %s as %s\n", args[0], id[:8])
		return nil
	},
}

var hubsRemoveCmd = &cobra.Command{
	Use:   "remove <hub>",
	Short: "Remove a hub from the registry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		id, _ := registry.FindHub(args[0])
		if id == "" || !registry.RemoveHub(id) {
			return fmt.Errorf("no saved hub matches %q", args[0])
		}
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Removed hub %s\n", id[:8])
		return nil
	},
}

var hubsDefaultCmd = &cobra.Command{
	Use:   "default <hub>",
	Short: "Mark a saved hub as the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := config.LoadRegistry()
		if err != nil {
			return err
		}
		id, _ := registry.FindHub(args[0])
		if id == "" || !registry.SetDefaultHub(id) {
			return fmt.Errorf("no saved hub matches %q", args[0])
		}
		if err := registry.Save(); err != nil {
			return err
		}
		fmt.Printf("Default hub is now %s\n", id[:8])
		return nil
	},
}

// handlersCmd lists the integrations that can start a flow
var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List integrations that can start a setup flow",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer conn.Close()

		handlers, err := conn.ListFlowHandlers(cmd.Context())
		if err != nil {
			return err
		}
		for _, h := range handlers {
			fmt.Println(h)
		}
		return nil
	},
}

// startCmd runs a flow for one handler without the picker screen
var startCmd = &cobra.Command{
	Use:   "start <handler>",
	Short: "Start a flow for a specific integration",
	Example: `  # Set up the knx integration
  entryflow start knx

  # Reconfigure an existing entry
  entryflow start <entry-id> --domain options`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDialog(cmd.Context(), args[0], "")
	},
}

// resumeCmd re-attaches to a flow that is already in progress
var resumeCmd = &cobra.Command{
	Use:   "resume <flow-id>",
	Short: "Resume a flow that is already in progress",
	Long: `Resume a flow that is already in progress on the hub.

A resumed flow belongs to whoever started it: closing the wizard midway
leaves the flow running on the hub instead of deleting it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDialog(cmd.Context(), "", args[0])
	},
}

// wizardCmd launches the interactive wizard with the integration picker
var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch the interactive wizard",
	RunE:  runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	return runDialog(cmd.Context(), "", "")
}

// runDialog connects, runs the wizard, and reports the outcome.
func runDialog(ctx context.Context, startHandler, resumeFlowID string) error {
	domain := hub.FlowDomain(flowDomain)
	if !domain.Valid() {
		return fmt.Errorf("unknown flow domain %q (want config, options, or repairs)", flowDomain)
	}

	conn, err := connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	deps := tui.Deps{
		Conn:    conn,
		Catalog: catalog.New(conn, catalog.NewCache()),
		Domain:  domain,
	}

	app, err := tui.Run(deps, startHandler, resumeFlowID)
	if err != nil {
		return err
	}

	if result := app.LastResult; result != nil && result.FlowFinished {
		if result.EntryID != "" {
			fmt.Printf("Created entry %s\n", result.EntryID)
		} else {
			fmt.Println("Flow ended.")
		}
	}
	return nil
}

// connect resolves the target hub, normalizes its address, and dials it.
func connect(ctx context.Context) (*hub.Conn, error) {
	registry, err := config.LoadRegistry()
	if err != nil {
		return nil, err
	}

	address := hubRef
	var registryID string
	if hubRef == "" {
		id, saved := registry.DefaultHub()
		if saved == nil {
			return nil, fmt.Errorf("no hub specified: use --hub, or save one with 'entryflow hubs add'")
		}
		registryID, address = id, saved.Address
	} else if id, saved := registry.FindHub(hubRef); saved != nil {
		registryID, address = id, saved.Address
	}

	wsURL, err := urls.NormalizeHubAddress(address)
	if err != nil {
		return nil, err
	}

	token, err := config.AccessToken()
	if err != nil {
		return nil, err
	}

	conn, err := hub.Dial(ctx, wsURL, token)
	if err != nil {
		return nil, err
	}

	if registryID != "" {
		registry.TouchHub(registryID, "", conn.Version())
		if err := registry.Save(); err != nil {
			// Not fatal; the connection is up.
			fmt.Printf("Warning: failed to update hub registry: %v\n", err)
		}
	}
	return conn, nil
}
