// Airosctl is a management utility for Ubiquiti airOS wireless devices.
//
// It discovers airOS devices on the local network over UDP broadcast,
// establishes authenticated HTTP sessions against both the v6 and v8
// firmware families, and exposes status polling, station kick,
// provisioning mode, and the firmware update flow.
//
// Usage:
//
//	airosctl [command] [flags]
//
// See 'airosctl --help' for available commands. Set AIROS_LOG_LEVEL=debug
// for protocol-level logging.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/airosctl/internal/logging"
	"github.com/muurk/airosctl/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "airosctl",
	Short: "airOS Device Management Utility",
	Long: `A standalone utility for managing Ubiquiti airOS wireless devices.

Provides UDP device discovery, authenticated status polling for both the
v6 and v8 firmware families, station kick, provisioning mode, and the
firmware update flow.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
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
		fmt.Printf("airosctl %s\n", version.Full())
	},
}
