// Package main is the entry point for the radmon relay.
//
// Usage:
//
//	radmon run -c config.txt          # Relay counts to radmon.org
//	radmon validate -c config.txt     # Check a configuration file
//	radmon init-config -c config.txt  # Write a starter configuration
//	radmon version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/radmon-relay/internal/config"
	"github.com/banshee-data/radmon-relay/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "radmon",
	Short: "Relay Geiger counter readings to radmon.org",
	Long: `radmon reads counts per minute from a Geiger counter on a serial port,
averages them, and submits one sample to radmon.org every 30 seconds.

Supported protocols: demo, mygeiger, gmc, netio.

Quick start:
  1. radmon init-config -c config.txt
  2. Edit user, password, serialport and protocol
  3. radmon run -c config.txt`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("config", "c", config.DefaultPath, "path to config file (.txt, .yaml or .json)")
}
