package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/radmon-relay/internal/config"
	"github.com/banshee-data/radmon-relay/internal/fsutil"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default config file",
	Long: `Write a starter configuration using the demo protocol. The format
follows the file extension. An existing file is never overwritten.`,
	RunE: runInitConfig,
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
	addConfigFlag(initConfigCmd)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if err := config.WriteDefault(fsutil.OSFileSystem{}, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s; edit user, password, serialport and protocol before running.\n", path)
	return nil
}
