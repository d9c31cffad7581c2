package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/radmon-relay/internal/config"
	"github.com/banshee-data/radmon-relay/internal/fsutil"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Load and validate a configuration file without opening the counter
or contacting radmon.org.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addConfigFlag(validateCmd)
}

// loadConfig reads and validates the file at path.
func loadConfig(fsys fsutil.FileSystem, path string) (*config.Config, error) {
	cfg, err := config.Load(fsys, path)
	if errors.Is(err, config.ErrNotFound) {
		return nil, fmt.Errorf("%w (create one with: radmon init-config -c %s)", err, path)
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(fsutil.OSFileSystem{}, path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Protocol:        %s\n", cfg.Protocol)
	if cfg.Protocol.NeedsPort() {
		fmt.Fprintf(out, "  Serial port:     %s @ %d baud\n", cfg.SerialPort, cfg.Speed)
	}
	fmt.Fprintf(out, "  Server:          %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(out, "  Upload interval: %s\n", cfg.UploadInterval)
	fmt.Fprintf(out, "  Retry interval:  %s\n", cfg.RetryInterval)
	return nil
}
