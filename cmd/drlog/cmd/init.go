/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ssargent/drlog/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default drlog configuration",
	Long: `Write a default configuration file with a file sink and a sample
"orders" table.

Examples:
  drlog init
  drlog init --config ./drlog.yaml --data-dir ./data --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		path := configPath(cmd)

		if config.ConfigExists(path) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", path)
			return nil
		}

		cfg, err := config.BootstrapConfig(path, dataDir)
		if err != nil {
			return fmt.Errorf("bootstrap config: %w", err)
		}

		cmd.Printf("✅ Configuration written to %s\n", path)
		cmd.Printf("Sink: %s (%s)\n", cfg.Sink.Type, cfg.Sink.Dir)
		cmd.Printf("\nGenerate a sample change log with:\n")
		cmd.Printf("  drlog generate --config %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("data-dir", "./data", "Directory of the file or pebble sink")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
