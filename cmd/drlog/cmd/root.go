/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/config"
	"github.com/ssargent/drlog/pkg/di"
	"github.com/ssargent/drlog/pkg/logging"
)

var container *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

func getContainer() *di.Container {
	if container == nil {
		container = di.NewContainer()
	}
	return container
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "drlog",
	Short: "drlog - DR transaction change log encoder",
	Long: `drlog encodes partition transactions into checksummed DR change-log
blocks and hands them to a sink: segment files, a pebble database or a
Kafka topic.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default is "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().String("log-level", "", "Override the configured log level")
}

// configPath returns the --config value or the default location
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	return path
}

// loadConfig reads the config file. When optional is set a missing file
// yields the defaults.
func loadConfig(cmd *cobra.Command, optional bool) (*config.Config, error) {
	path := configPath(cmd)
	if optional && !config.ConfigExists(path) {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger from the config and --log-level
func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	return logging.New(level)
}
