package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/mediahub/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file with default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.toml"
		if len(args) > 0 {
			path = args[0]
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}

		fmt.Printf("Wrote %s\n", path)
		fmt.Printf("Set tmdb_api_key before running other commands, or export %s_TMDB_API_KEY.\n", config.EnvPrefix)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
