package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/mediahub/internal/domain"
)

var exportCmd = &cobra.Command{
	Use:   "export <keyword> <path>",
	Short: "Write every search result to a JSON or YAML file",
	Long: `Export runs a full search and writes the merged records to path.
Files ending in .yaml or .yml are written as YAML, anything else as JSON.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mediaType, err := mediaTypeFlag(cmd)
		if err != nil {
			return err
		}

		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		n, err := application.Export(cmd.Context(), args[0], mediaType, args[1])
		if err != nil {
			return fmt.Errorf("export failed: %s: %w", domain.UserMessage(err), err)
		}

		fmt.Printf("Wrote %d records to %s\n", n, args[1])
		return nil
	},
}

func init() {
	exportCmd.Flags().String("type", string(domain.MediaMovie), "media type: movie, tv or anime")
	rootCmd.AddCommand(exportCmd)
}
