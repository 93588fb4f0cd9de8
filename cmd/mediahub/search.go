package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varoOP/mediahub/internal/app"
	"github.com/varoOP/mediahub/internal/domain"
)

func openApp() (*app.App, error) {
	application, err := app.NewApp()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize application: %w", err)
	}
	return application, nil
}

func mediaTypeFlag(cmd *cobra.Command) (domain.MediaType, error) {
	raw, _ := cmd.Flags().GetString("type")
	return domain.ParseMediaType(raw)
}

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search every source for a keyword",
	Long: `Search queries Douban, Bangumi, TMDb and Maoyan concurrently, merges
duplicates and prints one page of the combined result. Results are cached
for the configured cache_ttl.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mediaType, err := mediaTypeFlag(cmd)
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")
		keyword := strings.Join(args, " ")

		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		records, total, err := application.SearchPage(cmd.Context(), keyword, mediaType, page, limit)
		if err != nil {
			return fmt.Errorf("search failed: %s: %w", domain.UserMessage(err), err)
		}

		if err := printRecords(records); err != nil {
			return err
		}
		if !asJSON {
			fmt.Printf("\npage %d, %d of %d results\n", page, len(records), total)
		}

		if output != "" {
			n, err := application.Export(cmd.Context(), keyword, mediaType, output)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", n, output)
		}
		return nil
	},
}

var quickCmd = &cobra.Command{
	Use:   "quick <keyword>",
	Short: "Show the first hit from each source",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		return printQuick(application.QuickSearch(cmd.Context(), strings.Join(args, " ")))
	},
}

func init() {
	searchCmd.Flags().String("type", string(domain.MediaMovie), "media type: movie, tv or anime")
	searchCmd.Flags().Int("page", 1, "result page")
	searchCmd.Flags().Int("limit", 20, "results per page")
	searchCmd.Flags().String("output", "", "also write every result to this .json or .yaml file")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(quickCmd)
}
