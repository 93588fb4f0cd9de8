package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/mediahub/internal/domain"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse TMDb top rated titles",
	Long: `Browse prints one display page of TMDb top rated titles. --category is
one of all, movies or tv. Pages hold 21 titles while
TMDb serves 20, so later pages trigger extra upstream fetches.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("category")
		category, err := domain.ParseCategory(raw)
		if err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")

		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		p, err := application.Browse(cmd.Context(), category, page)
		if err != nil {
			return fmt.Errorf("browse failed: %s: %w", domain.UserMessage(err), err)
		}

		if asJSON {
			return printJSON(p)
		}
		if err := printRecords(p.Items); err != nil {
			return err
		}
		fmt.Printf("\n%s page %d of %d\n", p.Category, p.Number, p.TotalPages)
		return nil
	},
}

func init() {
	browseCmd.Flags().String("category", domain.CategoryAll.String(), "all, movies or tv")
	browseCmd.Flags().Int("page", 1, "display page")

	rootCmd.AddCommand(browseCmd)
}
