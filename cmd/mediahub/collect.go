package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/mediahub/internal/collection"
	"github.com/varoOP/mediahub/internal/domain"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Manage the local collection",
}

var collectAddCmd = &cobra.Command{
	Use:   "add <source> <id>",
	Short: "Fetch a record by source id and add it to the collection",
	Long: `Add looks the record up on its source and stores it. Source is one of
douban, bangumi, tmdb or maoyan. TMDb ids need --type to pick between the
movie and tv namespaces.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := domain.ParseSourceType(args[0])
		if err != nil {
			return err
		}
		mediaType, err := mediaTypeFlag(cmd)
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetString("status")
		notes, _ := cmd.Flags().GetString("notes")

		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		record, err := application.Lookup(cmd.Context(), st, mediaType, args[1])
		if err != nil {
			return fmt.Errorf("lookup failed: %s: %w", domain.UserMessage(err), err)
		}

		item, err := application.Collect(cmd.Context(), record, status, notes)
		if err != nil {
			return fmt.Errorf("collect failed: %s: %w", domain.UserMessage(err), err)
		}

		if asJSON {
			return printJSON(item)
		}
		fmt.Printf("Added %s (%s %s) as %s\n", item.Title, item.SourceType, item.SourceID, item.WatchStatus)
		return nil
	},
}

var collectRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a record from the collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.Uncollect(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove failed: %s: %w", domain.UserMessage(err), err)
		}
		fmt.Printf("Removed %s\n", args[0])
		return nil
	},
}

var collectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the collection, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		items, err := application.Collection(cmd.Context())
		if err != nil {
			return fmt.Errorf("list failed: %w", err)
		}
		return printCollection(items)
	},
}

var collectCheckCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Report whether a source id is collected",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		ok, err := application.IsCollected(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("check failed: %w", err)
		}
		if asJSON {
			return printJSON(map[string]any{"source_id": args[0], "collected": ok})
		}
		fmt.Println(ok)
		return nil
	},
}

func init() {
	collectAddCmd.Flags().String("type", string(domain.MediaMovie), "media type for tmdb ids: movie or tv")
	collectAddCmd.Flags().String("status", collection.DefaultWatchStatus, "watch status")
	collectAddCmd.Flags().String("notes", "", "free-form notes")

	collectCmd.AddCommand(collectAddCmd, collectRemoveCmd, collectListCmd, collectCheckCmd)
	rootCmd.AddCommand(collectCmd)
}
