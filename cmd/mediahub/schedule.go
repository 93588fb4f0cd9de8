package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/mediahub/internal/domain"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the Bangumi weekly airing calendar",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		s, err := application.Schedule(cmd.Context())
		if err != nil {
			return fmt.Errorf("schedule failed: %s: %w", domain.UserMessage(err), err)
		}
		return printSchedule(s)
	},
}

var showingCmd = &cobra.Command{
	Use:   "showing",
	Short: "List films in cinemas from Maoyan",
	RunE: func(cmd *cobra.Command, args []string) error {
		coming, _ := cmd.Flags().GetBool("coming")

		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		fetch := application.NowShowing
		if coming {
			fetch = application.ComingSoon
		}

		records, err := fetch(cmd.Context())
		if err != nil {
			return fmt.Errorf("showing failed: %s: %w", domain.UserMessage(err), err)
		}
		return printRecords(records)
	},
}

func init() {
	showingCmd.Flags().Bool("coming", false, "list upcoming releases instead")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(showingCmd)
}
