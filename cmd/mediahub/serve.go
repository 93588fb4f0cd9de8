package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/varoOP/mediahub/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Long: `Serve exposes search, browsing, the airing calendar and the collection
over HTTP until interrupted. With --warmup the first page of every browse
category is loaded before listening.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		warmup, _ := cmd.Flags().GetBool("warmup")

		application, err := openApp()
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if warmup {
			if err := application.Warmup(ctx); err != nil {
				return fmt.Errorf("warmup failed: %w", err)
			}
		}

		srv := server.New(application.Logger(), application)
		if err := srv.ListenAndServe(ctx, application.Config().ListenAddr); err != nil {
			return fmt.Errorf("serve failed: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides listen_addr)")
	serveCmd.Flags().Bool("warmup", false, "load the first browse pages before listening")
	viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}
