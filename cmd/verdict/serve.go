package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the resolution scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "graceful shutdown budget")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, log, err := build()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	// Wait for shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Serve(ctx, shutdownTimeout); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("verdict stopped")
	return nil
}
