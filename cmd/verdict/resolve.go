package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	handlers "github.com/newthinker/verdict/internal/api/handler/api"
	"github.com/newthinker/verdict/internal/api/response"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run one resolution cycle and print the result",
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, log, err := build()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.RunOnce(ctx)
	if err != nil {
		detail := response.Detail(err)
		writeJSON(cmd.OutOrStdout(), handlers.ResolveResult{Error: err.Error(), Code: detail.Code})
		return err
	}
	return writeJSON(cmd.OutOrStdout(), handlers.NewResolveResult(result))
}
