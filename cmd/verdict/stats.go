package main

import (
	"context"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the stored accuracy statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := build()
		if err != nil {
			return err
		}
		defer log.Sync()
		defer a.Close()

		stats, err := a.Stats(context.Background())
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
