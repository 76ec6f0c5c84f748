package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet/pkg/history"
)

func newHistoryCmd() *cobra.Command {
	var (
		historyDB string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent installation runs from the history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(historyDB)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(context.Background(), limit)
			if err != nil {
				return err
			}
			for _, run := range runs {
				log.Info().
					Str("run_id", run.RunID).
					Str("started", run.StartedAt).
					Str("finished", run.FinishedAt).
					Str("apk", run.APKPath).
					Int("total", run.Total).
					Int("success", run.Success).
					Int("failed", run.Failed).
					Msg("run")
			}
			if len(runs) == 0 {
				log.Info().Msg("no runs recorded")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&historyDB, "history-db", "apkfleet_history.sqlite", "sqlite database path")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}
