package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet"
	"github.com/apkfleet/apkfleet/internal/server"
	"github.com/apkfleet/apkfleet/pkg/history"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP daemon for the web front end",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig()
			if err != nil {
				return err
			}

			var recorder apkfleet.Recorder
			if cfg.HistoryDB != "" {
				store, err := history.Open(cfg.HistoryDB)
				if err != nil {
					return errors.Wrap(err, "open history db")
				}
				defer store.Close()
				recorder = store
				log.Info().Str("db", cfg.HistoryDB).Msg("run history enabled")
			}

			progress := apkfleet.NewProgress()
			orch := apkfleet.NewOrchestrator(progress, recorder)
			srv := server.New(cfg, orch, progress)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			// Let an in-flight run finish writing its log before exit.
			orch.Wait()
			return nil
		},
	}
}
