package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "apkfleet",
	Short: "Bulk APK deployment over adb for device fleets",
	Long: `apkfleet installs an APK onto many network devices in parallel
through an external adb binary, with conservative per-device timeouts,
connection caching, and a CSV outcome log. It runs either as a one-shot
CLI or as an HTTP daemon polled by a web front end.`,
}

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	rootCmd.AddCommand(
		newServeCmd(),
		newInstallCmd(),
		newTestConnCmd(),
		newCheckRootCmd(),
		newDeviceInfoCmd(),
		newSetClockCmd(),
		newHistoryCmd(),
	)
	_ = env.Ensure()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("apkfleet command failed")
	}
}
