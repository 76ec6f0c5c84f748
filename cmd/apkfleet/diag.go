package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet"
	"github.com/apkfleet/apkfleet/pkg/adb"
)

// diagFlags are the flags shared by every per-device diagnostic command.
type diagFlags struct {
	devices     []string
	devicesFile string
	bridgePath  string
}

func (f *diagFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.devices, "device", nil, "device address (repeatable)")
	cmd.Flags().StringVar(&f.devicesFile, "devices-file", "", "file with one device address per line")
	cmd.Flags().StringVar(&f.bridgePath, "adb", "adb", "path to the adb executable")
}

func (f *diagFlags) resolve() ([]string, adb.Runner, error) {
	raw := strings.Join(f.devices, "\n")
	if f.devicesFile != "" {
		data, err := os.ReadFile(f.devicesFile)
		if err != nil {
			return nil, nil, errors.Wrap(err, "read devices file")
		}
		raw = string(data)
	}
	devices := apkfleet.SplitDevices(raw)
	if len(devices) == 0 {
		return nil, nil, apkfleet.ErrNoDevices
	}
	return devices, adb.NewExecRunner(f.bridgePath), nil
}

func logDiagResults(op string, results []apkfleet.DiagResult, ok int) {
	for _, res := range results {
		evt := log.Info()
		if !res.OK {
			evt = log.Warn()
		}
		evt.Str("device", res.Device).Bool("ok", res.OK).Str("detail", res.Detail).Msg(op)
	}
	log.Info().Int("ok", ok).Int("total", len(results)).Msg(op + " summary")
}

func newTestConnCmd() *cobra.Command {
	var flags diagFlags
	cmd := &cobra.Command{
		Use:   "test-conn",
		Short: "Probe connectivity to each device",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, runner, err := flags.resolve()
			if err != nil {
				return err
			}
			results, connected := apkfleet.TestConnections(context.Background(), runner, devices)
			logDiagResults("connection test", results, connected)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newCheckRootCmd() *cobra.Command {
	var flags diagFlags
	cmd := &cobra.Command{
		Use:   "check-root",
		Short: "Probe each device for elevated access",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, runner, err := flags.resolve()
			if err != nil {
				return err
			}
			conn := adb.NewManager(runner)
			results, rooted := apkfleet.CheckRootStatus(context.Background(), runner, conn, devices)
			logDiagResults("root check", results, rooted)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newDeviceInfoCmd() *cobra.Command {
	var flags diagFlags
	cmd := &cobra.Command{
		Use:   "device-info",
		Short: "Read model and OS release from each device",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, runner, err := flags.resolve()
			if err != nil {
				return err
			}
			conn := adb.NewManager(runner)
			results := apkfleet.CollectDeviceInfo(context.Background(), runner, conn, devices)
			logDiagResults("device info", results, len(results))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newSetClockCmd() *cobra.Command {
	var flags diagFlags
	var date string
	cmd := &cobra.Command{
		Use:   "set-clock",
		Short: "Set the system date on each device (requires root)",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, runner, err := flags.resolve()
			if err != nil {
				return err
			}
			target, err := time.Parse("2006-01-02", date)
			if err != nil {
				return errors.New("invalid --date, expected YYYY-MM-DD")
			}
			conn := adb.NewManager(runner)
			results, set := apkfleet.SetFleetClock(context.Background(), runner, conn, devices, target)
			logDiagResults("clock set", results, set)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&date, "date", "", "target date as YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
