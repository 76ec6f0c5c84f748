package main

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/apkfleet/apkfleet"
	"github.com/apkfleet/apkfleet/pkg/history"
)

func newInstallCmd() *cobra.Command {
	var (
		devicesFile   string
		devices       []string
		apkPath       string
		bridgePath    string
		oldPackage    string
		launchPackage string
		autoLaunch    bool
		maxParallel   int
		logDir        string
		historyDB     string
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install an APK onto a device fleet and wait for completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceList := strings.Join(devices, "\n")
			if devicesFile != "" {
				raw, err := os.ReadFile(devicesFile)
				if err != nil {
					return errors.Wrap(err, "read devices file")
				}
				deviceList = string(raw)
			}
			// Let a bare binary name resolve through PATH.
			if resolved, err := exec.LookPath(bridgePath); err == nil {
				bridgePath = resolved
			}

			cfg, err := apkfleet.BuildJobConfig(apkfleet.JobRequest{
				Devices:       deviceList,
				APKPath:       apkPath,
				BridgePath:    bridgePath,
				OldPackage:    oldPackage,
				LaunchPackage: launchPackage,
				AutoLaunch:    autoLaunch,
				MaxParallel:   maxParallel,
			}, logDir)
			if err != nil {
				return err
			}

			var recorder apkfleet.Recorder
			if historyDB != "" {
				store, err := history.Open(historyDB)
				if err != nil {
					return errors.Wrap(err, "open history db")
				}
				defer store.Close()
				recorder = store
			}

			progress := apkfleet.NewProgress()
			orch := apkfleet.NewOrchestrator(progress, recorder)
			if err := orch.Start(context.Background(), cfg); err != nil {
				return err
			}
			orch.Wait()

			snap := progress.Snapshot()
			log.Info().
				Int("total", snap.TotalDevices).
				Int("success", snap.Success).
				Int("failed", snap.Failed).
				Str("log", snap.LogFile).
				Msg("installation run finished")
			if snap.Failed > 0 {
				return errors.Errorf("%d of %d devices failed", snap.Failed, snap.TotalDevices)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&devicesFile, "devices-file", "", "file with one device address per line")
	cmd.Flags().StringSliceVar(&devices, "device", nil, "device address (repeatable)")
	cmd.Flags().StringVar(&apkPath, "apk", "", "path to the APK artifact")
	cmd.Flags().StringVar(&bridgePath, "adb", "adb", "path to the adb executable")
	cmd.Flags().StringVar(&oldPackage, "old-package", "", "package to uninstall before installing")
	cmd.Flags().StringVar(&launchPackage, "launch-package", "", "package to launch after install")
	cmd.Flags().BoolVar(&autoLaunch, "launch", false, "launch the app after a successful install")
	cmd.Flags().IntVar(&maxParallel, "parallel", 4, "worker pool size (capped at 6)")
	cmd.Flags().StringVar(&logDir, "log-dir", ".", "directory for the CSV outcome log")
	cmd.Flags().StringVar(&historyDB, "history-db", "", "sqlite database for run history")
	_ = cmd.MarkFlagRequired("apk")
	return cmd
}
