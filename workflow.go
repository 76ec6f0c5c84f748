package apkfleet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/apkfleet/apkfleet/pkg/adb"
	"github.com/apkfleet/apkfleet/pkg/retry"
)

const (
	uninstallTimeout  = 60 * time.Second
	launchTimeout     = 10 * time.Second
	launchSettleDelay = 2 * time.Second
)

// launchActivities are the conventional entry-point names tried in
// order after install; the first clean start wins. A monkey launcher
// intent is the final fallback.
var launchActivities = []string{
	"MainActivity",
	"LauncherActivity",
	"SplashActivity",
	"HomeActivity",
}

// Workflow drives the per-device install state machine:
// connect → uninstall old (optional) → install → launch (optional),
// with a best-effort disconnect on every exit path. Each invocation
// yields exactly one ResultRecord; nothing here panics the fleet.
type Workflow struct {
	runner adb.Runner
	conn   *adb.Manager

	connectPolicy retry.Policy
	sizeMB        func(path string) float64
	sleep         func(ctx context.Context, d time.Duration)
}

// NewWorkflow wires a workflow against a runner and a shared connection
// registry.
func NewWorkflow(runner adb.Runner, conn *adb.Manager) *Workflow {
	return &Workflow{
		runner:        runner,
		conn:          conn,
		connectPolicy: adb.DefaultConnectPolicy,
		sizeMB:        APKSizeMB,
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// Install runs the full state machine for one device and returns its
// result record.
func (w *Workflow) Install(ctx context.Context, cfg *JobConfig, device string) ResultRecord {
	rec := ResultRecord{
		Timestamp:         time.Now(),
		Device:            device,
		UninstallVerified: TagNo,
		InstallVerified:   TagNo,
		LaunchStatus:      TagNo,
	}
	// Cleanup runs on every exit path, success or failure.
	defer w.conn.Disconnect(ctx, device)

	log.Info().Str("device", device).Msg("starting installation")
	if !w.conn.Ensure(ctx, device, w.connectPolicy) {
		rec.Outcome = OutcomeFailed
		rec.Details = "connection failed"
		return rec
	}
	log.Info().Str("device", device).Msg("connected")

	if cfg.OldPackage != "" {
		rec.UninstallVerified = w.uninstallOld(ctx, device, cfg.OldPackage)
	}

	sizeMB := w.sizeMB(cfg.APKPath)
	timeout := InstallTimeout(sizeMB)
	log.Info().
		Str("device", device).
		Float64("apk_mb", sizeMB).
		Dur("timeout", timeout).
		Msg("installing APK")

	out, _ := w.runner.Run(ctx, device, []string{"install", "-r", "-d", cfg.APKPath}, timeout)
	if !adb.IsInstallSuccess(out) {
		rec.Outcome = OutcomeFailed
		if adb.IsTimeoutOutput(out) {
			// Distinct from a reported install error: the tool never answered.
			rec.Details = fmt.Sprintf("install timeout after %ds", int(timeout.Seconds()))
		} else {
			rec.Details = truncateDetail("install failed: " + strings.TrimSpace(out))
		}
		log.Error().Str("device", device).Str("detail", rec.Details).Msg("installation failed")
		return rec
	}
	rec.InstallVerified = TagYes
	log.Info().Str("device", device).Msg("installation successful")

	if cfg.AutoLaunch && cfg.LaunchPackage != "" {
		w.sleep(ctx, launchSettleDelay)
		launched, how := w.launch(ctx, device, cfg.LaunchPackage)
		if launched {
			rec.LaunchStatus = TagYes
			rec.Outcome = OutcomeSuccess
			rec.Details = "installed successfully and launched (" + how + ")"
			log.Info().Str("device", device).Str("via", how).Msg("app launched")
		} else {
			// Launch failure never invalidates a confirmed install.
			rec.Outcome = OutcomePartial
			rec.Details = "installed successfully but launch failed"
			log.Warn().Str("device", device).Msg("app launch failed after install")
		}
		return rec
	}

	rec.Outcome = OutcomeSuccess
	rec.Details = "installed successfully"
	return rec
}

// uninstallOld removes a previously deployed package. Both the package
// uninstall and the user-scoped fallback are best-effort; their
// failures only shape the verification tag.
func (w *Workflow) uninstallOld(ctx context.Context, device, pkg string) string {
	log.Info().Str("device", device).Str("package", pkg).Msg("uninstalling previous package")
	w.runner.Run(ctx, device, []string{"uninstall", pkg}, uninstallTimeout)
	w.runner.Run(ctx, device, []string{"shell", "pm", "uninstall", "--user", "0", pkg}, uninstallTimeout)
	return TagAttempted
}

// launch starts the installed app, trying named activities first and a
// launcher-intent monkey broadcast as the fallback.
func (w *Workflow) launch(ctx context.Context, device, pkg string) (bool, string) {
	for _, activity := range launchActivities {
		component := pkg + "/." + activity
		out, code := w.runner.Run(ctx, device, []string{"shell", "am", "start", "-n", component}, launchTimeout)
		if code == 0 && !adb.IsLaunchError(out) {
			return true, activity
		}
	}
	_, code := w.runner.Run(ctx, device,
		[]string{"shell", "monkey", "-p", pkg, "-c", "android.intent.category.LAUNCHER", "1"}, launchTimeout)
	if code == 0 {
		return true, "monkey"
	}
	return false, ""
}
