package apkfleet

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/apkfleet/apkfleet/pkg/adb"
)

// Parallelism bounds per diagnostic. Connectivity tests are cheap;
// anything touching su or getprop keeps a tighter bound.
const (
	connTestParallel = 8
	rootParallel     = 6
	infoParallel     = 5
	clockParallel    = 5
)

// DiagResult is one device's outcome from a fleet diagnostic.
type DiagResult struct {
	Device string `json:"device"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail"`
}

// forEachDevice runs fn against every device with bounded parallelism,
// returning results indexed by the input order.
func forEachDevice(ctx context.Context, devices []string, limit int, fn func(ctx context.Context, device string) DiagResult) []DiagResult {
	results := make([]DiagResult, len(devices))
	grp := newFleetGroup(ctx, diagWorkers(limit, len(devices)))
	for i, device := range devices {
		i, device := i, device
		grp.Go(func() error {
			results[i] = fn(ctx, device)
			return nil
		})
	}
	_ = grp.Wait()
	return results
}

// TestConnections probes connectivity to each device with a clean
// disconnect/connect/echo cycle, reporting per-device round trips and
// the connected count.
func TestConnections(ctx context.Context, runner adb.Runner, devices []string) ([]DiagResult, int) {
	devices = dedupDevices(devices)
	results := forEachDevice(ctx, devices, connTestParallel, func(ctx context.Context, device string) DiagResult {
		ok, detail, elapsed := adb.TestConnection(ctx, runner, device)
		return DiagResult{
			Device: device,
			OK:     ok,
			Detail: fmt.Sprintf("%s (%dms)", detail, elapsed.Milliseconds()),
		}
	})
	return results, countOK(results)
}

// CheckRootStatus probes each device for elevated access.
func CheckRootStatus(ctx context.Context, runner adb.Runner, conn *adb.Manager, devices []string) ([]DiagResult, int) {
	devices = dedupDevices(devices)
	results := forEachDevice(ctx, devices, rootParallel, func(ctx context.Context, device string) DiagResult {
		if !conn.Ensure(ctx, device, adb.DefaultConnectPolicy) {
			return DiagResult{Device: device, Detail: "connection failed"}
		}
		rooted, detail := adb.RootStatus(ctx, runner, device)
		return DiagResult{Device: device, OK: rooted, Detail: detail}
	})
	return results, countOK(results)
}

// CollectDeviceInfo reads model and OS release from each device.
func CollectDeviceInfo(ctx context.Context, runner adb.Runner, conn *adb.Manager, devices []string) []DiagResult {
	devices = dedupDevices(devices)
	return forEachDevice(ctx, devices, infoParallel, func(ctx context.Context, device string) DiagResult {
		if !conn.Ensure(ctx, device, adb.DefaultConnectPolicy) {
			return DiagResult{Device: device, Detail: "connection failed"}
		}
		model, version := adb.DeviceInfo(ctx, runner, device)
		return DiagResult{
			Device: device,
			OK:     true,
			Detail: fmt.Sprintf("%s (Android %s)", model, version),
		}
	})
}

// SetFleetClock sets each device's system date. Devices without
// elevated access fail individually; the fleet proceeds.
func SetFleetClock(ctx context.Context, runner adb.Runner, conn *adb.Manager, devices []string, target time.Time) ([]DiagResult, int) {
	devices = dedupDevices(devices)
	results := forEachDevice(ctx, devices, clockParallel, func(ctx context.Context, device string) DiagResult {
		defer conn.Disconnect(ctx, device)
		if !conn.Ensure(ctx, device, adb.DefaultConnectPolicy) {
			return DiagResult{Device: device, Detail: "connection failed"}
		}
		ok, detail := adb.SetClock(ctx, runner, device, target)
		if !ok {
			log.Warn().Str("device", device).Str("detail", detail).Msg("clock set failed")
		}
		return DiagResult{Device: device, OK: ok, Detail: detail}
	})
	return results, countOK(results)
}

// diagWorkers sizes a diagnostic pool from its per-operation bound.
// Diagnostics are short probes, not installs, so the install safety
// ceiling does not apply; only the device count caps the pool.
func diagWorkers(limit, devices int) int {
	if limit > devices {
		limit = devices
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

func countOK(results []DiagResult) int {
	n := 0
	for _, r := range results {
		if r.OK {
			n++
		}
	}
	return n
}
