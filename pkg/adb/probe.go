package adb

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	rootProbeTimeout = 8 * time.Second
	whichSuTimeout   = 6 * time.Second
	getpropTimeout   = 8 * time.Second
	clockSetTimeout  = 12 * time.Second
	clockReadTimeout = 8 * time.Second
)

// Su invocation flavors. Vendor su builds disagree on syntax, so probes
// detect which one answers before issuing privileged commands.
const (
	SuZero  = "su 0"
	SuDashC = "su -c"
)

// RootStatus probes serial for elevated access, trying `su 0`, then
// `su -c`, then a bare su binary lookup. First hit wins.
func RootStatus(ctx context.Context, r Runner, serial string) (bool, string) {
	if out, code := r.Run(ctx, serial, []string{"shell", `su 0 echo "ROOT_OK"`}, rootProbeTimeout); code == 0 && HasRootMarker(out) {
		return true, "rooted (su 0 confirmed)"
	}
	if out, code := r.Run(ctx, serial, []string{"shell", `su -c "echo ROOT_OK"`}, rootProbeTimeout); code == 0 && HasRootMarker(out) {
		return true, "rooted (su -c confirmed)"
	}
	if out, code := r.Run(ctx, serial, []string{"shell", "which su"}, whichSuTimeout); code == 0 && strings.TrimSpace(out) != "" {
		return true, "rooted (su binary found)"
	}
	return false, "not rooted"
}

// SuFlavor returns the su syntax serial answers to, or "" when no
// elevation is available.
func SuFlavor(ctx context.Context, r Runner, serial string) string {
	if out, code := r.Run(ctx, serial, []string{"shell", `su 0 echo "ROOT_OK"`}, rootProbeTimeout); code == 0 && HasRootMarker(out) {
		return SuZero
	}
	if out, code := r.Run(ctx, serial, []string{"shell", `su -c "echo ROOT_OK"`}, rootProbeTimeout); code == 0 && HasRootMarker(out) {
		return SuDashC
	}
	return ""
}

// DeviceInfo reads the device model and OS release via property lookups.
// Missing properties degrade to "Unknown" rather than failing.
func DeviceInfo(ctx context.Context, r Runner, serial string) (model, version string) {
	model, version = "Unknown", "Unknown"
	if out, code := r.Run(ctx, serial, []string{"shell", "getprop ro.product.model"}, getpropTimeout); code == 0 {
		if v := strings.TrimSpace(out); v != "" {
			model = v
		}
	}
	if out, code := r.Run(ctx, serial, []string{"shell", "getprop ro.build.version.release"}, getpropTimeout); code == 0 {
		if v := strings.TrimSpace(out); v != "" {
			version = v
		}
	}
	return model, version
}

// TestConnection runs a clean disconnect/connect/echo cycle against
// serial without touching any session registry, reporting success and
// the elapsed round-trip time.
func TestConnection(ctx context.Context, r Runner, serial string) (bool, string, time.Duration) {
	start := time.Now()
	r.Run(ctx, NoSerial, []string{"disconnect", serial}, disconnectTimeout)

	out, _ := r.Run(ctx, NoSerial, []string{"connect", serial}, 10*time.Second)
	if !IsConnectSuccess(out) {
		return false, "connect failed: " + strings.TrimSpace(out), time.Since(start)
	}
	sleepCtx(ctx, settleDelay)
	out, code := r.Run(ctx, serial, []string{"shell", `echo "connection_test"`}, clockReadTimeout)
	elapsed := time.Since(start)
	if code == 0 && EchoMatches(out, "connection_test") {
		return true, "connected", elapsed
	}
	return false, "connected but shell probe failed", elapsed
}

// clockDateLayouts are the renderings tried when setting the device
// clock; `date -s` argument parsing varies between Android builds.
var clockDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"2006.01.02",
}

// clockSetters are the setter syntaxes tried per date rendering.
var clockSetters = []string{"date -s", "date", "toolbox date -s", "busybox date -s"}

// SetClock sets serial's system date, requiring elevated access. It
// walks every date rendering and setter syntax under the detected su
// flavor, verifying each attempt by reading the clock back and checking
// the target year appears. Returns the device's reported date on
// success.
func SetClock(ctx context.Context, r Runner, serial string, target time.Time) (bool, string) {
	flavor := SuFlavor(ctx, r, serial)
	if flavor == "" {
		return false, "not rooted or root access denied"
	}

	year := fmt.Sprintf("%d", target.Year())
	for _, layout := range clockDateLayouts {
		rendered := target.Format(layout)
		for _, setter := range clockSetters {
			var cmd string
			if flavor == SuZero {
				cmd = fmt.Sprintf(`su 0 %s "%s"`, setter, rendered)
			} else {
				cmd = fmt.Sprintf(`su -c "%s \"%s\""`, setter, rendered)
			}
			out, code := r.Run(ctx, serial, []string{"shell", cmd}, clockSetTimeout)
			if code != 0 || strings.Contains(strings.ToLower(out), "invalid") {
				continue
			}
			sleepCtx(ctx, settleDelay)
			readback, code := r.Run(ctx, serial, []string{"shell", "date"}, clockReadTimeout)
			if code != 0 {
				continue
			}
			current := strings.TrimSpace(readback)
			if strings.Contains(current, year) {
				return true, "date set: " + current
			}
		}
	}
	return false, "date setting failed with all methods"
}
