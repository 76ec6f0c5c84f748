package adb

import (
	"fmt"
	"strings"
	"time"
)

// The adb binary signals outcomes through literal substrings in its
// text output. Every literal the fleet depends on lives here so the
// coupling to the tool's format stays in one file.

const (
	// markerConnected appears in `adb connect` output for both fresh
	// ("connected to host:port") and reused ("already connected to
	// host:port") sessions.
	markerConnected = "connected"

	// markerInstallSuccess is adb's own install confirmation. It must be
	// matched exactly as emitted, capital S included.
	markerInstallSuccess = "Success"

	// markerLaunchError appears in `am start` output when the activity
	// could not be resolved or started, even with exit code 0.
	markerLaunchError = "Error"

	// markerRoot is the payload our root probes ask the device to echo
	// back under su.
	markerRoot = "ROOT_OK"

	timeoutOutputPrefix = "timeout after "
)

// IsConnectSuccess reports whether `adb connect` output indicates a
// usable session.
func IsConnectSuccess(out string) bool {
	return strings.Contains(out, markerConnected)
}

// IsInstallSuccess reports whether `adb install` confirmed the install.
func IsInstallSuccess(out string) bool {
	return strings.Contains(out, markerInstallSuccess)
}

// IsLaunchError reports whether `am start` output carries an activity
// error despite the command exiting.
func IsLaunchError(out string) bool {
	return strings.Contains(out, markerLaunchError)
}

// HasRootMarker reports whether a su probe echoed our marker back.
func HasRootMarker(out string) bool {
	return strings.Contains(out, markerRoot)
}

// EchoMatches reports whether a shell echo probe returned its payload.
func EchoMatches(out, payload string) bool {
	return strings.Contains(out, payload)
}

// TimeoutOutput renders the synthetic output a Runner reports when a
// command hit its deadline.
func TimeoutOutput(timeout time.Duration) string {
	return fmt.Sprintf("%s%ds", timeoutOutputPrefix, int(timeout.Seconds()))
}

// IsTimeoutOutput recognizes a Runner's synthetic timeout output.
func IsTimeoutOutput(out string) bool {
	return strings.HasPrefix(out, timeoutOutputPrefix)
}
