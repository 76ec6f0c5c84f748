// Package apkfleet bulk-installs an APK onto a fleet of network
// devices through an external adb binary, tracking per-device outcomes
// with conservative timeouts and bounded parallelism.
package apkfleet

import (
	"time"
	"unicode/utf8"
)

// Outcome classifies a device's terminal workflow state.
type Outcome string

const (
	// OutcomeSuccess: install confirmed and, when requested, the app launched.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomePartial: install confirmed but a requested launch failed.
	// Counted with successes: the install itself went through.
	OutcomePartial Outcome = "PARTIAL"
	// OutcomeFailed: connection or install failed.
	OutcomeFailed Outcome = "FAILED"
)

// Verification tags carried by a ResultRecord. Uninstall of a previous
// package is best-effort, so it only ever reaches ATTEMPTED.
const (
	TagNo        = "NO"
	TagYes       = "YES"
	TagAttempted = "ATTEMPTED"
)

// ResultRecord is the immutable per-device outcome produced exactly
// once per run, appended to the in-memory results list and the CSV log.
type ResultRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	Device            string    `json:"device"`
	Outcome           Outcome   `json:"outcome"`
	Details           string    `json:"details"`
	UninstallVerified string    `json:"uninstall_verified"`
	InstallVerified   string    `json:"install_verified"`
	LaunchStatus      string    `json:"launch_status"`
}

// Failed reports whether the record counts into the failed bucket.
func (r ResultRecord) Failed() bool {
	return r.Outcome == OutcomeFailed
}

func (r ResultRecord) csvRow() []string {
	return []string{
		r.Timestamp.Format(time.RFC3339),
		r.Device,
		string(r.Outcome),
		r.Details,
		r.UninstallVerified,
		r.InstallVerified,
		r.LaunchStatus,
	}
}

const maxDetailLen = 150

// truncateDetail caps diagnostic strings carried in result records so a
// pathological adb output cannot bloat the log. The cut backs up to a
// rune boundary so multi-byte output never yields invalid UTF-8.
func truncateDetail(s string) string {
	if len(s) <= maxDetailLen {
		return s
	}
	cut := maxDetailLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
