package apkfleet

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Configuration-level rejections, reported synchronously at submission
// time before any workflow starts.
var (
	ErrNoDevices      = errors.New("no devices specified")
	ErrAPKNotFound    = errors.New("APK file not found")
	ErrBridgeNotFound = errors.New("ADB executable not found")
	ErrRunActive      = errors.New("installation already in progress")
)

// MaxParallelCeiling is the hard safety cap on worker-pool size. Long
// install timeouts mean each worker can pin a wireless link for
// minutes; past this bound reliability drops faster than throughput
// rises.
const MaxParallelCeiling = 6

const defaultParallel = 4

// JobConfig is the immutable configuration of one installation run.
type JobConfig struct {
	Devices       []string
	APKPath       string
	BridgePath    string
	OldPackage    string
	LaunchPackage string
	AutoLaunch    bool
	MaxParallel   int
	LogPath       string
}

// JobRequest is the raw submission crossing the RPC boundary. Devices
// is newline-separated as entered in the front end.
type JobRequest struct {
	Devices       string `json:"devices"`
	APKPath       string `json:"apk_path"`
	BridgePath    string `json:"adb_path"`
	OldPackage    string `json:"old_package"`
	LaunchPackage string `json:"launch_package"`
	AutoLaunch    bool   `json:"auto_launch"`
	MaxParallel   int    `json:"max_parallel"`
}

// BuildJobConfig validates a request and freezes it into a JobConfig.
// The log file name carries the run-start timestamp so runs never
// collide.
func BuildJobConfig(req JobRequest, logDir string) (*JobConfig, error) {
	devices := SplitDevices(req.Devices)
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	if !fileExists(req.APKPath) {
		return nil, ErrAPKNotFound
	}
	if !fileExists(req.BridgePath) {
		return nil, ErrBridgeNotFound
	}

	parallel := req.MaxParallel
	if parallel <= 0 {
		parallel = defaultParallel
	}
	if parallel > MaxParallelCeiling {
		parallel = MaxParallelCeiling
	}

	logName := "install_log_" + time.Now().Format("20060102-150405") + ".csv"
	return &JobConfig{
		Devices:       devices,
		APKPath:       req.APKPath,
		BridgePath:    req.BridgePath,
		OldPackage:    strings.TrimSpace(req.OldPackage),
		LaunchPackage: strings.TrimSpace(req.LaunchPackage),
		AutoLaunch:    req.AutoLaunch,
		MaxParallel:   parallel,
		LogPath:       filepath.Join(logDir, logName),
	}, nil
}

// SplitDevices parses a newline-separated device list, trimming
// whitespace and discarding empty entries. Duplicates survive here;
// the orchestrator collapses them at run start.
func SplitDevices(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if d := strings.TrimSpace(line); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// dedupDevices collapses duplicate addresses, keeping first-occurrence
// order. Duplicate entries are permitted but wasteful, so totals count
// unique devices only.
func dedupDevices(devices []string) []string {
	seen := make(map[string]struct{}, len(devices))
	out := make([]string, 0, len(devices))
	for _, d := range devices {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
