package apkfleet

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Install timeouts are derived from APK size with every tier generous
// on purpose: the fleet runs over wireless links where a stalled
// transfer is far cheaper than a spuriously killed install.
const (
	installBaseAllowance   = 180 // fixed base, seconds
	installDeviceAllowance = 120 // on-device processing, seconds
	installTimeoutFloor    = 300 // never below five minutes
	networkSecondsPerMB    = 10  // assumes a slow, lossy link
)

// InstallTimeout computes the install timeout for an APK of sizeMB
// megabytes. Pure and monotonically non-decreasing in size.
func InstallTimeout(sizeMB float64) time.Duration {
	var sizeAllowance float64
	switch {
	case sizeMB <= 10:
		sizeAllowance = 120
	case sizeMB <= 50:
		sizeAllowance = sizeMB * 15
	case sizeMB <= 100:
		sizeAllowance = sizeMB * 20
	default:
		sizeAllowance = sizeMB * 25
	}
	total := installBaseAllowance + sizeAllowance + sizeMB*networkSecondsPerMB + installDeviceAllowance
	secs := int(total)
	if secs < installTimeoutFloor {
		secs = installTimeoutFloor
	}
	return time.Duration(secs) * time.Second
}

const fallbackAPKSizeMB = 10

// apkSizes caches artifact sizes by path. The artifact never changes
// mid-run, so one stat per path is enough for the whole fleet.
var apkSizes = struct {
	mu    sync.Mutex
	sizes map[string]float64
}{sizes: make(map[string]float64)}

// APKSizeMB returns the artifact size in megabytes, cached by path. A
// read failure substitutes a 10MB default instead of failing the
// caller; the resulting timeout is still above the floor.
func APKSizeMB(path string) float64 {
	apkSizes.mu.Lock()
	defer apkSizes.mu.Unlock()
	if size, ok := apkSizes.sizes[path]; ok {
		return size
	}
	size := float64(fallbackAPKSizeMB)
	if info, err := os.Stat(path); err == nil {
		size = float64(info.Size()) / (1024 * 1024)
	} else {
		log.Warn().Err(err).Str("apk", path).Msg("APK size unreadable, assuming 10MB")
	}
	apkSizes.sizes[path] = size
	return size
}
