package apkfleet

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallTimeoutSmallSizes(t *testing.T) {
	// for s <= 10MB: base 180 + flat 120 + network 10*s + device 120
	for _, s := range []float64{0, 0.5, 1, 5, 9.9, 10} {
		want := time.Duration(180+120+int(10*s)+120) * time.Second
		assert.Equal(t, want, InstallTimeout(s), "size %.1fMB", s)
	}
}

func TestInstallTimeoutTiers(t *testing.T) {
	assert.Equal(t, 520*time.Second, InstallTimeout(10))
	// 50MB: 180 + 750 + 500 + 120
	assert.Equal(t, 1550*time.Second, InstallTimeout(50))
	// 100MB: 180 + 2000 + 1000 + 120
	assert.Equal(t, 3300*time.Second, InstallTimeout(100))
	// 200MB: 180 + 5000 + 2000 + 120
	assert.Equal(t, 7300*time.Second, InstallTimeout(200))
}

func TestInstallTimeoutFloor(t *testing.T) {
	assert.GreaterOrEqual(t, InstallTimeout(0), 300*time.Second)
	assert.GreaterOrEqual(t, InstallTimeout(0.001), 300*time.Second)
	assert.GreaterOrEqual(t, InstallTimeout(5000), 300*time.Second)
}

func TestInstallTimeoutMonotonic(t *testing.T) {
	prev := InstallTimeout(0)
	for s := 0.5; s <= 250; s += 0.5 {
		cur := InstallTimeout(s)
		require.GreaterOrEqual(t, cur, prev, "timeout shrank at %.1fMB", s)
		prev = cur
	}
}

func TestAPKSizeMBReadsAndCaches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.apk")
	require.NoError(t, os.WriteFile(path, make([]byte, 2*1024*1024), 0o644))

	assert.InDelta(t, 2.0, APKSizeMB(path), 0.01)

	// the artifact does not change mid-run, so the first stat wins
	require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0o644))
	assert.InDelta(t, 2.0, APKSizeMB(path), 0.01)
}

func TestAPKSizeMBDefaultsOnReadFailure(t *testing.T) {
	assert.Equal(t, 10.0, APKSizeMB(filepath.Join(t.TempDir(), "missing.apk")))
}
