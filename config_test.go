package apkfleet

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o755))
	return path
}

func validRequest(t *testing.T) JobRequest {
	return JobRequest{
		Devices:    "10.0.0.1:5555\n10.0.0.2:5555",
		APKPath:    writeTempFile(t, "app.apk"),
		BridgePath: writeTempFile(t, "adb"),
	}
}

func TestBuildJobConfigRejections(t *testing.T) {
	req := validRequest(t)
	req.Devices = "\n  \n"
	_, err := BuildJobConfig(req, t.TempDir())
	assert.ErrorIs(t, err, ErrNoDevices)

	req = validRequest(t)
	req.APKPath = filepath.Join(t.TempDir(), "missing.apk")
	_, err = BuildJobConfig(req, t.TempDir())
	assert.ErrorIs(t, err, ErrAPKNotFound)

	req = validRequest(t)
	req.BridgePath = ""
	_, err = BuildJobConfig(req, t.TempDir())
	assert.ErrorIs(t, err, ErrBridgeNotFound)
}

func TestBuildJobConfigClampsParallelism(t *testing.T) {
	req := validRequest(t)
	req.MaxParallel = 99
	cfg, err := BuildJobConfig(req, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, MaxParallelCeiling, cfg.MaxParallel)

	req = validRequest(t)
	req.MaxParallel = 0
	cfg, err = BuildJobConfig(req, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxParallel)
}

func TestBuildJobConfigLogName(t *testing.T) {
	dir := t.TempDir()
	cfg, err := BuildJobConfig(validRequest(t), dir)
	require.NoError(t, err)
	base := filepath.Base(cfg.LogPath)
	assert.True(t, strings.HasPrefix(base, "install_log_"), base)
	assert.True(t, strings.HasSuffix(base, ".csv"), base)
	assert.Equal(t, dir, filepath.Dir(cfg.LogPath))
}

func TestSplitDevices(t *testing.T) {
	devices := SplitDevices("  d1 \n\nd2\n  \nd2\n")
	assert.Equal(t, []string{"d1", "d2", "d2"}, devices)
}

func TestDedupDevices(t *testing.T) {
	devices := dedupDevices([]string{"d1", "d2", "d1", " d3 ", "", "d3"})
	assert.Equal(t, []string{"d1", "d2", "d3"}, devices)
}
