package adb

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestCommandArgsDeviceSelector(t *testing.T) {
	got := commandArgs("10.0.0.1:5555", []string{"install", "-r", "-d", "app.apk"})
	want := []string{"-s", "10.0.0.1:5555", "install", "-r", "-d", "app.apk"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("commandArgs = %v, want %v", got, want)
	}
}

func TestCommandArgsHostLevel(t *testing.T) {
	got := commandArgs(NoSerial, []string{"connect", "10.0.0.1:5555"})
	want := []string{"connect", "10.0.0.1:5555"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("commandArgs = %v, want %v", got, want)
	}
}

func TestExecRunnerMissingBinaryIsReported(t *testing.T) {
	r := NewExecRunner(filepath.Join(t.TempDir(), "no-such-adb"))
	out, code := r.Run(context.Background(), "d1", []string{"devices"}, 5*time.Second)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(out, "adb exec failed") {
		t.Fatalf("output = %q, want synthetic spawn failure", out)
	}
}

func TestExecRunnerTimeoutIsReported(t *testing.T) {
	// /bin/sleep outlives the 50ms deadline, forcing the timeout path
	r := NewExecRunner("/bin/sleep")
	out, code := r.Run(context.Background(), NoSerial, []string{"5"}, 50*time.Millisecond)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !IsTimeoutOutput(out) {
		t.Fatalf("output = %q, want synthetic timeout", out)
	}
}
