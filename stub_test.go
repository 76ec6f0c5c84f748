package apkfleet

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/apkfleet/apkfleet/pkg/adb"
	"github.com/apkfleet/apkfleet/pkg/retry"
)

// stubRunner scripts adb responses per call and records every
// invocation for assertions.
type stubRunner struct {
	mu      sync.Mutex
	calls   [][]string
	respond func(serial string, args []string) (string, int)
}

func (s *stubRunner) Run(ctx context.Context, serial string, args []string, timeout time.Duration) (string, int) {
	s.mu.Lock()
	call := append([]string{serial}, args...)
	s.calls = append(s.calls, call)
	s.mu.Unlock()
	if s.respond != nil {
		return s.respond(serial, args)
	}
	return healthyBridge(serial, args)
}

func (s *stubRunner) countCalls(verb string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if len(call) > 1 && call[1] == verb {
			n++
		}
	}
	return n
}

func (s *stubRunner) countShell(sub string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if len(call) > 2 && call[1] == "shell" && strings.Contains(strings.Join(call[2:], " "), sub) {
			n++
		}
	}
	return n
}

// healthyBridge emulates a device that accepts every operation.
func healthyBridge(serial string, args []string) (string, int) {
	if len(args) == 0 {
		return "", 1
	}
	switch args[0] {
	case "connect":
		return "connected to " + args[1] + "\n", 0
	case "disconnect":
		return "", 0
	case "install":
		return "Performing Streamed Install\nSuccess\n", 0
	case "uninstall":
		return "Success\n", 0
	case "shell":
		if len(args) > 1 && strings.HasPrefix(args[1], "echo") {
			// echo the quoted payload back
			return strings.Trim(strings.TrimPrefix(args[1], "echo"), ` "`) + "\n", 0
		}
		if len(args) > 1 && args[1] == "am" {
			return "Starting: Intent { cmp=... }\n", 0
		}
		return "", 0
	}
	return "", 0
}

// newTestWorkflow builds a workflow with all settle delays removed.
func newTestWorkflow(runner adb.Runner) *Workflow {
	conn := adb.NewManager(runner)
	conn.SettleDelay = 0
	wf := NewWorkflow(runner, conn)
	wf.connectPolicy = retry.Policy{MaxAttempts: 2}
	wf.sleep = func(context.Context, time.Duration) {}
	wf.sizeMB = func(string) float64 { return 10 }
	return wf
}

func testJobConfig(devices ...string) *JobConfig {
	return &JobConfig{
		Devices:     devices,
		APKPath:     "/tmp/app.apk",
		BridgePath:  "/tmp/adb",
		MaxParallel: 4,
	}
}
