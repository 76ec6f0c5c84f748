// Package adb wraps an external adb binary for fleet operations. The
// binary is treated as an opaque command: callers get its combined
// text output and exit code, never a Go error for tool-level failures.
package adb

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NoSerial marks host-level commands (connect/disconnect) that must not
// carry a -s device selector.
const NoSerial = ""

// Runner executes one adb invocation with a hard timeout and returns the
// combined stdout+stderr text and the exit code. Implementations never
// block past the timeout; on timeout or spawn failure they report a
// synthetic failure output and exit code 1.
type Runner interface {
	Run(ctx context.Context, serial string, args []string, timeout time.Duration) (string, int)
}

// ExecRunner runs the adb binary found at BridgePath.
type ExecRunner struct {
	BridgePath string
}

// NewExecRunner returns a Runner backed by the adb binary at path.
func NewExecRunner(path string) *ExecRunner {
	return &ExecRunner{BridgePath: path}
}

func (r *ExecRunner) Run(ctx context.Context, serial string, args []string, timeout time.Duration) (string, int) {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.BridgePath, commandArgs(serial, args)...)
	out, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		log.Debug().
			Str("serial", serial).
			Strs("args", args).
			Dur("timeout", timeout).
			Msg("adb command timed out")
		return TimeoutOutput(timeout), 1
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode()
		}
		// The process never started (missing or non-executable binary).
		return fmt.Sprintf("adb exec failed: %v", err), 1
	}
	return string(out), 0
}

// commandArgs prefixes the device selector unless the command is a
// host-level one.
func commandArgs(serial string, args []string) []string {
	if serial == NoSerial {
		return args
	}
	full := make([]string, 0, len(args)+2)
	full = append(full, "-s", serial)
	full = append(full, args...)
	return full
}
