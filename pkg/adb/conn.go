package adb

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/apkfleet/apkfleet/pkg/retry"
)

const (
	probeTimeout      = 4 * time.Second
	connectTimeout    = 12 * time.Second
	verifyTimeout     = 6 * time.Second
	disconnectTimeout = 5 * time.Second
	settleDelay       = time.Second

	probePayload  = "ping"
	verifyPayload = "test_ok"
)

// DefaultConnectPolicy mirrors the conservative two-attempt ladder used
// across the fleet: 2s before the second attempt, growing by 2s.
var DefaultConnectPolicy = retry.Policy{
	MaxAttempts: 2,
	Initial:     2 * time.Second,
	Step:        2 * time.Second,
}

// Manager tracks which devices currently hold a verified adb session.
// Wireless adb links drop silently, so a cached session is always
// re-probed before reuse and evicted on the first failed probe. The
// registry is shared by every concurrently running workflow of a run
// and guarded by a single lock held only for short critical sections.
type Manager struct {
	runner Runner

	// SettleDelay is the pause between bridge calls while establishing a
	// session; wireless stacks need a beat after connect before the
	// first shell lands. Tests may zero it.
	SettleDelay time.Duration

	mu       sync.Mutex
	sessions map[string]bool
}

// NewManager returns a Manager with an empty session registry.
func NewManager(runner Runner) *Manager {
	return &Manager{
		runner:      runner,
		SettleDelay: settleDelay,
		sessions:    make(map[string]bool),
	}
}

// Ensure establishes a verified live session to serial, reusing a cached
// session when a fast probe confirms it. It returns false only after the
// policy's attempts are exhausted.
func (m *Manager) Ensure(ctx context.Context, serial string, policy retry.Policy) bool {
	// Fast path: probe a cached session under the lock. The probe's own
	// short timeout bounds how long the lock is held, so a dead device
	// cannot stall the rest of the fleet for a full install timeout.
	m.mu.Lock()
	if m.sessions[serial] {
		out, code := m.runner.Run(ctx, serial, []string{"shell", `echo "` + probePayload + `"`}, probeTimeout)
		if code == 0 && EchoMatches(out, probePayload) {
			m.mu.Unlock()
			return true
		}
		delete(m.sessions, serial)
		log.Debug().Str("serial", serial).Msg("cached session failed probe, reconnecting")
	}
	m.mu.Unlock()

	return policy.Do(ctx, func(attempt int) bool {
		// Best-effort disconnect clears half-open state left by a drop.
		m.runner.Run(ctx, NoSerial, []string{"disconnect", serial}, disconnectTimeout)
		sleepCtx(ctx, m.SettleDelay)

		out, _ := m.runner.Run(ctx, NoSerial, []string{"connect", serial}, connectTimeout)
		if !IsConnectSuccess(out) {
			log.Debug().Str("serial", serial).Int("attempt", attempt).Msg("adb connect refused")
			return false
		}

		sleepCtx(ctx, m.SettleDelay)
		out, code := m.runner.Run(ctx, serial, []string{"shell", `echo "` + verifyPayload + `"`}, verifyTimeout)
		if code != 0 || !EchoMatches(out, verifyPayload) {
			log.Debug().Str("serial", serial).Int("attempt", attempt).Msg("session verify probe failed")
			return false
		}

		m.mu.Lock()
		m.sessions[serial] = true
		m.mu.Unlock()
		return true
	})
}

// Disconnect tears the session down best-effort and drops it from the
// registry. Its result is intentionally ignored by callers.
func (m *Manager) Disconnect(ctx context.Context, serial string) {
	m.runner.Run(ctx, NoSerial, []string{"disconnect", serial}, disconnectTimeout)
	m.mu.Lock()
	delete(m.sessions, serial)
	m.mu.Unlock()
}

// Clear forgets every cached session. Called once a run finishes;
// sessions never survive across runs.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.sessions = make(map[string]bool)
	m.mu.Unlock()
}

// Known reports whether serial currently has a cached session.
func (m *Manager) Known(serial string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[serial]
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
