package apkfleet

import "sync"

// RunStatus is the lifecycle state of the process-wide run.
type RunStatus string

const (
	StatusIdle      RunStatus = "idle"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
)

// Snapshot is the read-only view handed to pollers. Invariants:
// Completed == Success + Failed once Status is completed, and
// Completed <= TotalDevices at all times.
type Snapshot struct {
	Status       RunStatus      `json:"status"`
	TotalDevices int            `json:"total_devices"`
	Completed    int            `json:"completed"`
	Success      int            `json:"success"`
	Failed       int            `json:"failed"`
	Results      []ResultRecord `json:"results"`
	LogFile      string         `json:"log_file"`
}

// Progress is the single process-wide mutable run state. Writers are
// the orchestrator only; readers poll Snapshot. Reset and publish
// happen under one lock so a reader never observes a half-reset state.
type Progress struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewProgress returns an idle Progress.
func NewProgress() *Progress {
	return &Progress{snap: Snapshot{Status: StatusIdle}}
}

// Begin atomically resets the state for a new run and publishes it as
// running. It refuses (returning false, mutating nothing) while a run
// is already active.
func (p *Progress) Begin(total int, logPath string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.snap.Status == StatusRunning {
		return false
	}
	p.snap = Snapshot{
		Status:       StatusRunning,
		TotalDevices: total,
		Results:      make([]ResultRecord, 0, total),
		LogFile:      logPath,
	}
	return true
}

// Record folds one completed workflow into the counters. PARTIAL rides
// the success counter: the install went through.
func (p *Progress) Record(rec ResultRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Completed++
	if rec.Failed() {
		p.snap.Failed++
	} else {
		p.snap.Success++
	}
	p.snap.Results = append(p.snap.Results, rec)
}

// Finish marks the run completed.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Status = StatusCompleted
}

// Abort rolls the state back to idle after a failed run initialization
// (log file could not be created). Counters stay zero.
func (p *Progress) Abort() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Status = StatusIdle
}

// Running reports whether a run is active.
func (p *Progress) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Status == StatusRunning
}

// Snapshot returns a copy of the current state; the results slice is
// cloned so pollers cannot race the orchestrator.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := p.snap
	snap.Results = make([]ResultRecord, len(p.snap.Results))
	copy(snap.Results, p.snap.Results)
	return snap
}
