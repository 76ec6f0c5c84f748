package apkfleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/apkfleet/apkfleet/pkg/adb"
)

// logBatchSize batches result rows before each log flush so a large
// fleet does not fsync per device.
const logBatchSize = 3

// Recorder mirrors runs and results into durable storage. The default
// is a no-op; the sqlite history store implements it.
type Recorder interface {
	BeginRun(ctx context.Context, runID string, cfg *JobConfig, total int) error
	RecordResult(ctx context.Context, runID string, rec ResultRecord) error
	FinishRun(ctx context.Context, runID string, success, failed int) error
}

type noopRecorder struct{}

func (noopRecorder) BeginRun(context.Context, string, *JobConfig, int) error  { return nil }
func (noopRecorder) RecordResult(context.Context, string, ResultRecord) error { return nil }
func (noopRecorder) FinishRun(context.Context, string, int, int) error        { return nil }

// Orchestrator fans the device workflow out across a run's fleet with
// a bounded worker pool, aggregates results in completion order, and
// keeps the Progress store and CSV log current.
type Orchestrator struct {
	progress *Progress
	recorder Recorder

	// newRunner and newWorkflow build a run's command runner and
	// workflow; swappable in tests.
	newRunner   func(bridgePath string) adb.Runner
	newWorkflow func(runner adb.Runner, conn *adb.Manager) *Workflow

	wg sync.WaitGroup
}

// NewOrchestrator builds an orchestrator around the shared progress
// store. A nil recorder disables history.
func NewOrchestrator(progress *Progress, recorder Recorder) *Orchestrator {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Orchestrator{
		progress: progress,
		recorder: recorder,
		newRunner: func(bridgePath string) adb.Runner {
			return adb.NewExecRunner(bridgePath)
		},
		newWorkflow: NewWorkflow,
	}
}

// Start validates run-level preconditions, claims the progress store,
// initializes the log file, and drives the fleet in the background.
// The only synchronous failures are an active run and an unwritable
// log; everything device-level lands in result records.
func (o *Orchestrator) Start(ctx context.Context, cfg *JobConfig) error {
	devices := dedupDevices(cfg.Devices)
	if len(devices) == 0 {
		return ErrNoDevices
	}
	if !o.progress.Begin(len(devices), cfg.LogPath) {
		return ErrRunActive
	}
	logw, err := NewCSVLog(cfg.LogPath)
	if err != nil {
		o.progress.Abort()
		return err
	}

	runID := uuid.NewString()
	if err := o.recorder.BeginRun(ctx, runID, cfg, len(devices)); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("history begin run failed")
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(ctx, cfg, devices, logw, runID)
	}()
	return nil
}

// Wait blocks until the active run (if any) finishes.
func (o *Orchestrator) Wait() { o.wg.Wait() }

func (o *Orchestrator) execute(ctx context.Context, cfg *JobConfig, devices []string, logw *CSVLog, runID string) {
	workers := fleetWorkers(cfg.MaxParallel, len(devices))
	log.Info().
		Int("devices", len(devices)).
		Int("workers", workers).
		Str("log", cfg.LogPath).
		Msg("starting fleet installation")

	runner := o.newRunner(cfg.BridgePath)
	conn := adb.NewManager(runner)
	wf := o.newWorkflow(runner, conn)

	results := make(chan ResultRecord)
	go func() {
		grp := newFleetGroup(ctx, workers)
		for _, device := range devices {
			device := device
			grp.Go(func() error {
				results <- o.runDevice(ctx, wf, cfg, device)
				return nil
			})
		}
		_ = grp.Wait()
		close(results)
	}()

	batch := make([]ResultRecord, 0, logBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := logw.Append(batch); err != nil {
			log.Error().Err(err).Msg("install log flush failed")
		}
		batch = batch[:0]
	}

	for rec := range results {
		o.progress.Record(rec)
		if err := o.recorder.RecordResult(ctx, runID, rec); err != nil {
			log.Error().Err(err).Str("device", rec.Device).Msg("history record result failed")
		}
		batch = append(batch, rec)
		if len(batch) >= logBatchSize {
			flush()
		}
		snap := o.progress.Snapshot()
		log.Info().
			Str("device", rec.Device).
			Str("outcome", string(rec.Outcome)).
			Int("completed", snap.Completed).
			Int("total", snap.TotalDevices).
			Msg("device workflow completed")
	}
	flush()
	if err := logw.Close(); err != nil {
		log.Error().Err(err).Msg("install log close failed")
	}

	// Sessions never outlive the run.
	conn.Clear()
	o.progress.Finish()

	snap := o.progress.Snapshot()
	if err := o.recorder.FinishRun(ctx, runID, snap.Success, snap.Failed); err != nil {
		log.Error().Err(err).Str("run_id", runID).Msg("history finish run failed")
	}
	log.Info().
		Int("success", snap.Success).
		Int("failed", snap.Failed).
		Msg("fleet installation completed")
}

// runDevice executes one workflow, converting a panic into a FAILED
// record so a single device can never abort the rest of the fleet.
func (o *Orchestrator) runDevice(ctx context.Context, wf *Workflow, cfg *JobConfig, device string) (rec ResultRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("device", device).Interface("panic", r).Msg("device workflow panicked")
			rec = ResultRecord{
				Timestamp:         time.Now(),
				Device:            device,
				Outcome:           OutcomeFailed,
				Details:           truncateDetail(fmt.Sprintf("workflow panic: %v", r)),
				UninstallVerified: TagNo,
				InstallVerified:   TagNo,
				LaunchStatus:      TagNo,
			}
		}
	}()
	return wf.Install(ctx, cfg, device)
}

// fleetWorkers sizes a run's worker pool: never more workers than
// devices, never above the safety ceiling, never below one.
func fleetWorkers(configured, devices int) int {
	workers := configured
	if workers <= 0 {
		workers = 1
	}
	if workers > MaxParallelCeiling {
		workers = MaxParallelCeiling
	}
	if workers > devices {
		workers = devices
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// newFleetGroup is the single worker-pool construction path used by
// every fleet-wide operation (installs and diagnostics alike).
func newFleetGroup(ctx context.Context, limit int) *errgroup.Group {
	grp, _ := errgroup.WithContext(ctx)
	grp.SetLimit(limit)
	return grp
}
