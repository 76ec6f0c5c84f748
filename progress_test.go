package apkfleet

import (
	"testing"
	"time"
)

func TestProgressBeginRefusesActiveRun(t *testing.T) {
	p := NewProgress()
	if !p.Begin(3, "first.csv") {
		t.Fatal("idle progress must accept a run")
	}
	if p.Begin(9, "second.csv") {
		t.Fatal("running progress must refuse a second run")
	}
	snap := p.Snapshot()
	if snap.TotalDevices != 3 || snap.LogFile != "first.csv" {
		t.Fatalf("rejected Begin mutated state: %+v", snap)
	}
}

func TestProgressCountersAndInvariant(t *testing.T) {
	p := NewProgress()
	p.Begin(3, "log.csv")

	p.Record(ResultRecord{Device: "d1", Outcome: OutcomeSuccess, Timestamp: time.Now()})
	p.Record(ResultRecord{Device: "d2", Outcome: OutcomePartial, Timestamp: time.Now()})
	p.Record(ResultRecord{Device: "d3", Outcome: OutcomeFailed, Timestamp: time.Now()})
	p.Finish()

	snap := p.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s", snap.Status)
	}
	// PARTIAL counts with successes: the install went through
	if snap.Success != 2 || snap.Failed != 1 {
		t.Fatalf("success=%d failed=%d", snap.Success, snap.Failed)
	}
	if snap.Completed != snap.Success+snap.Failed || snap.Completed != snap.TotalDevices {
		t.Fatalf("invariant broken: %+v", snap)
	}
}

func TestProgressBeginResetsAtomically(t *testing.T) {
	p := NewProgress()
	p.Begin(2, "old.csv")
	p.Record(ResultRecord{Device: "stale", Outcome: OutcomeFailed})
	p.Finish()

	if !p.Begin(5, "new.csv") {
		t.Fatal("completed progress must accept a new run")
	}
	snap := p.Snapshot()
	if snap.TotalDevices != 5 || snap.LogFile != "new.csv" {
		t.Fatalf("new run state: %+v", snap)
	}
	if snap.Completed != 0 || snap.Failed != 0 || len(snap.Results) != 0 {
		t.Fatalf("stale results visible after reset: %+v", snap)
	}
}

func TestProgressSnapshotIsolation(t *testing.T) {
	p := NewProgress()
	p.Begin(1, "log.csv")
	p.Record(ResultRecord{Device: "d1", Outcome: OutcomeSuccess})

	snap := p.Snapshot()
	snap.Results[0].Device = "mutated"

	if p.Snapshot().Results[0].Device != "d1" {
		t.Fatal("snapshot must not share the results slice with the store")
	}
}

func TestProgressAbortReturnsToIdle(t *testing.T) {
	p := NewProgress()
	p.Begin(1, "log.csv")
	p.Abort()
	if p.Running() {
		t.Fatal("aborted progress must not be running")
	}
	if !p.Begin(1, "retry.csv") {
		t.Fatal("aborted progress must accept a new run")
	}
}
