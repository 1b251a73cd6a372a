package redis

import (
	"context"
	"testing"

	"github.com/yungbote/machine-maintenance-backend/internal/jobs/runtime"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

func TestKeys(t *testing.T) {
	if got := MachineKey("r1", "42"); got != "run:r1:machine:42" {
		t.Fatalf("MachineKey: got=%q", got)
	}
	if got := JobKey("r1", "feature_build"); got != "run:r1:job:feature_build" {
		t.Fatalf("JobKey: got=%q", got)
	}
}

func TestNewRunTrackerRequiresAddr(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	if _, err := NewRunTracker(logger.Nop()); err == nil {
		t.Fatalf("NewRunTracker: expected error without REDIS_ADDR")
	}
}

func TestNilTracker(t *testing.T) {
	var tr *RunTracker
	if err := tr.MarkMachine(context.Background(), "r", "1", "WRITTEN"); err == nil {
		t.Fatalf("MarkMachine on nil tracker: expected error")
	}
	tr.JobDone(context.Background(), &runtime.JobRun{RunID: "r", JobType: "x"})
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
