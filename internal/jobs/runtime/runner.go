package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

// Runner executes registered jobs in order under one run id, sharing a
// payload so later jobs see what earlier ones recorded.
type Runner struct {
	Registry *Registry
	Notify   Notifier
	log      *logger.Logger
}

func NewRunner(reg *Registry, notify Notifier, baseLog *logger.Logger) *Runner {
	return &Runner{Registry: reg, Notify: notify, log: baseLog.With("component", "JobRunner")}
}

func NewRunID() string { return uuid.New().String() }

// Run stops at the first job that fails or returns an error.
func (r *Runner) Run(ctx context.Context, runID string, jobTypes []string, payload map[string]any) ([]*JobRun, error) {
	if runID == "" {
		runID = NewRunID()
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["run_id"] = runID
	handlers, err := r.Registry.Resolve(jobTypes)
	if err != nil {
		return nil, err
	}

	var runs []*JobRun
	for _, h := range handlers {
		now := time.Now().UTC()
		job := &JobRun{RunID: runID, JobType: h.Type(), Status: StatusRunning, StartedAt: now, UpdatedAt: now}
		runs = append(runs, job)
		log := r.log.With("run_id", runID, "job", h.Type())
		jc := NewContext(ctx, job, payload, r.Notify, log)

		if err := h.Run(jc); err != nil {
			jc.Fail(job.Stage, err)
		}
		if job.Status == StatusFailed {
			return runs, &JobError{JobType: job.JobType, Stage: job.Stage, Message: job.Error}
		}
		if job.Status != StatusSucceeded {
			jc.Succeed("done", nil)
		}
	}
	return runs, nil
}
