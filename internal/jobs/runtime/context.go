package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

const (
	StatusRunning   = "running"
	StatusFailed    = "failed"
	StatusSucceeded = "succeeded"
)

// JobRun is the in-memory record of one job execution within a pipeline run.
type JobRun struct {
	RunID      string          `json:"run_id"`
	JobType    string          `json:"job_type"`
	Status     string          `json:"status"`
	Stage      string          `json:"stage"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Notifier receives job lifecycle transitions. Implementations must not
// fail the job; delivery problems are theirs to log.
type Notifier interface {
	JobProgress(ctx context.Context, job *JobRun)
	JobFailed(ctx context.Context, job *JobRun)
	JobDone(ctx context.Context, job *JobRun)
}

/*
Context is the execution handle for a single job run.
Handlers never mutate Job directly; they report through
Progress/Fail/Succeed so that the notifier and the run record stay in step.
*/
type Context struct {
	Ctx    context.Context
	Job    *JobRun
	Notify Notifier
	Log    *logger.Logger

	payload map[string]any
}

func NewContext(ctx context.Context, job *JobRun, payload map[string]any, notify Notifier, log *logger.Logger) *Context {
	if payload == nil {
		payload = map[string]any{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Context{Ctx: ctx, Job: job, Notify: notify, Log: log, payload: payload}
}

// Payload never returns nil.
func (c *Context) Payload() map[string]any {
	if c.payload == nil {
		c.payload = map[string]any{}
	}
	return c.payload
}

func (c *Context) PayloadString(key string) (string, bool) {
	v, ok := c.Payload()[key]
	if !ok || v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return s, s != ""
}

// Set shares a value with later jobs of the same run.
func (c *Context) Set(key string, v any) {
	c.Payload()[key] = v
}

func (c *Context) ctx() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

// Progress publishes a non-terminal status update. Ignored once the job is
// terminal.
func (c *Context) Progress(stage string, pct int, msg string) {
	if c == nil || c.Job == nil || c.terminal() {
		return
	}
	c.Job.Stage = stage
	c.Job.Progress = pct
	c.Job.Message = msg
	c.Job.UpdatedAt = time.Now().UTC()
	c.Log.Info("Job progress", "job", c.Job.JobType, "stage", stage, "progress", pct, "message", msg)
	if c.Notify != nil {
		c.Notify.JobProgress(c.ctx(), c.Job)
	}
}

// Fail marks the job terminally failed at stage.
func (c *Context) Fail(stage string, err error) {
	if c == nil || c.Job == nil || c.terminal() {
		return
	}
	now := time.Now().UTC()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.Job.Status = StatusFailed
	c.Job.Stage = stage
	c.Job.Message = ""
	c.Job.Error = msg
	c.Job.UpdatedAt = now
	c.Job.FinishedAt = &now
	c.Log.Error("Job failed", "job", c.Job.JobType, "stage", stage, "error", msg)
	if c.Notify != nil {
		c.Notify.JobFailed(c.ctx(), c.Job)
	}
}

// Succeed marks the job terminally succeeded and stores result as JSON.
func (c *Context) Succeed(finalStage string, result any) {
	if c == nil || c.Job == nil || c.terminal() {
		return
	}
	now := time.Now().UTC()
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			c.Fail(finalStage, fmt.Errorf("encode result: %w", err))
			return
		}
		c.Job.Result = b
	}
	c.Job.Status = StatusSucceeded
	c.Job.Stage = finalStage
	c.Job.Progress = 100
	c.Job.Message = ""
	c.Job.Error = ""
	c.Job.UpdatedAt = now
	c.Job.FinishedAt = &now
	c.Log.Info("Job succeeded", "job", c.Job.JobType, "stage", finalStage)
	if c.Notify != nil {
		c.Notify.JobDone(c.ctx(), c.Job)
	}
}

func (c *Context) terminal() bool {
	return c.Job.Status == StatusFailed || c.Job.Status == StatusSucceeded
}

// JobError is returned by the runner for a job that reported Fail.
type JobError struct {
	JobType string
	Stage   string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed at %s: %s", e.JobType, e.Stage, e.Message)
}
