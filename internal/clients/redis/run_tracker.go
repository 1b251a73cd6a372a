package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/machine-maintenance-backend/internal/jobs/runtime"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

// RunTracker records per-machine shard status and job lifecycle for a
// pipeline run, and publishes job transitions on a pub/sub channel.
type RunTracker struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	ttl     time.Duration
}

func MachineKey(runID, machineID string) string {
	return fmt.Sprintf("run:%s:machine:%s", runID, machineID)
}

func JobKey(runID, jobType string) string {
	return fmt.Sprintf("run:%s:job:%s", runID, jobType)
}

// NewRunTracker connects to REDIS_ADDR and pings it.
func NewRunTracker(log *logger.Logger) (*RunTracker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(envutil.String("REDIS_ADDR", ""))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    envutil.String("REDIS_PASSWORD", ""),
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRunTrackerWithClient(log, rdb), nil
}

func NewRunTrackerWithClient(log *logger.Logger, rdb *goredis.Client) *RunTracker {
	return &RunTracker{
		log:     log.With("service", "RedisRunTracker"),
		rdb:     rdb,
		channel: envutil.String("REDIS_CHANNEL", "forecast.runs"),
		ttl:     envutil.Duration("REDIS_PROGRESS_TTL", 7*24*time.Hour),
	}
}

func (t *RunTracker) MarkMachine(ctx context.Context, runID, machineID, status string) error {
	if t == nil || t.rdb == nil {
		return fmt.Errorf("redis run tracker not initialized")
	}
	return t.rdb.Set(ctx, MachineKey(runID, machineID), status, t.ttl).Err()
}

func (t *RunTracker) MachineStatus(ctx context.Context, runID, machineID string) (string, error) {
	if t == nil || t.rdb == nil {
		return "", fmt.Errorf("redis run tracker not initialized")
	}
	return t.rdb.Get(ctx, MachineKey(runID, machineID)).Result()
}

func (t *RunTracker) JobProgress(ctx context.Context, job *runtime.JobRun) { t.recordJob(ctx, job) }
func (t *RunTracker) JobFailed(ctx context.Context, job *runtime.JobRun)   { t.recordJob(ctx, job) }
func (t *RunTracker) JobDone(ctx context.Context, job *runtime.JobRun)     { t.recordJob(ctx, job) }

func (t *RunTracker) recordJob(ctx context.Context, job *runtime.JobRun) {
	if t == nil || t.rdb == nil || job == nil {
		return
	}
	raw, err := json.Marshal(job)
	if err != nil {
		t.log.Warn("encode job status", "error", err)
		return
	}
	if err := t.rdb.Set(ctx, JobKey(job.RunID, job.JobType), raw, t.ttl).Err(); err != nil {
		t.log.Warn("redis job status write failed", "run_id", job.RunID, "job", job.JobType, "error", err)
		return
	}
	if err := t.rdb.Publish(ctx, t.channel, raw).Err(); err != nil {
		t.log.Warn("redis job status publish failed", "run_id", job.RunID, "job", job.JobType, "error", err)
	}
}

func (t *RunTracker) Close() error {
	if t == nil || t.rdb == nil {
		return nil
	}
	return t.rdb.Close()
}
