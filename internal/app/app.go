package app

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/machine-maintenance-backend/internal/clients/redis"
	"github.com/yungbote/machine-maintenance-backend/internal/config"
	"github.com/yungbote/machine-maintenance-backend/internal/data/source"
	"github.com/yungbote/machine-maintenance-backend/internal/jobs/pipeline/feature_build"
	"github.com/yungbote/machine-maintenance-backend/internal/jobs/pipeline/shard_sample"
	jobrt "github.com/yungbote/machine-maintenance-backend/internal/jobs/runtime"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/sequence"
	"github.com/yungbote/machine-maintenance-backend/internal/observability"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/events"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

type App struct {
	Log      *logger.Logger
	Spec     *config.Spec
	Source   source.Source
	Store    objstore.Store
	Metrics  *observability.Metrics
	Events   events.Publisher
	Registry *jobrt.Registry
	Runner   *jobrt.Runner

	closers      []func() error
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a := &App{Log: log, Metrics: observability.NewMetrics()}

	a.otelShutdown = observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "featurebuild"),
		Environment: envutil.String("APP_ENV", ""),
		Version:     envutil.String("APP_VERSION", ""),
	})

	log.Info("Loading pipeline spec...")
	if a.Spec, err = config.Load(); err != nil {
		a.Close()
		return nil, err
	}

	src, closeSrc, err := resolveSource(log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Source = src
	a.closers = append(a.closers, closeSrc)

	storeCfg, err := objstore.ResolveConfigFromEnv()
	if err != nil {
		a.Close()
		return nil, classifyStorageProviderBootstrapError(storeCfg, err)
	}
	if a.Store, err = resolveShardStore(ctx, log, storeCfg); err != nil {
		a.Close()
		return nil, err
	}

	var (
		tracker  sequence.Tracker
		notifier jobrt.Notifier
	)
	if envutil.String("REDIS_ADDR", "") != "" {
		rt, err := redis.NewRunTracker(log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init redis run tracker: %w", err)
		}
		tracker, notifier = rt, rt
		a.closers = append(a.closers, rt.Close)
	} else {
		log.Info("REDIS_ADDR not set; run progress is logged only")
	}

	if a.Events, err = events.NewFromEnv(log); err != nil {
		a.Close()
		return nil, fmt.Errorf("init run events: %w", err)
	}
	a.closers = append(a.closers, a.Events.Close)

	a.Registry = jobrt.NewRegistry()
	handlers := []jobrt.Handler{
		feature_build.New(a.Source, a.Store, a.Spec, log, a.Metrics, tracker),
		shard_sample.New(a.Store, a.Spec, log, a.Events, a.Metrics),
	}
	for _, h := range handlers {
		if err := a.Registry.Register(h); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Runner = jobrt.NewRunner(a.Registry, notifier, log)
	return a, nil
}

// Run executes jobTypes in order under a fresh run id and pushes metrics
// whether or not the run succeeded.
func (a *App) Run(ctx context.Context, jobTypes []string) error {
	runID := jobrt.NewRunID()
	a.Log.Info("Starting run", "run_id", runID, "jobs", jobTypes)
	_, err := a.Runner.Run(ctx, runID, jobTypes, nil)
	if perr := a.Metrics.Push(ctx, a.Log, envutil.String("PUSHGATEWAY_URL", ""), "featurebuild", runID); perr != nil {
		a.Log.Warn("Metrics push failed", "error", perr)
	}
	if err != nil {
		return err
	}
	a.Log.Info("Run complete", "run_id", runID)
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.Log != nil {
			a.Log.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
