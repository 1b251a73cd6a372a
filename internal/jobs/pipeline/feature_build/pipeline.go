package feature_build

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	jobrt "github.com/yungbote/machine-maintenance-backend/internal/jobs/runtime"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/join"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/label"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/rolling"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/schema"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/sequence"
	"github.com/yungbote/machine-maintenance-backend/internal/observability"
)

// Result is what the job records on success.
type Result struct {
	RunID         string             `json:"run_id"`
	ManifestKey   string             `json:"manifest_key"`
	Rows          int                `json:"rows"`
	Machines      int                `json:"machines"`
	Shards        int                `json:"shards"`
	Sequences     int                `json:"sequences"`
	Distribution  label.Distribution `json:"distribution"`
	RollingFailed []string           `json:"rolling_failed,omitempty"`
}

var ErrNoRows = errors.New("no rows left after cleaning")

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	runID, _ := jc.PayloadString("run_id")
	spec := p.spec
	log := p.log.With("run_id", runID)
	workers := spec.Workers

	seed, deterministic := spec.ResolveSeed()
	if !deterministic {
		log.Warn("PIPELINE_SEED not set; orphan imputation is not reproducible", "seed", seed)
	}
	jc.Set("seed", seed)

	// join
	jc.Progress("join", 5, "Joining source tables")
	cfg := join.Config{
		Tables:               map[domain.Table]string{},
		Required:             map[domain.Table][]string{},
		ExcludeSensorColumns: spec.Sensor.ExcludeColumns,
		ChunkSize:            spec.ChunkSize,
		Workers:              workers,
		OrphanPolicy:         spec.Label.OrphanPolicy,
		Rand:                 rand.New(rand.NewSource(seed)),
	}
	for _, t := range domain.AllTables() {
		cfg.Tables[t] = spec.TableName(t)
		cfg.Required[t] = spec.Required(t)
	}
	var joined *join.Joined
	err := p.stage(jc, "join", func(ctx context.Context) error {
		var err error
		joined, err = join.NewEngine(p.src, cfg, log).Build(ctx)
		if err != nil {
			return err
		}
		observability.ReportDataQuality(ctx, log, p.metrics, "join", joined.Report.Issues()...)
		return nil
	})
	if err != nil {
		return nil
	}
	tbl := joined.Table

	// rolling
	jc.Progress("rolling", 25, "Computing rolling features")
	var rollingFailed []string
	err = p.stage(jc, "rolling", func(ctx context.Context) error {
		res, err := rolling.Apply(ctx, tbl, rolling.Spec{Metrics: spec.Rolling.Metrics, Windows: spec.Windows()}, workers, log)
		if err != nil {
			return err
		}
		for _, f := range res.Failed {
			rollingFailed = append(rollingFailed, f.Error())
		}
		return nil
	})
	if err != nil {
		return nil
	}

	// label
	jc.Progress("label", 40, "Generating forward labels")
	err = p.stage(jc, "label", func(ctx context.Context) error {
		return label.Apply(ctx, tbl, joined.Events, spec.Label.Tolerance.Duration, workers)
	})
	if err != nil {
		return nil
	}

	// clean
	jc.Progress("clean", 50, "Forward-filling and dropping incomplete rows")
	err = p.stage(jc, "clean", func(ctx context.Context) error {
		st, err := label.Clean(ctx, tbl, spec.Clean.ForwardFillLimit, workers)
		if err != nil {
			return err
		}
		observability.ReportDataQuality(ctx, log, p.metrics, "clean",
			observability.Imputed("forward_fill", st.Filled),
			observability.Dropped("null_after_fill", st.Dropped),
		)
		if tbl.Rows() == 0 {
			return ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil
	}
	dist := label.Distribute(tbl)
	machines := len(tbl.Partitions)

	// normalize
	jc.Progress("normalize", 60, "Fitting normalizer")
	prefix := spec.Sequence.OutputPrefix
	var scaler *normalize.Scaler
	err = p.stage(jc, "normalize", func(ctx context.Context) error {
		var err error
		if scaler, err = normalize.Fit(ctx, tbl, workers); err != nil {
			return err
		}
		contract, err := schema.New(spec.Contract.Version, spec.Sequence.TimeSteps, spec.Contract.MissingPolicy, scaler)
		if err != nil {
			return err
		}
		rawScaler, err := scaler.Marshal()
		if err != nil {
			return err
		}
		rawContract, err := contract.Marshal()
		if err != nil {
			return err
		}
		if err := p.store.Put(ctx, sequence.ScalerKey(prefix), rawScaler, "application/json"); err != nil {
			return fmt.Errorf("write scaler: %w", err)
		}
		if err := p.store.Put(ctx, sequence.ContractKey(prefix), rawContract, "application/json"); err != nil {
			return fmt.Errorf("write feature contract: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil
	}

	// shards
	jc.Progress("shards", 70, "Writing per-machine sequence shards")
	var written *sequence.WriteStats
	err = p.stage(jc, "shards", func(ctx context.Context) error {
		w := sequence.NewWriter(p.store, prefix, spec.Sequence.TimeSteps, workers, log)
		w.RunID, w.Tracker, w.Metrics = runID, p.tracker, p.metrics
		var err error
		written, err = w.WriteAll(ctx, tbl, scaler)
		return err
	})
	if err != nil {
		return nil
	}

	manifest := &sequence.Manifest{
		Version:     sequence.ManifestVersion,
		RunID:       runID,
		CreatedAt:   time.Now().UTC(),
		TimeSteps:   spec.Sequence.TimeSteps,
		Columns:     scaler.Columns,
		ScalerKey:   sequence.ScalerKey(prefix),
		ContractKey: sequence.ContractKey(prefix),
		Shards:      written.Shards,
		Skipped:     written.Skipped,
		Sequences:   written.Sequences,
		Positive:    dist.Positive,
		Negative:    dist.Negative,
	}
	raw, err := manifest.Marshal()
	if err == nil {
		err = p.store.Put(jc.Ctx, sequence.ManifestKey(prefix), raw, "application/json")
	}
	if err != nil {
		jc.Fail("manifest", fmt.Errorf("write manifest: %w", err))
		return nil
	}
	jc.Set("manifest_key", sequence.ManifestKey(prefix))

	log.Info("Feature build complete",
		"rows", dist.Rows,
		"machines", machines,
		"shards", len(written.Shards),
		"sequences", written.Sequences,
		"negative", dist.Negative,
		"positive", dist.Positive,
		"positive_fraction", dist.PositiveFraction(),
	)
	jc.Succeed("done", Result{
		RunID:         runID,
		ManifestKey:   sequence.ManifestKey(prefix),
		Rows:          dist.Rows,
		Machines:      machines,
		Shards:        len(written.Shards),
		Sequences:     written.Sequences,
		Distribution:  dist,
		RollingFailed: rollingFailed,
	})
	return nil
}

// stage runs fn under a span and fails the job on error.
func (p *Pipeline) stage(jc *jobrt.Context, name string, fn func(ctx context.Context) error) error {
	ctx, end := observability.StartStage(jc.Ctx, p.metrics, name)
	err := fn(ctx)
	end(err)
	if err != nil {
		jc.Fail(name, err)
	}
	return err
}
