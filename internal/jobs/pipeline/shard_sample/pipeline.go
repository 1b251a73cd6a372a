package shard_sample

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	jobrt "github.com/yungbote/machine-maintenance-backend/internal/jobs/runtime"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/sequence"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/weights"
	"github.com/yungbote/machine-maintenance-backend/internal/observability"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/events"
)

func (p *Pipeline) Run(jc *jobrt.Context) error {
	if jc == nil || jc.Job == nil {
		return nil
	}
	runID, _ := jc.PayloadString("run_id")
	log := p.log.With("run_id", runID)
	spec := p.spec
	prefix := spec.Sequence.OutputPrefix

	seed, deterministic := spec.ResolveSeed()
	if !deterministic {
		log.Warn("PIPELINE_SEED not set; shard sampling is not reproducible", "seed", seed)
	}

	jc.Progress("sample", 10, "Sampling shards")
	manifestKey := sequence.ManifestKey(prefix)
	ctx, end := observability.StartStage(jc.Ctx, p.metrics, "sample")
	manifest, err := p.readManifest(ctx, manifestKey)
	var sampled *sequence.Sampled
	if err == nil {
		sampled, err = sequence.LoadSample(ctx, p.store, manifest.ShardKeys(), spec.Sequence.SampleFraction, rand.New(rand.NewSource(seed)), log)
	}
	end(err)
	if err != nil {
		jc.Fail("sample", err)
		return nil
	}

	jc.Progress("split", 50, "Splitting train and test")
	train, test, err := sequence.Split(sampled.Batches, spec.Sequence.TestFraction)
	if err != nil {
		jc.Fail("split", err)
		return nil
	}

	jc.Progress("weights", 70, "Computing class weights")
	w, err := weights.Compute(train.Labels)
	if err != nil {
		jc.Fail("weights", err)
		return nil
	}
	keyed := weights.Keyed(w)

	jc.Progress("manifest", 85, "Updating training manifest")
	manifest.Sample = &sequence.SampleSummary{
		Seed:           seed,
		Fraction:       spec.Sequence.SampleFraction,
		TestFraction:   spec.Sequence.TestFraction,
		Keys:           sampled.Keys,
		TrainSequences: train.Len(),
		TestSequences:  test.Len(),
	}
	manifest.ClassWeights = keyed
	raw, err := manifest.Marshal()
	if err == nil {
		err = p.store.Put(jc.Ctx, manifestKey, raw, "application/json")
	}
	if err != nil {
		jc.Fail("manifest", fmt.Errorf("write manifest: %w", err))
		return nil
	}

	body, err := events.RunCompleted{
		RunID:        runID,
		ManifestKey:  manifestKey,
		Shards:       len(manifest.Shards),
		Sequences:    manifest.Sequences,
		ClassWeights: keyed,
		CompletedAt:  time.Now().UTC(),
	}.Marshal()
	if err == nil {
		err = p.events.Publish(jc.Ctx, runID, body)
	}
	if err != nil {
		jc.Fail("publish", fmt.Errorf("publish run completed: %w", err))
		return nil
	}

	log.Info("Training sample ready",
		"shards", len(sampled.Keys),
		"train_sequences", train.Len(),
		"test_sequences", test.Len(),
		"weight_0", w[0],
		"weight_1", w[1],
	)
	jc.Succeed("done", map[string]any{
		"manifest_key":    manifestKey,
		"shards":          len(sampled.Keys),
		"train_sequences": train.Len(),
		"test_sequences":  test.Len(),
		"class_weights":   keyed,
	})
	return nil
}

func (p *Pipeline) readManifest(ctx context.Context, key string) (*sequence.Manifest, error) {
	raw, err := p.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", key, err)
	}
	return sequence.UnmarshalManifest(raw)
}
