package shard_sample

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/yungbote/machine-maintenance-backend/internal/jobs/pipeline/feature_build"
	"github.com/yungbote/machine-maintenance-backend/internal/jobs/pipeline/pipelinetest"
	jobrt "github.com/yungbote/machine-maintenance-backend/internal/jobs/runtime"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/sequence"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/events"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/objstore"
)

type recordingPublisher struct {
	keys   []string
	bodies [][]byte
}

func (p *recordingPublisher) Publish(_ context.Context, key string, body []byte) error {
	p.keys = append(p.keys, key)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestBuildThenSample(t *testing.T) {
	ctx := context.Background()
	spec, err := pipelinetest.Spec(7, 6)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	store := objstore.NewMemory()
	pub := &recordingPublisher{}
	reg := jobrt.NewRegistry()
	_ = reg.Register(feature_build.New(pipelinetest.Source(3, 100), store, spec, logger.Nop(), nil, nil))
	_ = reg.Register(New(store, spec, logger.Nop(), pub, nil))

	runs, err := jobrt.NewRunner(reg, nil, logger.Nop()).Run(ctx, "run-9", []string{feature_build.JobType, JobType}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(runs) != 2 || runs[1].Status != jobrt.StatusSucceeded {
		t.Fatalf("runs: got=%+v", runs)
	}

	raw, _ := store.Get(ctx, sequence.ManifestKey("test-run"))
	m, err := sequence.UnmarshalManifest(raw)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Sample == nil || len(m.Sample.Keys) != 3 || m.Sample.Seed != 7 {
		t.Fatalf("sample summary: got=%+v", m.Sample)
	}
	if m.Sample.TrainSequences+m.Sample.TestSequences != m.Sequences || m.Sample.TestSequences == 0 {
		t.Fatalf("split sizes: got=%+v of %d", m.Sample, m.Sequences)
	}
	w0, w1 := m.ClassWeights["0"], m.ClassWeights["1"]
	if w0 <= 0 || w1 <= 0 || math.IsInf(w0, 0) || math.IsInf(w1, 0) {
		t.Fatalf("class weights: got=%v", m.ClassWeights)
	}

	if len(pub.keys) != 1 || pub.keys[0] != "run-9" {
		t.Fatalf("published keys: got=%v", pub.keys)
	}
	var ev events.RunCompleted
	if err := json.Unmarshal(pub.bodies[0], &ev); err != nil || ev.ManifestKey != sequence.ManifestKey("test-run") || ev.Shards != 3 {
		t.Fatalf("event: got=%+v err=%v", ev, err)
	}
}

func TestSampleWithoutShardsFails(t *testing.T) {
	spec, err := pipelinetest.Spec(7, 6)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	reg := jobrt.NewRegistry()
	pub := &recordingPublisher{}
	_ = reg.Register(New(objstore.NewMemory(), spec, logger.Nop(), pub, nil))

	_, err = jobrt.NewRunner(reg, nil, logger.Nop()).Run(context.Background(), "r", []string{JobType}, nil)
	var jerr *jobrt.JobError
	if !errors.As(err, &jerr) || jerr.Stage != "sample" {
		t.Fatalf("Run: want JobError at sample got=%v", err)
	}
	if len(pub.keys) != 0 {
		t.Fatalf("event published on failure")
	}
}

func TestRebuildWithFewerMachinesSamplesOnlyCurrentShards(t *testing.T) {
	ctx := context.Background()
	spec, err := pipelinetest.Spec(7, 6)
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	store := objstore.NewMemory()
	build := func(machines int) {
		reg := jobrt.NewRegistry()
		_ = reg.Register(feature_build.New(pipelinetest.Source(machines, 100), store, spec, logger.Nop(), nil, nil))
		if _, err := jobrt.NewRunner(reg, nil, logger.Nop()).Run(ctx, "", []string{feature_build.JobType}, nil); err != nil {
			t.Fatalf("build %d machines: %v", machines, err)
		}
	}
	build(3)
	build(2)

	reg := jobrt.NewRegistry()
	_ = reg.Register(New(store, spec, logger.Nop(), &recordingPublisher{}, nil))
	if _, err := jobrt.NewRunner(reg, nil, logger.Nop()).Run(ctx, "", []string{JobType}, nil); err != nil {
		t.Fatalf("sample: %v", err)
	}
	raw, _ := store.Get(ctx, sequence.ManifestKey("test-run"))
	m, err := sequence.UnmarshalManifest(raw)
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Sample == nil || len(m.Sample.Keys) != 2 {
		t.Fatalf("sampled keys: want 2 got=%+v", m.Sample)
	}
	for _, k := range m.Sample.Keys {
		if k == sequence.ShardKey("test-run", "3") {
			t.Fatalf("stale shard of machine 3 sampled")
		}
	}
	if keys, _ := store.List(ctx, sequence.ShardPrefix("test-run")); len(keys) != 2 {
		t.Fatalf("shards after rebuild: want 2 got=%v", keys)
	}
}
