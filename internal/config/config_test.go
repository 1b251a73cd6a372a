package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	t.Setenv(specPathEnv, "")
	t.Setenv("PIPELINE_SEED", "")

	spec, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := spec.TableName(domain.TableMaintenanceLogs); got != "maintenance_activity_logs" {
		t.Fatalf("maintenance logs table: want=%q got=%q", "maintenance_activity_logs", got)
	}
	if spec.Sequence.TimeSteps != 24 {
		t.Fatalf("time steps: want=24 got=%d", spec.Sequence.TimeSteps)
	}
	if spec.Label.Tolerance.Duration != 24*time.Hour {
		t.Fatalf("tolerance: want=24h got=%v", spec.Label.Tolerance.Duration)
	}
	windows := spec.Windows()
	if len(windows) != 3 || windows[0] != time.Hour || windows[2] != 24*time.Hour {
		t.Fatalf("windows: got=%v", windows)
	}
	if spec.Seed != nil {
		t.Fatalf("seed: want=nil got=%d", *spec.Seed)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(specPathEnv, "")
	t.Setenv("PIPELINE_SEED", "7")
	t.Setenv("PIPELINE_TIME_STEPS", "12")
	t.Setenv("PIPELINE_LABEL_TOLERANCE", "12h")
	t.Setenv("PIPELINE_ORPHAN_POLICY", "drop")

	spec, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if spec.Seed == nil || *spec.Seed != 7 {
		t.Fatalf("seed: want=7 got=%v", spec.Seed)
	}
	if spec.Sequence.TimeSteps != 12 {
		t.Fatalf("time steps: want=12 got=%d", spec.Sequence.TimeSteps)
	}
	if spec.Label.Tolerance.Duration != 12*time.Hour {
		t.Fatalf("tolerance: want=12h got=%v", spec.Label.Tolerance.Duration)
	}
	if spec.Label.OrphanPolicy != OrphanPolicyDrop {
		t.Fatalf("orphan policy: want=%q got=%q", OrphanPolicyDrop, spec.Label.OrphanPolicy)
	}
}

func TestLoadRejectsInvalidSpec(t *testing.T) {
	raw, err := defaultSpecFS.ReadFile("pipeline.yaml")
	if err != nil {
		t.Fatalf("read embedded: %v", err)
	}
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv(specPathEnv, path)
	t.Setenv("PIPELINE_SAMPLE_FRACTION", "1.5")

	_, err = Load()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Load: want ValidationError got=%v", err)
	}
	if verr.Field != "sequence.sample_fraction" {
		t.Fatalf("field: want=%q got=%q", "sequence.sample_fraction", verr.Field)
	}
}

func TestParseDurations(t *testing.T) {
	spec, err := Parse([]byte("rolling:\n  windows: [30m, 2H]\nlabel:\n  tolerance: 36h\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := spec.Windows(); len(got) != 2 || got[0] != 30*time.Minute || got[1] != 2*time.Hour {
		t.Fatalf("windows: got=%v", got)
	}
	if _, err := Parse([]byte("label:\n  tolerance: soon\n")); err == nil {
		t.Fatalf("Parse: expected error for bad duration")
	}
}

func TestResolveSeed(t *testing.T) {
	seed := int64(11)
	s := &Spec{Seed: &seed}
	if got, ok := s.ResolveSeed(); got != 11 || !ok {
		t.Fatalf("ResolveSeed: want=11,true got=%d,%v", got, ok)
	}
	s.Seed = nil
	if _, ok := s.ResolveSeed(); ok {
		t.Fatalf("ResolveSeed without seed: want deterministic=false")
	}
}

func TestLoadRejectsUnparseableSeed(t *testing.T) {
	t.Setenv(specPathEnv, "")
	t.Setenv("PIPELINE_SEED", "forty-two")

	_, err := Load()
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "seed" {
		t.Fatalf("Load: want ValidationError on seed got=%v", err)
	}
}
