// Package config loads the feature pipeline spec: an embedded YAML default,
// optionally replaced by PIPELINE_SPEC_YAML, then overridden per key from env.
package config

import (
	"embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
)

const specPathEnv = "PIPELINE_SPEC_YAML"

//go:embed pipeline.yaml
var defaultSpecFS embed.FS

const (
	OrphanPolicyImpute = "impute"
	OrphanPolicyDrop   = "drop"

	MissingPolicyError = "error"
	MissingPolicyMean  = "mean"
)

// Duration accepts "90m"-style strings in YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" {
		d.Duration = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	dd, err := time.ParseDuration(strings.ToLower(s))
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

type SensorSpec struct {
	ExcludeColumns []string `yaml:"exclude_columns"`
}

type RollingSpec struct {
	Metrics []string   `yaml:"metrics"`
	Windows []Duration `yaml:"windows"`
}

type LabelSpec struct {
	Tolerance    Duration `yaml:"tolerance"`
	OrphanPolicy string   `yaml:"orphan_policy"`
}

type CleanSpec struct {
	// ForwardFillLimit caps consecutive filled nulls per machine; 0 means no cap.
	ForwardFillLimit int `yaml:"forward_fill_limit"`
}

type SequenceSpec struct {
	TimeSteps      int     `yaml:"time_steps"`
	SampleFraction float64 `yaml:"sample_fraction"`
	TestFraction   float64 `yaml:"test_fraction"`
	OutputPrefix   string  `yaml:"output_prefix"`
}

type ContractSpec struct {
	Version       int    `yaml:"version"`
	MissingPolicy string `yaml:"missing_policy"`
}

type Spec struct {
	Version         int                 `yaml:"version"`
	Tables          map[string]string   `yaml:"tables"`
	RequiredColumns map[string][]string `yaml:"required_columns"`
	Sensor          SensorSpec          `yaml:"sensor"`
	ChunkSize       int                 `yaml:"chunk_size"`
	Workers         int                 `yaml:"workers"`
	// Seed drives orphan imputation and shard sampling. Nil means wall-clock seeding.
	Seed     *int64       `yaml:"seed"`
	Rolling  RollingSpec  `yaml:"rolling"`
	Label    LabelSpec    `yaml:"label"`
	Clean    CleanSpec    `yaml:"clean"`
	Sequence SequenceSpec `yaml:"sequence"`
	Contract ContractSpec `yaml:"contract"`
}

// TableName returns the physical name configured for a logical table.
func (s *Spec) TableName(t domain.Table) string {
	if name := strings.TrimSpace(s.Tables[string(t)]); name != "" {
		return name
	}
	return string(t)
}

func (s *Spec) Required(t domain.Table) []string {
	return s.RequiredColumns[string(t)]
}

func (s *Spec) Windows() []time.Duration {
	out := make([]time.Duration, 0, len(s.Rolling.Windows))
	for _, w := range s.Rolling.Windows {
		out = append(out, w.Duration)
	}
	return out
}

// ResolveSeed returns the configured seed, or a wall-clock seed with
// deterministic=false when none is set.
func (s *Spec) ResolveSeed() (seed int64, deterministic bool) {
	if s.Seed != nil {
		return *s.Seed, true
	}
	return time.Now().UnixNano(), false
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Field, e.Reason)
}

// Load resolves the spec from the embedded default or PIPELINE_SPEC_YAML,
// applies env overrides and validates.
func Load() (*Spec, error) {
	var raw []byte
	var err error
	if path := strings.TrimSpace(os.Getenv(specPathEnv)); path != "" {
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s=%q: %w", specPathEnv, path, err)
		}
	} else {
		raw, err = defaultSpecFS.ReadFile("pipeline.yaml")
		if err != nil {
			return nil, fmt.Errorf("read embedded pipeline spec: %w", err)
		}
	}
	spec, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(spec); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func Parse(raw []byte) (*Spec, error) {
	var spec Spec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse pipeline spec: %w", err)
	}
	return &spec, nil
}

func applyEnv(s *Spec) error {
	s.Workers = envutil.Int("PIPELINE_WORKERS", s.Workers)
	s.ChunkSize = envutil.Int("PIPELINE_CHUNK_SIZE", s.ChunkSize)
	s.Sequence.TimeSteps = envutil.Int("PIPELINE_TIME_STEPS", s.Sequence.TimeSteps)
	s.Sequence.SampleFraction = envutil.Float("PIPELINE_SAMPLE_FRACTION", s.Sequence.SampleFraction)
	s.Sequence.OutputPrefix = envutil.String("PIPELINE_OUTPUT_PREFIX", s.Sequence.OutputPrefix)
	s.Label.Tolerance.Duration = envutil.Duration("PIPELINE_LABEL_TOLERANCE", s.Label.Tolerance.Duration)
	s.Label.OrphanPolicy = envutil.String("PIPELINE_ORPHAN_POLICY", s.Label.OrphanPolicy)
	if v := strings.TrimSpace(os.Getenv("PIPELINE_SEED")); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return &ValidationError{Field: "seed", Reason: fmt.Sprintf("PIPELINE_SEED=%q is not an integer", v)}
		}
		s.Seed = &seed
	}
	return nil
}

func (s *Spec) Validate() error {
	for _, t := range domain.AllTables() {
		if strings.TrimSpace(s.Tables[string(t)]) == "" {
			return &ValidationError{Field: "tables." + string(t), Reason: "must be set"}
		}
	}
	if s.ChunkSize < 1 {
		return &ValidationError{Field: "chunk_size", Reason: "must be >= 1"}
	}
	if s.Workers < 1 {
		return &ValidationError{Field: "workers", Reason: "must be >= 1"}
	}
	for i, w := range s.Rolling.Windows {
		if w.Duration <= 0 {
			return &ValidationError{Field: fmt.Sprintf("rolling.windows[%d]", i), Reason: "must be > 0"}
		}
	}
	if s.Label.Tolerance.Duration <= 0 {
		return &ValidationError{Field: "label.tolerance", Reason: "must be > 0"}
	}
	switch s.Label.OrphanPolicy {
	case OrphanPolicyImpute, OrphanPolicyDrop:
	default:
		return &ValidationError{Field: "label.orphan_policy", Reason: fmt.Sprintf("must be %q or %q", OrphanPolicyImpute, OrphanPolicyDrop)}
	}
	if s.Clean.ForwardFillLimit < 0 {
		return &ValidationError{Field: "clean.forward_fill_limit", Reason: "must be >= 0"}
	}
	if s.Sequence.TimeSteps < 1 {
		return &ValidationError{Field: "sequence.time_steps", Reason: "must be >= 1"}
	}
	if s.Sequence.SampleFraction <= 0 || s.Sequence.SampleFraction > 1 {
		return &ValidationError{Field: "sequence.sample_fraction", Reason: "must be in (0, 1]"}
	}
	if s.Sequence.TestFraction < 0 || s.Sequence.TestFraction >= 1 {
		return &ValidationError{Field: "sequence.test_fraction", Reason: "must be in [0, 1)"}
	}
	if strings.TrimSpace(s.Sequence.OutputPrefix) == "" {
		return &ValidationError{Field: "sequence.output_prefix", Reason: "must be set"}
	}
	switch s.Contract.MissingPolicy {
	case MissingPolicyError, MissingPolicyMean:
	default:
		return &ValidationError{Field: "contract.missing_policy", Reason: fmt.Sprintf("must be %q or %q", MissingPolicyError, MissingPolicyMean)}
	}
	if s.Contract.Version < 1 {
		return &ValidationError{Field: "contract.version", Reason: "must be >= 1"}
	}
	return nil
}
