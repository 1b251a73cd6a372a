package rolling

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/domain"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func hours(hs ...float64) []time.Time {
	out := make([]time.Time, len(hs))
	for i, h := range hs {
		out[i] = t0.Add(time.Duration(h * float64(time.Hour)))
	}
	return out
}

func table(parts ...*domain.Partition) *domain.FeatureTable {
	tbl := domain.NewFeatureTable([]string{"temperature", "vibration"})
	tbl.Partitions = parts
	return tbl
}

func part(id string, ts []time.Time, temp, vib []float64) *domain.Partition {
	return &domain.Partition{MachineID: id, Timestamps: ts, Columns: [][]float64{temp, vib}}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestWindowExcludesLeftEdge(t *testing.T) {
	ts := hours(0, 0.5, 1, 1.5)
	means, maxes := Window(ts, []float64{4, 2, 6, 1}, time.Hour)
	// at 1h the window is (0h, 1h]: the 0h value drops out
	want := []float64{4, 3, 4, 3.5}
	wantMax := []float64{4, 4, 6, 6}
	for i := range want {
		if !approx(means[i], want[i]) || maxes[i] != wantMax[i] {
			t.Fatalf("row %d: want mean=%v max=%v got mean=%v max=%v", i, want[i], wantMax[i], means[i], maxes[i])
		}
	}
}

func TestWindowSkipsNulls(t *testing.T) {
	ts := hours(0, 1, 2, 5)
	means, maxes := Window(ts, []float64{math.NaN(), 3, math.NaN(), math.NaN()}, 2*time.Hour)
	if !domain.IsNull(means[0]) || !domain.IsNull(maxes[0]) {
		t.Fatalf("row 0: want null got mean=%v max=%v", means[0], maxes[0])
	}
	if means[2] != 3 || maxes[2] != 3 {
		t.Fatalf("row 2: want 3 got mean=%v max=%v", means[2], maxes[2])
	}
	if !domain.IsNull(means[3]) {
		t.Fatalf("row 3: window holds no observation, want null got=%v", means[3])
	}
}

func TestFutureOutlierDoesNotLeakBackwards(t *testing.T) {
	ts := hours(0, 1, 2, 3, 4, 5)
	vals := []float64{1, 2, 3, 4, 5, 6}
	base := table(part("1", ts, vals, vals))
	if _, err := Apply(context.Background(), base, Spec{Metrics: []string{"temperature"}, Windows: []time.Duration{24 * time.Hour}}, 1, logger.Nop()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	spiked := append(append([]float64{}, vals...), 1e9)
	withOutlier := table(part("1", hours(0, 1, 2, 3, 4, 5, 6), spiked, spiked))
	if _, err := Apply(context.Background(), withOutlier, Spec{Metrics: []string{"temperature"}, Windows: []time.Duration{24 * time.Hour}}, 1, logger.Nop()); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for _, name := range []string{MeanColumn("temperature", 24*time.Hour), MaxColumn("temperature", 24*time.Hour)} {
		a := base.Partitions[0].Columns[base.Index(name)]
		b := withOutlier.Partitions[0].Columns[withOutlier.Index(name)]
		for r := range a {
			if !approx(a[r], b[r]) {
				t.Fatalf("%s row %d: future outlier changed value %v -> %v", name, r, a[r], b[r])
			}
		}
	}
}

func TestApplyIsolatesMachinesAndFailures(t *testing.T) {
	ts := hours(0, 1, 2)
	tbl := table(
		part("1", ts, []float64{1, 2, 3}, []float64{1, 1, 1}),
		part("2", ts, []float64{100, 200, 300}, []float64{1, 1}), // malformed vibration column
	)
	spec := Spec{Metrics: []string{"temperature", "vibration", "pressure"}, Windows: []time.Duration{time.Hour, 6 * time.Hour}}

	res, err := Apply(context.Background(), tbl, spec, 2, logger.Nop())
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(res.Absent) != 1 || res.Absent[0] != "pressure" {
		t.Fatalf("absent: want=[pressure] got=%v", res.Absent)
	}
	if len(res.Failed) != 2 {
		t.Fatalf("failed: want=2 got=%d", len(res.Failed))
	}
	var ce *ComboError
	if !errors.As(res.Failed[0], &ce) || ce.Metric != "vibration" {
		t.Fatalf("failed[0]: got=%v", res.Failed[0])
	}
	if tbl.Index(MeanColumn("vibration", time.Hour)) >= 0 {
		t.Fatalf("failed combination must not produce a column")
	}
	if len(res.Columns) != 4 {
		t.Fatalf("columns: want=4 got=%v", res.Columns)
	}

	max6h := tbl.Index(MaxColumn("temperature", 6*time.Hour))
	if got := tbl.Partition("1").Columns[max6h][2]; got != 3 {
		t.Fatalf("machine 1 max: want=3 got=%v", got)
	}
	if got := tbl.Partition("2").Columns[max6h][0]; got != 100 {
		t.Fatalf("machine 2 first max: want=100 got=%v", got)
	}
}

func TestFormatWindow(t *testing.T) {
	cases := map[time.Duration]string{
		time.Hour:        "1h",
		24 * time.Hour:   "24h",
		90 * time.Minute: "90m",
		45 * time.Second: "45s",
	}
	for d, want := range cases {
		if got := FormatWindow(d); got != want {
			t.Fatalf("FormatWindow(%v): want=%q got=%q", d, want, got)
		}
	}
}
