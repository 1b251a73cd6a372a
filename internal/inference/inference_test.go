package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/machine-maintenance-backend/internal/inference/engine/mock"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/normalize"
	"github.com/yungbote/machine-maintenance-backend/internal/modules/forecast/schema"
)

var cols = []string{"temperature", "vibration", "pressure", "humidity"}

func fixtures(t *testing.T, policy string) (*schema.Contract, *normalize.Scaler) {
	t.Helper()
	s := &normalize.Scaler{
		SchemaVersion: normalize.ArtifactVersion,
		Columns:       cols,
		Mean:          []float64{50, 1, 0, 60},
		Var:           []float64{100, 1, 1, 100},
		Scale:         []float64{10, 1, 1, 10},
	}
	c, err := schema.New(1, 3, policy, s)
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return c, s
}

func TestBuildInputShapeAndOrder(t *testing.T) {
	c, s := fixtures(t, schema.MissingMean)
	names := []string{"humidity", "temperature", "extra", "vibration"}
	rows := [][]float64{
		{60, 10, 0, 1},
		{70, 50, 0, 2},
		{80, 70, 0, 3},
		{90, 90, 0, 4},
	}
	in, err := BuildInput(c, s, names, rows)
	if err != nil {
		t.Fatalf("BuildInput: %v", err)
	}
	if in.Batch != 1 || in.TimeSteps != 3 || in.Features != 4 || len(in.Data) != 12 {
		t.Fatalf("shape: got=[%d,%d,%d] len=%d", in.Batch, in.TimeSteps, in.Features, len(in.Data))
	}
	// first step is the second row: temperature 50 -> 0, vibration 2 -> 1,
	// pressure missing -> mean -> 0, humidity 70 -> 1
	want := []float32{0, 1, 0, 1}
	for j, v := range want {
		if in.Data[j] != v {
			t.Fatalf("step 0 feature %d: want=%v got=%v", j, v, in.Data[j])
		}
	}

	strict, s2 := fixtures(t, schema.MissingError)
	var cerr *schema.ContractError
	if _, err := BuildInput(strict, s2, names, rows); !errors.As(err, &cerr) {
		t.Fatalf("error policy: want ContractError got=%v", err)
	}
	if _, err := BuildInput(c, s, names, rows[:2]); err == nil {
		t.Fatalf("short history: expected error")
	}
}

func TestDiagnoseThresholds(t *testing.T) {
	c, _ := fixtures(t, schema.MissingMean)
	window := func(vals ...float32) []float32 {
		var w []float32
		for i := 0; i < 3; i++ {
			w = append(w, vals...)
		}
		return w
	}
	cases := []struct {
		window []float32
		want   []string
	}{
		{window(0, 0, 0, 0), []string{IssuePreventive}},
		{window(2.1, 0, 0, 0), []string{IssueOverheating}},
		{window(2.0, 1.6, -2.5, 1.9), []string{IssueWear, IssuePressure, IssueMoisture}},
	}
	for i, tc := range cases {
		got := Diagnose(c, tc.window)
		if len(got) != len(tc.want) {
			t.Fatalf("case %d: want=%v got=%v", i, tc.want, got)
		}
		for j := range got {
			if got[j] != tc.want[j] {
				t.Fatalf("case %d: want=%v got=%v", i, tc.want, got)
			}
		}
	}
}

func TestUrgency(t *testing.T) {
	for p, want := range map[float64]string{0.9: UrgencyCritical, 0.75: UrgencyWarning, 0.51: UrgencyWarning, 0.5: ""} {
		if got := Urgency(p); got != want {
			t.Fatalf("Urgency(%v): want=%q got=%q", p, want, got)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	c, s := fixtures(t, schema.MissingMean)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sess, err := NewSession(c, "5000", start, time.Hour)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	other, _ := NewSession(c, "5000", start, time.Hour)
	if sess.ID == other.ID {
		t.Fatalf("sessions share id %q", sess.ID)
	}
	for i := 0; i < 5; i++ {
		if _, err := sess.Observe([]string{"temperature"}, []float64{float64(50 + 10*i)}); err != nil {
			t.Fatalf("Observe: %v", err)
		}
		sess.Advance()
	}
	if !sess.Ready() || len(sess.Window()) != 3 || sess.Window()[0][0] != 70 {
		t.Fatalf("window: got=%v", sess.Window())
	}
	if !sess.Cursor.Equal(start.Add(5*time.Hour)) || sess.Steps != 5 {
		t.Fatalf("cursor: got=%v steps=%d", sess.Cursor, sess.Steps)
	}
	in, err := sess.Input(s)
	if err != nil || in.Data[0] != 2 {
		t.Fatalf("Input: got=%v err=%v", in.Data, err)
	}
	oldID := sess.ID
	sess.Reset()
	if sess.Ready() || !sess.Cursor.Equal(start) || sess.Steps != 0 || sess.ID == oldID {
		t.Fatalf("Reset: got=%+v", sess)
	}
	if _, err := NewSession(c, "1", start, 0); err == nil {
		t.Fatalf("NewSession zero step: expected error")
	}
}

func TestForecasterFlagsHotWindows(t *testing.T) {
	c, s := fixtures(t, schema.MissingMean)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ts []time.Time
	var rows [][]float64
	for i, temp := range []float64{50, 50, 50, 50, 90, 90, 90, 90} {
		ts = append(ts, base.Add(time.Duration(i)*time.Hour))
		rows = append(rows, []float64{temp, 1, 0, 60})
	}
	pred := mock.New()
	f := &Forecaster{Contract: c, Scaler: s, Predictor: pred}
	out, err := f.Scan(context.Background(), "7", ts, rows)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if pred.Calls != 5 {
		t.Fatalf("windows scored: want=5 got=%d", pred.Calls)
	}
	// window [0,3) is all at the mean: p=0.5 is not flagged
	if len(out) != 4 || !out[0].PredictionTime.Equal(ts[4]) {
		t.Fatalf("predictions: got=%+v", out)
	}
	last := out[len(out)-1]
	if last.Urgency != UrgencyCritical || last.ExpectedIssues[0] != IssueOverheating {
		t.Fatalf("last prediction: got=%+v", last)
	}
}
