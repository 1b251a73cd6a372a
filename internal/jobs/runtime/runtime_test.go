package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type fnHandler struct {
	name string
	run  func(*Context) error
}

func (h fnHandler) Type() string          { return h.name }
func (h fnHandler) Run(jc *Context) error { return h.run(jc) }

type countingNotifier struct{ progress, failed, done int }

func (n *countingNotifier) JobProgress(context.Context, *JobRun) { n.progress++ }
func (n *countingNotifier) JobFailed(context.Context, *JobRun)   { n.failed++ }
func (n *countingNotifier) JobDone(context.Context, *JobRun)     { n.done++ }

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	h := fnHandler{name: "a", run: func(*Context) error { return nil }}
	if err := r.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(h); err == nil {
		t.Fatalf("Register duplicate: expected error")
	}
	if err := r.Register(fnHandler{}); err == nil {
		t.Fatalf("Register empty type: expected error")
	}
}

func TestRunnerSharesPayloadAndStopsOnFailure(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(fnHandler{name: "first", run: func(jc *Context) error {
		jc.Progress("work", 50, "half")
		jc.Set("artifact", "k1")
		jc.Succeed("done", map[string]int{"n": 1})
		return nil
	}})
	_ = r.Register(fnHandler{name: "second", run: func(jc *Context) error {
		if v, _ := jc.PayloadString("artifact"); v != "k1" {
			t.Fatalf("shared payload: want=k1 got=%q", v)
		}
		jc.Progress("check", 10, "")
		jc.Fail("check", errors.New("boom"))
		jc.Succeed("done", nil) // ignored after Fail
		return nil
	}})
	_ = r.Register(fnHandler{name: "third", run: func(jc *Context) error {
		t.Fatalf("third job must not run")
		return nil
	}})

	n := &countingNotifier{}
	runs, err := NewRunner(r, n, logger.Nop()).Run(context.Background(), "run-1", []string{"first", "second", "third"}, nil)
	var jerr *JobError
	if !errors.As(err, &jerr) || jerr.JobType != "second" || jerr.Stage != "check" {
		t.Fatalf("Run: want JobError(second, check) got=%v", err)
	}
	if len(runs) != 2 || runs[0].Status != StatusSucceeded || string(runs[0].Result) != `{"n":1}` {
		t.Fatalf("runs: got=%+v", runs)
	}
	if n.progress != 2 || n.failed != 1 || n.done != 1 {
		t.Fatalf("notifications: got=%+v", n)
	}
}

func TestRunnerReturnedErrorFailsJob(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(fnHandler{name: "x", run: func(jc *Context) error {
		jc.Progress("load", 1, "")
		return errors.New("io")
	}})
	runs, err := NewRunner(r, nil, logger.Nop()).Run(context.Background(), "", []string{"x"}, nil)
	if err == nil || runs[0].Status != StatusFailed || runs[0].Stage != "load" || runs[0].RunID == "" {
		t.Fatalf("Run: err=%v runs=%+v", err, runs)
	}
	_, err = NewRunner(r, nil, logger.Nop()).Run(context.Background(), "", []string{"x", "missing"}, nil)
	var uerr *UnknownJobError
	if !errors.As(err, &uerr) || uerr.JobType != "missing" || len(uerr.Registered) != 1 {
		t.Fatalf("unknown job: want UnknownJobError got=%v", err)
	}
}

func TestRegistryResolveOrderAndBlanks(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"b", "a"} {
		_ = r.Register(fnHandler{name: name, run: func(*Context) error { return nil }})
	}
	hs, err := r.Resolve([]string{" b", "", "a "})
	if err != nil || len(hs) != 2 || hs[0].Type() != "b" || hs[1].Type() != "a" {
		t.Fatalf("Resolve: err=%v handlers=%v", err, hs)
	}
	if _, err := r.Resolve([]string{""}); err == nil {
		t.Fatalf("Resolve empty: expected error")
	}
	if got := r.Types(); len(got) != 2 || got[0] != "a" {
		t.Fatalf("Types: want=[a b] got=%v", got)
	}
}
