package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

func TestReportDataQualityCounts(t *testing.T) {
	m := NewMetrics()
	ReportDataQuality(context.Background(), logger.Nop(), m, "join",
		Dropped("unparseable_timestamp", 3),
		Dropped("unparseable_timestamp", 2),
		Imputed("orphan_maintenance_event", 4),
		Dropped("zero", 0),
	)
	if got := testutil.ToFloat64(m.rowsDropped.WithLabelValues("join", "unparseable_timestamp")); got != 5 {
		t.Fatalf("dropped: want=5 got=%v", got)
	}
	if got := testutil.ToFloat64(m.rowsImputed.WithLabelValues("join", "orphan_maintenance_event")); got != 4 {
		t.Fatalf("imputed: want=4 got=%v", got)
	}
	if n := testutil.CollectAndCount(m.rowsDropped); n != 1 {
		t.Fatalf("dropped series: want=1 got=%d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RowsDropped("clean", "null_features", 1)
	m.ShardWritten(10)
	m.ObserveStage("join", time.Second)
	if err := m.Push(context.Background(), nil, "http://unused", "job", ""); err != nil {
		t.Fatalf("Push: %v", err)
	}
}

func TestStartStageObservesDuration(t *testing.T) {
	m := NewMetrics()
	_, end := StartStage(context.Background(), m, "rolling")
	end(nil)
	if n := testutil.CollectAndCount(m.stageDuration); n != 1 {
		t.Fatalf("stage series: want=1 got=%d", n)
	}
}

func TestPushToGateway(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics()
	m.ShardWritten(5)
	if err := m.Push(context.Background(), logger.Nop(), srv.URL, "feature_build", "run-1"); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if atomic.LoadInt32(&hits) == 0 {
		t.Fatalf("Push: gateway not called")
	}
}
