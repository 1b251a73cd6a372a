package observability

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type IssueKind string

const (
	IssueDropped IssueKind = "dropped"
	IssueImputed IssueKind = "imputed"
)

// Issue is one counted data-quality repair made by a stage.
type Issue struct {
	Kind   IssueKind
	Reason string
	Count  int
	Meta   map[string]any
}

func Dropped(reason string, count int) Issue {
	return Issue{Kind: IssueDropped, Reason: reason, Count: count}
}

func Imputed(reason string, count int) Issue {
	return Issue{Kind: IssueImputed, Reason: reason, Count: count}
}

// ReportDataQuality logs each non-zero issue at Warn with its count and
// feeds the matching counter.
func ReportDataQuality(ctx context.Context, log *logger.Logger, m *Metrics, stage string, issues ...Issue) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	for _, is := range issues {
		if is.Count <= 0 {
			continue
		}
		switch is.Kind {
		case IssueImputed:
			m.RowsImputed(stage, is.Reason, is.Count)
		default:
			m.RowsDropped(stage, is.Reason, is.Count)
		}
		if log == nil {
			continue
		}
		kv := []interface{}{"stage", stage, "kind", string(is.Kind), "reason", is.Reason, "count", is.Count}
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			kv = append(kv, "trace_id", sc.TraceID().String())
		}
		keys := make([]string, 0, len(is.Meta))
		for k := range is.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			kv = append(kv, k, is.Meta[k])
		}
		log.Warn("data quality", kv...)
	}
}
