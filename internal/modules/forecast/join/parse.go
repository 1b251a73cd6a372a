package join

import (
	"math"
	"strings"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/yungbote/machine-maintenance-backend/internal/data/source"
)

// Numeric cells at or beyond this magnitude are not unix seconds.
const maxUnixSeconds = math.MaxInt64 / 1e9

var fallbackLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTimestamp converts a source cell to UTC. Naive timestamps are read as
// UTC. Numbers are unix seconds.
func ParseTimestamp(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return x.UTC(), true
	case int64, int32, int, float64, float32:
		f, ok := source.AsFloat(x)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= maxUnixSeconds {
			return time.Time{}, false
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
	}
	s, ok := source.AsString(v)
	if !ok {
		return time.Time{}, false
	}
	if t, err := iso8601.ParseString(s); err == nil {
		return t.UTC(), true
	}
	s = strings.TrimSuffix(s, " UTC")
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
