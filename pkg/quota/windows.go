package quota

import (
	"strconv"
	"time"

	"github.com/platinummonkey/backoffice/pkg/billing"
)

// counterGrace keeps a counter around briefly after its window closes
const counterGrace = time.Minute

// windowStart truncates t to the start of its window in t's location
func windowStart(kind WindowKind, t time.Time) time.Time {
	switch kind {
	case WindowMinute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, t.Location())
	case WindowDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	}
}

// windowEnd is the next boundary after t. Day and month boundaries follow
// the calendar, so DST days are 23 or 25 hours long.
func windowEnd(kind WindowKind, t time.Time) time.Time {
	start := windowStart(kind, t)
	switch kind {
	case WindowMinute:
		return start.Add(time.Minute)
	case WindowDay:
		return start.AddDate(0, 0, 1)
	default:
		return start.AddDate(0, 1, 0)
	}
}

// windowKey names the window containing t, e.g. m:202610181204,
// d:20261018 or M:202610
func windowKey(kind WindowKind, t time.Time) string {
	switch kind {
	case WindowMinute:
		return "m:" + t.Format("200601021504")
	case WindowDay:
		return "d:" + t.Format("20060102")
	default:
		return "M:" + t.Format("200601")
	}
}

// BuildWindows returns the minute, day and month windows for a tenant at
// now, evaluated in loc. The minute window counts one request; the others
// count cost.
func BuildWindows(prefix string, tenantID int64, plan *billing.Plan, loc *time.Location, now time.Time, cost int64) []Window {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	base := prefix + ":" + strconv.FormatInt(tenantID, 10) + ":"

	specs := []struct {
		kind      WindowKind
		ceiling   int64
		increment int64
	}{
		{WindowMinute, plan.RequestsPerMinute, 1},
		{WindowDay, plan.DailyTokenLimit, cost},
		{WindowMonth, plan.MonthlyTokenLimit, cost},
	}

	windows := make([]Window, 0, len(specs))
	for _, s := range specs {
		end := windowEnd(s.kind, local)
		windows = append(windows, Window{
			Kind:      s.kind,
			Key:       base + windowKey(s.kind, local),
			Ceiling:   s.ceiling,
			Increment: s.increment,
			ResetAt:   end,
			TTL:       end.Sub(now) + counterGrace,
		})
	}
	return windows
}

func usageOf(w Window, used int64) WindowUsage {
	remaining := w.Ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	return WindowUsage{
		Kind:      w.Kind,
		Limit:     w.Ceiling,
		Used:      used,
		Remaining: remaining,
		ResetsAt:  w.ResetAt,
	}
}
