package collector

import (
	"sort"
	"time"

	"github.com/newthinker/lookback/internal/core"
)

// Tidy normalises raw observations into a valid series body: dates are
// truncated to the calendar day, non-positive closes and points outside
// [start, end] are dropped, and a repeated day keeps its last close.
// A zero start or end leaves that side open.
func Tidy(points []core.PricePoint, start, end time.Time) []core.PricePoint {
	from, to := core.TruncateDay(start), core.TruncateDay(end)
	out := make([]core.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Close <= 0 {
			continue
		}
		p.Date = core.TruncateDay(p.Date)
		if !start.IsZero() && p.Date.Before(from) {
			continue
		}
		if !end.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	deduped := out[:0]
	for _, p := range out {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(p.Date) {
			deduped[n-1] = p
			continue
		}
		deduped = append(deduped, p)
	}
	return deduped
}
