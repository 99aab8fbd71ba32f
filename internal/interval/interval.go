package interval

import (
	"sort"
	"time"
)

// Span is a half-open interval [Start, End) of UTC instants. A Span with
// End <= Start is empty and contributes nothing to overlap or gap math.
type Span struct {
	Start time.Time
	End   time.Time
}

// IsEmpty reports whether the span covers no time.
func (s Span) IsEmpty() bool {
	return !s.End.After(s.Start)
}

// Duration returns the span length, or zero for empty spans.
func (s Span) Duration() time.Duration {
	if s.IsEmpty() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Overlaps reports whether two half-open spans share any instant.
func (s Span) Overlaps(o Span) bool {
	return s.Start.Before(o.End) && o.Start.Before(s.End)
}

// Clip returns the intersection of s with bound. The result may be empty.
func (s Span) Clip(bound Span) Span {
	out := s
	if out.Start.Before(bound.Start) {
		out.Start = bound.Start
	}
	if out.End.After(bound.End) {
		out.End = bound.End
	}
	if out.IsEmpty() {
		return Span{}
	}
	return out
}

// MergeSpans returns the sorted, disjoint union of the given spans.
// Empty spans are ignored. Touching spans ([a,b) and [b,c)) are coalesced.
func MergeSpans(spans []Span) []Span {
	var in []Span
	for _, s := range spans {
		if !s.IsEmpty() {
			in = append(in, s)
		}
	}
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })

	out := []Span{in[0]}
	for _, s := range in[1:] {
		last := &out[len(out)-1]
		if !s.Start.After(last.End) {
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// OverlapFraction returns the fraction of event covered by the logged spans:
// total overlapped duration divided by the event duration. The logged spans
// are merged first so entries that overlap each other are not double-counted.
// Returns 0 for an empty event.
func OverlapFraction(event Span, logged []Span) float64 {
	if event.IsEmpty() {
		return 0
	}
	var covered time.Duration
	for _, s := range MergeSpans(logged) {
		covered += s.Clip(event).Duration()
	}
	return float64(covered) / float64(event.Duration())
}

// Gaps sweeps the logged spans left to right and returns the sub-intervals of
// day not covered by any of them. Spans are clipped to the day first;
// overlapping spans are tolerated (the cursor never moves backwards, so no
// negative-length gap is emitted). An empty day yields no gaps.
func Gaps(day Span, logged []Span) []Span {
	if day.IsEmpty() {
		return nil
	}

	var clipped []Span
	for _, s := range logged {
		if c := s.Clip(day); !c.IsEmpty() {
			clipped = append(clipped, c)
		}
	}
	sort.Slice(clipped, func(i, j int) bool { return clipped[i].Start.Before(clipped[j].Start) })

	var gaps []Span
	cursor := day.Start
	for _, s := range clipped {
		if s.Start.After(cursor) {
			gaps = append(gaps, Span{Start: cursor, End: s.Start})
		}
		if s.End.After(cursor) {
			cursor = s.End
		}
	}
	if cursor.Before(day.End) {
		gaps = append(gaps, Span{Start: cursor, End: day.End})
	}
	return gaps
}

// DaySegment is one local-calendar-day slice of a span, tagged with its
// local date string (YYYY-MM-DD).
type DaySegment struct {
	Span
	Day string
}

// SplitByLocalDay splits a span at every local-midnight boundary in loc,
// returning one clipped segment per local calendar day the span touches.
// A span that never crosses local midnight comes back as a single segment.
func SplitByLocalDay(s Span, loc *time.Location) []DaySegment {
	if s.IsEmpty() {
		return nil
	}

	var segs []DaySegment
	cursor := s.Start
	for cursor.Before(s.End) {
		local := cursor.In(loc)
		dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		nextMidnight := dayStart.AddDate(0, 0, 1).UTC()

		end := s.End
		if nextMidnight.Before(end) {
			end = nextMidnight
		}
		if !end.After(cursor) {
			break
		}
		segs = append(segs, DaySegment{
			Span: Span{Start: cursor, End: end},
			Day:  local.Format("2006-01-02"),
		})
		cursor = end
	}
	return segs
}
