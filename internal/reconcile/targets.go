package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okarlsen/daytally/internal/classify"
	"github.com/okarlsen/daytally/internal/interval"
	"github.com/okarlsen/daytally/internal/store"
	"github.com/okarlsen/daytally/internal/timecalc"
)

// Target progress statuses.
const (
	TargetOnTrack = "on_track"
	TargetBehind  = "behind"
	TargetAhead   = "ahead"
)

// TargetProgress is one target measured against the logged time in a range.
// DaysMet and DaysTotal are only meaningful for hours_per_day targets.
type TargetProgress struct {
	Target        store.Target
	ActualHours   float64
	ExpectedHours float64
	Percent       float64
	Status        string
	DaysMet       int
	DaysTotal     int
}

// TargetReport measures every standing target over one local date range.
type TargetReport struct {
	Start time.Time
	End   time.Time
	Items []TargetProgress
}

// TargetReport computes per-target progress over days consecutive local days
// starting at startDay. Logged time is clipped, bucketed and filtered the
// same way Summarize does it, so the two views always agree.
func (s *Service) TargetReport(ctx context.Context, userID, startDay string, days int) (TargetReport, error) {
	if days < 1 || days > s.opts.MaxRangeDays {
		return TargetReport{}, fmt.Errorf("%w: days must be 1..%d, got %d", ErrInvalidInput, s.opts.MaxRangeDays, days)
	}

	loc, err := s.userLocation(userID)
	if err != nil {
		return TargetReport{}, err
	}

	targets, err := s.db.ListTargets(userID)
	if err != nil {
		return TargetReport{}, err
	}

	now := s.now().UTC()
	start, end := timecalc.RangeBounds(now, startDay, days, loc)
	report := TargetReport{Start: start, End: end}
	if len(targets) == 0 {
		return report, nil
	}

	entries, err := s.db.ListEntries(userID, start, end)
	if err != nil {
		return TargetReport{}, err
	}

	excludeMins := s.opts.StatsExcludeHours * 60
	window := interval.Span{Start: start, End: end}

	totals := make(map[string]int)
	dayMins := make(map[string]map[string]int)
	for _, e := range entries {
		span := interval.Span{Start: e.StartAt, End: e.EndAt}.Clip(window)
		mins := int(span.Duration().Minutes())
		if mins <= 0 || mins >= excludeMins {
			continue
		}
		cat := classify.Suggest(e.Title, e.CategoryName)
		totals[cat] += mins
		if dayMins[cat] == nil {
			dayMins[cat] = make(map[string]int)
		}
		for _, seg := range interval.SplitByLocalDay(span, loc) {
			dayMins[cat][seg.Day] += int(seg.Duration().Minutes())
		}
	}

	for _, t := range targets {
		p := TargetProgress{
			Target:      t,
			ActualHours: round1(float64(targetMinutes(t.Category, totals)) / 60),
			DaysTotal:   days,
		}

		switch t.Type {
		case store.TargetHoursPerDay:
			p.ExpectedHours = round1(t.Value * float64(days))
			perDay := targetDayMinutes(t.Category, dayMins)
			need := int(t.Value * 60)
			d := start.In(loc)
			for i := 0; i < days; i++ {
				if perDay[d.Format("2006-01-02")] >= need {
					p.DaysMet++
				}
				d = d.AddDate(0, 0, 1)
			}
			p.Percent = round1(float64(p.DaysMet) / float64(days) * 100)
		case store.TargetHoursPerWeek:
			p.ExpectedHours = round1(t.Value * float64(days) / 7)
		default:
			// Flat minimum or maximum over the whole range.
			p.ExpectedHours = t.Value
		}

		if t.Type != store.TargetHoursPerDay {
			if p.ExpectedHours > 0 {
				p.Percent = round1(p.ActualHours / p.ExpectedHours * 100)
			} else if p.ActualHours > 0 {
				p.Percent = 100
			}
		}

		if t.Type == store.TargetMaxHours {
			// Staying under a ceiling is the success case.
			p.Status = TargetAhead
			if p.ActualHours > p.ExpectedHours {
				p.Status = TargetBehind
			}
		} else {
			switch {
			case p.Percent >= 100:
				p.Status = TargetAhead
			case p.Percent >= 90:
				p.Status = TargetOnTrack
			default:
				p.Status = TargetBehind
			}
		}

		report.Items = append(report.Items, p)
	}
	return report, nil
}

// targetMinutes resolves a target category against summary buckets. A plain
// "Work" target covers both Work buckets.
func targetMinutes(category string, totals map[string]int) int {
	if strings.EqualFold(category, "Work") {
		return totals["Work (active)"] + totals["Work (passive)"]
	}
	for cat, mins := range totals {
		if strings.EqualFold(cat, category) {
			return mins
		}
	}
	return 0
}

func targetDayMinutes(category string, dayMins map[string]map[string]int) map[string]int {
	if strings.EqualFold(category, "Work") {
		merged := make(map[string]int)
		for _, bucket := range []string{"Work (active)", "Work (passive)"} {
			for day, mins := range dayMins[bucket] {
				merged[day] += mins
			}
		}
		return merged
	}
	for cat, perDay := range dayMins {
		if strings.EqualFold(cat, category) {
			return perDay
		}
	}
	return nil
}

func round1(v float64) float64 {
	if v < 0 {
		return float64(int(v*10-0.5)) / 10
	}
	return float64(int(v*10+0.5)) / 10
}
