// Package reconcile answers the questions the tracker exists for: what was
// logged, what was planned, what is still unaccounted for, and where do the
// two views disagree.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/okarlsen/daytally/internal/classify"
	"github.com/okarlsen/daytally/internal/interval"
	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/source"
	"github.com/okarlsen/daytally/internal/store"
	"github.com/okarlsen/daytally/internal/timecalc"
)

var (
	// ErrNotFound means the referenced entry, event or category does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means the request itself is malformed (inverted range,
	// missing category, window too large).
	ErrInvalidInput = errors.New("invalid input")
)

// Options tune reconciliation behavior. Zero values fall back to defaults.
type Options struct {
	// SuppressionThreshold is the minimum fraction of a planned event that
	// must be covered by logged time before the event is hidden as already
	// accounted for.
	SuppressionThreshold float64

	// StatsExcludeHours drops entries at least this long from summaries, so
	// an all-day marker does not swamp the day it sits on.
	StatsExcludeHours int

	// MaxRangeDays caps multi-day queries.
	MaxRangeDays int

	// DefaultTimezone is used when a user's stored timezone name does not
	// resolve. Empty falls through to UTC.
	DefaultTimezone string
}

func (o Options) withDefaults() Options {
	if o.SuppressionThreshold <= 0 {
		o.SuppressionThreshold = 0.5
	}
	if o.StatsExcludeHours <= 0 {
		o.StatsExcludeHours = 23
	}
	if o.MaxRangeDays <= 0 {
		o.MaxRangeDays = 31
	}
	return o
}

// Service reconciles logged entries against planned events for one database.
type Service struct {
	db         *store.DB
	agg        *source.Aggregator
	classifier classify.Provider
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(db *store.DB, agg *source.Aggregator, classifier classify.Provider, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if classifier == nil {
		classifier = classify.Rules{}
	}
	return &Service{
		db:         db,
		agg:        agg,
		classifier: classifier,
		opts:       opts.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

// userLocation resolves the user's timezone, falling back to the configured
// default zone and then UTC.
func (s *Service) userLocation(userID string) (*time.Location, error) {
	tz, err := s.db.UserTimezone(userID)
	if err != nil {
		return nil, err
	}
	if tz == "" {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return timecalc.LoadLocation(tz, s.opts.DefaultTimezone), nil
}

// DayView is one local day's logged time and its remaining gaps.
type DayView struct {
	Day     string
	Start   time.Time
	End     time.Time
	Entries []model.LoggedEntry
	Gaps    []interval.Span
}

// Day returns the entries and unlogged gaps for the user's local day. For the
// current day, gaps stop at the present moment rather than running to
// midnight.
func (s *Service) Day(ctx context.Context, userID, day string) (DayView, error) {
	loc, err := s.userLocation(userID)
	if err != nil {
		return DayView{}, err
	}

	now := s.now().UTC()
	start, end := timecalc.DayBounds(now, day, loc)

	entries, err := s.db.ListEntries(userID, start, end)
	if err != nil {
		return DayView{}, err
	}

	// Future time is never a gap: the accountable window stops at now,
	// which for a fully future day leaves nothing to account for.
	effectiveEnd := end
	if now.Before(effectiveEnd) {
		effectiveEnd = now
	}

	spans := make([]interval.Span, 0, len(entries))
	for _, e := range entries {
		spans = append(spans, interval.Span{Start: e.StartAt, End: e.EndAt})
	}

	var gaps []interval.Span
	if effectiveEnd.After(start) {
		gaps = interval.Gaps(interval.Span{Start: start, End: effectiveEnd}, spans)
	}

	return DayView{
		Day:     timecalc.LocalDay(start, loc),
		Start:   start,
		End:     end,
		Entries: entries,
		Gaps:    gaps,
	}, nil
}

// SourceOptions selects which live calendar providers a query consults.
// Imported sources (ICS, EventKit) are always included; the zero value asks
// for imported events only, which is the safe default when a live calendar
// is already synced through an import path.
type SourceOptions struct {
	IncludeGoogle  bool
	IncludeOutlook bool
}

// AllSources consults every registered provider.
func AllSources() SourceOptions {
	return SourceOptions{IncludeGoogle: true, IncludeOutlook: true}
}

// only translates the selection into an aggregator filter; nil means no
// filter at all.
func (o SourceOptions) only() []model.EventSource {
	if o.IncludeGoogle && o.IncludeOutlook {
		return nil
	}
	only := []model.EventSource{model.EventSourceAppleICS, model.EventSourceAppleEventKit}
	if o.IncludeGoogle {
		only = append(only, model.EventSourceGoogle)
	}
	if o.IncludeOutlook {
		only = append(only, model.EventSourceOutlook)
	}
	return only
}

// PlannedDay is the merged calendar view for one local day, with events the
// user already accounted for filtered out.
type PlannedDay struct {
	Day        string
	Events     []model.PlannedEvent
	Suppressed int
	Statuses   []source.Status
	ItemErrors []source.ItemError
}

// Planned fetches the selected calendars for the user's local day and drops
// events already covered by logged time, either through an explicit link or
// because logged entries overlap enough of the event.
func (s *Service) Planned(ctx context.Context, userID, day string, srcs SourceOptions) (PlannedDay, error) {
	loc, err := s.userLocation(userID)
	if err != nil {
		return PlannedDay{}, err
	}

	now := s.now().UTC()
	start, end := timecalc.DayBounds(now, day, loc)

	res := s.agg.Fetch(ctx, userID, start, end, loc, srcs.only()...)

	entries, err := s.db.ListEntries(userID, start, end)
	if err != nil {
		return PlannedDay{}, err
	}

	linked := make(map[string]bool)
	spans := make([]interval.Span, 0, len(entries))
	for _, e := range entries {
		if e.LinkedPlannedEventID != "" {
			linked[e.LinkedPlannedEventID] = true
		}
		spans = append(spans, interval.Span{Start: e.StartAt, End: e.EndAt})
	}

	out := PlannedDay{
		Day:        timecalc.LocalDay(start, loc),
		Statuses:   res.Statuses,
		ItemErrors: res.Errors,
	}
	for _, ev := range res.Events {
		if s.suppressed(ev, linked, spans) {
			out.Suppressed++
			continue
		}
		ev.SuggestedCategory = classify.Suggest(ev.Title, "")
		out.Events = append(out.Events, ev)
	}
	return out, nil
}

func (s *Service) suppressed(ev model.PlannedEvent, linked map[string]bool, logged []interval.Span) bool {
	if linked[ev.ID] {
		return true
	}
	span := interval.Span{Start: ev.StartAt, End: ev.EndAt}
	return interval.OverlapFraction(span, logged) >= s.opts.SuppressionThreshold
}

// EntrySegment is the slice of an entry that falls on one local day.
type EntrySegment struct {
	interval.Span
	Day   string
	Entry model.LoggedEntry
}

// EventSegment is the slice of a planned event that falls on one local day.
type EventSegment struct {
	interval.Span
	Day   string
	Event model.PlannedEvent
}

// RangeView covers several consecutive local days.
type RangeView struct {
	Start    time.Time
	End      time.Time
	Segments []EntrySegment
	Events   []EventSegment
	Statuses []source.Status
}

// Range returns the user's entries over days consecutive local days starting
// at startDay, split at local midnights so a night's sleep shows up on both
// days it touches. Entries sharing a planned-event link are collapsed to the
// earliest one. Planned events not yet covered by logged time come along for
// free, split the same way; srcs defaults to imported sources only.
func (s *Service) Range(ctx context.Context, userID, startDay string, days int, srcs SourceOptions) (RangeView, error) {
	if days < 1 || days > s.opts.MaxRangeDays {
		return RangeView{}, fmt.Errorf("%w: days must be 1..%d, got %d", ErrInvalidInput, s.opts.MaxRangeDays, days)
	}

	loc, err := s.userLocation(userID)
	if err != nil {
		return RangeView{}, err
	}

	now := s.now().UTC()
	start, end := timecalc.RangeBounds(now, startDay, days, loc)

	entries, err := s.db.ListEntries(userID, start, end)
	if err != nil {
		return RangeView{}, err
	}

	window := interval.Span{Start: start, End: end}
	view := RangeView{Start: start, End: end}

	linked := make(map[string]bool)
	spans := make([]interval.Span, 0, len(entries))
	seenLink := make(map[string]bool)
	for _, e := range entries {
		if e.LinkedPlannedEventID != "" {
			linked[e.LinkedPlannedEventID] = true
		}
		spans = append(spans, interval.Span{Start: e.StartAt, End: e.EndAt})

		if e.LinkedPlannedEventID != "" {
			if seenLink[e.LinkedPlannedEventID] {
				continue
			}
			seenLink[e.LinkedPlannedEventID] = true
		}

		span := interval.Span{Start: e.StartAt, End: e.EndAt}.Clip(window)
		if span.IsEmpty() {
			continue
		}
		for _, seg := range interval.SplitByLocalDay(span, loc) {
			view.Segments = append(view.Segments, EntrySegment{Span: seg.Span, Day: seg.Day, Entry: e})
		}
	}

	res := s.agg.Fetch(ctx, userID, start, end, loc, srcs.only()...)
	view.Statuses = res.Statuses
	for _, ev := range res.Events {
		if s.suppressed(ev, linked, spans) {
			continue
		}
		span := interval.Span{Start: ev.StartAt, End: ev.EndAt}.Clip(window)
		if span.IsEmpty() {
			continue
		}
		for _, seg := range interval.SplitByLocalDay(span, loc) {
			view.Events = append(view.Events, EventSegment{Span: seg.Span, Day: seg.Day, Event: ev})
		}
	}
	return view, nil
}

// CategorizeInput names the event and the category to file it under. Exactly
// one of CategoryID or CategoryName is required; Title overrides the event's
// own title on the created entry.
type CategorizeInput struct {
	EventID      string
	CategoryID   string
	CategoryName string
	Title        string
}

// Categorize turns a stored planned event into a logged entry. Calling it
// again for the same event returns the existing entry instead of creating a
// duplicate.
func (s *Service) Categorize(ctx context.Context, userID string, in CategorizeInput) (model.LoggedEntry, error) {
	if in.CategoryID == "" && strings.TrimSpace(in.CategoryName) == "" {
		return model.LoggedEntry{}, fmt.Errorf("%w: provide a category id or name", ErrInvalidInput)
	}

	if existing, err := s.db.EntryByLinkedEvent(userID, in.EventID); err != nil {
		return model.LoggedEntry{}, err
	} else if existing != nil {
		return *existing, nil
	}

	ev, err := s.db.GetImported(userID, in.EventID)
	if err != nil {
		return model.LoggedEntry{}, err
	}
	if ev == nil {
		return model.LoggedEntry{}, fmt.Errorf("%w: planned event %s", ErrNotFound, in.EventID)
	}

	var cat *model.Category
	if in.CategoryID == "" {
		cat, err = s.db.GetOrCreateCategoryByName(userID, in.CategoryName)
		if err != nil {
			return model.LoggedEntry{}, err
		}
	} else {
		cat, err = s.db.GetCategory(userID, in.CategoryID)
		if err != nil {
			return model.LoggedEntry{}, err
		}
		if cat == nil {
			return model.LoggedEntry{}, fmt.Errorf("%w: category %s", ErrNotFound, in.CategoryID)
		}
	}

	title := ev.Title
	if in.Title != "" {
		title = in.Title
	}

	entry := model.LoggedEntry{
		UserID:               userID,
		StartAt:              ev.StartAt,
		EndAt:                ev.EndAt,
		Title:                title,
		CategoryID:           cat.ID,
		CategoryName:         cat.Name,
		Source:               model.SourceCalendarImport,
		LinkedPlannedEventID: ev.ID,
	}
	existing, err := s.db.InsertLinkedEntry(&entry)
	if err != nil {
		return model.LoggedEntry{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	s.logger.Info("planned event categorized", "event", ev.ID, "entry", entry.ID)
	return entry, nil
}

// AutoCategorize files every stored planned event in the window that has no
// linked entry yet, using the classifier's suggestion. Returns how many
// entries were created.
func (s *Service) AutoCategorize(ctx context.Context, userID string, start, end time.Time) (int, error) {
	events, err := s.db.ListImported(userID, start, end)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, ev := range events {
		existing, err := s.db.EntryByLinkedEvent(userID, ev.ID)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}

		name, err := s.classifier.Categorize(ctx, ev.Title)
		if err != nil {
			s.logger.Warn("classifier failed, using keyword rules", "title", ev.Title, "error", err)
			name = classify.Suggest(ev.Title, "")
		}
		cat, err := s.db.GetOrCreateCategoryByName(userID, name)
		if err != nil {
			return created, err
		}

		entry := model.LoggedEntry{
			UserID:               userID,
			StartAt:              ev.StartAt,
			EndAt:                ev.EndAt,
			Title:                ev.Title,
			CategoryID:           cat.ID,
			Source:               model.SourceAutoCategorize,
			LinkedPlannedEventID: ev.ID,
		}
		dup, err := s.db.InsertLinkedEntry(&entry)
		if err != nil {
			return created, err
		}
		if dup == nil {
			created++
		}
	}
	return created, nil
}

// QuickLogInput describes a manual entry. A zero Start defaults to the end of
// the most recent entry (or 15 minutes ago when there is none); a zero End
// defaults to now.
type QuickLogInput struct {
	Title        string
	CategoryName string
	Start        time.Time
	End          time.Time
	Tags         []string
	Device       string
}

// QuickLog records a block of time ending now, the common "just finished X"
// gesture.
func (s *Service) QuickLog(ctx context.Context, userID string, in QuickLogInput) (model.LoggedEntry, error) {
	if strings.TrimSpace(in.Title) == "" {
		return model.LoggedEntry{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	now := s.now().UTC()
	end := in.End
	if end.IsZero() {
		end = now
	}
	start := in.Start
	if start.IsZero() {
		if last, ok, err := s.db.LastBoundary(userID); err != nil {
			return model.LoggedEntry{}, err
		} else if ok && last.Before(end) {
			start = last
		} else {
			start = end.Add(-15 * time.Minute)
		}
	}
	if !end.After(start) {
		return model.LoggedEntry{}, fmt.Errorf("%w: end %s is not after start %s",
			ErrInvalidInput, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}

	category := in.CategoryName
	if strings.TrimSpace(category) == "" {
		category = classify.Suggest(in.Title, "")
	}
	cat, err := s.db.GetOrCreateCategoryByName(userID, category)
	if err != nil {
		return model.LoggedEntry{}, err
	}

	entry := model.LoggedEntry{
		UserID:     userID,
		StartAt:    start.UTC(),
		EndAt:      end.UTC(),
		Title:      in.Title,
		CategoryID: cat.ID,
		Tags:       in.Tags,
		Source:     model.SourceManual,
		Device:     in.Device,
	}
	if err := s.db.InsertEntry(&entry); err != nil {
		return model.LoggedEntry{}, err
	}
	entry.CategoryName = cat.Name
	return entry, nil
}

// CategoryTotal is one row of a summary breakdown.
type CategoryTotal struct {
	Category string
	Minutes  int
	Percent  float64
}

// Summary aggregates logged time by canonical category.
type Summary struct {
	Start           time.Time
	End             time.Time
	Breakdown       []CategoryTotal
	TotalLoggedMins int
	UntrackedMins   int
}

// Summarize totals the user's logged time over days consecutive local days
// starting at startDay. Entries are clipped to the window, grouped under
// canonical categories, and whole-day markers are left out so they do not
// count as 24 tracked hours.
func (s *Service) Summarize(ctx context.Context, userID, startDay string, days int) (Summary, error) {
	if days < 1 || days > s.opts.MaxRangeDays {
		return Summary{}, fmt.Errorf("%w: days must be 1..%d, got %d", ErrInvalidInput, s.opts.MaxRangeDays, days)
	}

	loc, err := s.userLocation(userID)
	if err != nil {
		return Summary{}, err
	}

	now := s.now().UTC()
	start, end := timecalc.RangeBounds(now, startDay, days, loc)

	entries, err := s.db.ListEntries(userID, start, end)
	if err != nil {
		return Summary{}, err
	}

	excludeMins := s.opts.StatsExcludeHours * 60
	window := interval.Span{Start: start, End: end}

	totals := make(map[string]int)
	totalMins := 0
	for _, e := range entries {
		span := interval.Span{Start: e.StartAt, End: e.EndAt}.Clip(window)
		mins := int(span.Duration().Minutes())
		if mins <= 0 || mins >= excludeMins {
			continue
		}
		cat := classify.Suggest(e.Title, e.CategoryName)
		totals[cat] += mins
		totalMins += mins
	}

	sum := Summary{Start: start, End: end, TotalLoggedMins: totalMins}
	for _, cat := range classify.CanonicalCategories {
		mins, ok := totals[cat]
		if !ok {
			continue
		}
		pct := 0.0
		if totalMins > 0 {
			pct = float64(mins) / float64(totalMins) * 100
		}
		sum.Breakdown = append(sum.Breakdown, CategoryTotal{Category: cat, Minutes: mins, Percent: pct})
	}
	sort.Slice(sum.Breakdown, func(i, j int) bool {
		if sum.Breakdown[i].Minutes != sum.Breakdown[j].Minutes {
			return sum.Breakdown[i].Minutes > sum.Breakdown[j].Minutes
		}
		return sum.Breakdown[i].Category < sum.Breakdown[j].Category
	})

	windowMins := int(end.Sub(start).Minutes())
	if windowMins > totalMins {
		sum.UntrackedMins = windowMins - totalMins
	}
	return sum, nil
}
