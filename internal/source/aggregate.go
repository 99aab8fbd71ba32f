package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/okarlsen/daytally/internal/model"
)

// Aggregator fans a window request out to every registered provider and
// merges what comes back. A provider that fails or times out contributes
// zero events plus a status record; it never fails the whole request.
type Aggregator struct {
	sources []Source
	timeout time.Duration
	logger  *slog.Logger
}

func NewAggregator(sources []Source, timeout time.Duration, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Aggregator{sources: sources, timeout: timeout, logger: logger}
}

// Result is the merged outcome of one aggregation pass.
type Result struct {
	Events   []model.PlannedEvent
	Statuses []Status
	Errors   []ItemError
}

// Fetch collects planned events from the registered providers for the UTC
// window [start, end). Providers run concurrently, each under its own
// timeout. A non-empty only list restricts the pass to those providers;
// the rest are not queried and report no status. The merged event list is
// ordered by start time, then source, then id.
func (a *Aggregator) Fetch(ctx context.Context, userID string, start, end time.Time, loc *time.Location, only ...model.EventSource) Result {
	sources := a.sources
	if len(only) > 0 {
		wanted := make(map[model.EventSource]bool, len(only))
		for _, s := range only {
			wanted[s] = true
		}
		sources = nil
		for _, src := range a.sources {
			if wanted[src.Name()] {
				sources = append(sources, src)
			}
		}
	}

	type outcome struct {
		events []model.PlannedEvent
		errs   []ItemError
		status Status
	}

	results := make([]outcome, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()

			sctx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			began := time.Now()
			raw, err := src.Events(sctx, start, end)
			elapsed := time.Since(began)

			st := Status{Source: src.Name(), FetchedIn: elapsed}
			if err != nil {
				st.Error = err.Error()
				level := slog.LevelWarn
				if errors.Is(err, ErrNotConfigured) {
					level = slog.LevelDebug
				}
				a.logger.Log(ctx, level, "calendar fetch failed",
					"source", src.Name(), "error", err, "elapsed", elapsed)
				results[i] = outcome{status: st}
				return
			}

			events, bad := Normalize(userID, src.Name(), raw, start, end, loc)
			st.OK = true
			st.Count = len(events)
			results[i] = outcome{events: events, errs: bad, status: st}
		}(i, src)
	}
	wg.Wait()

	var res Result
	seen := make(map[string]bool)
	for _, out := range results {
		for _, ev := range out.events {
			// A provider may hand the same item back twice (paging
			// overlap); ids are derived, so one copy is enough.
			if seen[ev.ID] {
				continue
			}
			seen[ev.ID] = true
			res.Events = append(res.Events, ev)
		}
		res.Errors = append(res.Errors, out.errs...)
		res.Statuses = append(res.Statuses, out.status)
	}

	sort.Slice(res.Events, func(i, j int) bool {
		ei, ej := res.Events[i], res.Events[j]
		if !ei.StartAt.Equal(ej.StartAt) {
			return ei.StartAt.Before(ej.StartAt)
		}
		if ei.Source != ej.Source {
			return ei.Source < ej.Source
		}
		return ei.ID < ej.ID
	})
	return res
}
