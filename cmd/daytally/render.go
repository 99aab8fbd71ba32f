package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/okarlsen/daytally/internal/model"
	"github.com/okarlsen/daytally/internal/reconcile"
	"github.com/okarlsen/daytally/internal/store"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	entryStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	gapStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func localClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

func fmtDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dmin", m)
	}
	return fmt.Sprintf("%dh %02dmin", h, m)
}

func renderDay(view reconcile.DayView, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(view.Day) + "\n\n")

	if len(view.Entries) == 0 {
		b.WriteString(dimStyle.Render("  nothing logged yet") + "\n")
	}
	for _, e := range view.Entries {
		line := fmt.Sprintf("  %s–%s  %-9s %s  %s",
			localClock(e.StartAt, loc), localClock(e.EndAt, loc),
			fmtDuration(e.Duration()),
			entryStyle.Render(e.Title),
			categoryStyle.Render(e.CategoryName))
		b.WriteString(line + "\n")
	}

	if len(view.Gaps) > 0 {
		b.WriteString("\n" + headerStyle.Render("Unaccounted") + "\n")
		var total time.Duration
		for _, g := range view.Gaps {
			total += g.Duration()
			b.WriteString(gapStyle.Render(fmt.Sprintf("  %s–%s  %s",
				localClock(g.Start, loc), localClock(g.End, loc), fmtDuration(g.Duration()))) + "\n")
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("  total %s unlogged", fmtDuration(total))) + "\n")
	}
	return b.String()
}

func renderPlanned(day reconcile.PlannedDay, loc *time.Location) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Planned "+day.Day) + "\n\n")

	if len(day.Events) == 0 {
		b.WriteString(dimStyle.Render("  no uncovered planned events") + "\n")
	}
	for _, ev := range day.Events {
		clock := fmt.Sprintf("%s–%s", localClock(ev.StartAt, loc), localClock(ev.EndAt, loc))
		if ev.IsAllDay {
			clock = "all day    "
		}
		b.WriteString(fmt.Sprintf("  %s  %s  %s %s\n",
			clock,
			entryStyle.Render(ev.Title),
			dimStyle.Render("["+string(ev.Source)+"]"),
			categoryStyle.Render("→ "+ev.SuggestedCategory)))
		b.WriteString(dimStyle.Render("             id "+ev.ID) + "\n")
	}

	if day.Suppressed > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("\n  %d event(s) already covered by logged time", day.Suppressed)) + "\n")
	}

	for _, st := range day.Statuses {
		if !st.OK {
			b.WriteString(errStyle.Render(fmt.Sprintf("  ! %s: %s", st.Source, st.Error)) + "\n")
		}
	}
	for _, ie := range day.ItemErrors {
		b.WriteString(errStyle.Render("  ! skipped "+ie.Error()) + "\n")
	}
	return b.String()
}

func renderRange(view reconcile.RangeView, loc *time.Location) string {
	var b strings.Builder
	day := ""
	for _, seg := range view.Segments {
		if seg.Day != day {
			day = seg.Day
			b.WriteString(headerStyle.Render(day) + "\n")
		}
		b.WriteString(fmt.Sprintf("  %s–%s  %s  %s\n",
			localClock(seg.Start, loc), localClock(seg.End, loc),
			entryStyle.Render(seg.Entry.Title),
			categoryStyle.Render(seg.Entry.CategoryName)))
	}
	if len(view.Segments) == 0 {
		b.WriteString(dimStyle.Render("  nothing logged in this range") + "\n")
	}
	if len(view.Events) > 0 {
		b.WriteString("\n" + headerStyle.Render("Still planned") + "\n")
		day = ""
		for _, seg := range view.Events {
			if seg.Day != day {
				day = seg.Day
				b.WriteString(dimStyle.Render("  "+day) + "\n")
			}
			b.WriteString(fmt.Sprintf("  %s–%s  %s\n",
				localClock(seg.Start, loc), localClock(seg.End, loc),
				gapStyle.Render(seg.Event.Title)))
		}
	}
	for _, st := range view.Statuses {
		if !st.OK {
			b.WriteString(errStyle.Render(fmt.Sprintf("  ! %s unavailable: %s", st.Source, st.Error)) + "\n")
		}
	}
	return b.String()
}

func renderSummary(sum reconcile.Summary) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Summary") + "\n\n")
	for _, row := range sum.Breakdown {
		bar := strings.Repeat("█", int(row.Percent/5))
		b.WriteString(fmt.Sprintf("  %-26s %8s  %5.1f%%  %s\n",
			categoryStyle.Render(row.Category),
			fmtDuration(time.Duration(row.Minutes)*time.Minute),
			row.Percent,
			dimStyle.Render(bar)))
	}
	b.WriteString(fmt.Sprintf("\n  logged %s, untracked %s\n",
		fmtDuration(time.Duration(sum.TotalLoggedMins)*time.Minute),
		fmtDuration(time.Duration(sum.UntrackedMins)*time.Minute)))
	return b.String()
}

func renderTargets(report reconcile.TargetReport) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Targets") + "\n\n")
	if len(report.Items) == 0 {
		b.WriteString(dimStyle.Render("  no targets set; try 'daytally targets set Exercise 5'") + "\n")
		return b.String()
	}
	for _, p := range report.Items {
		status := dimStyle
		switch p.Status {
		case reconcile.TargetAhead:
			status = categoryStyle
		case reconcile.TargetBehind:
			status = gapStyle
		}
		line := fmt.Sprintf("  %-26s %5.1fh of %5.1fh  %5.1f%%  %s",
			entryStyle.Render(p.Target.Category),
			p.ActualHours, p.ExpectedHours, p.Percent,
			status.Render(p.Status))
		if p.Target.Type == store.TargetHoursPerDay {
			line += dimStyle.Render(fmt.Sprintf("  (%d/%d days)", p.DaysMet, p.DaysTotal))
		}
		b.WriteString(line + "\n")
		b.WriteString(dimStyle.Render(fmt.Sprintf("    %s  %s %.1fh", p.Target.ID, p.Target.Type, p.Target.Value)) + "\n")
	}
	return b.String()
}

func renderEntry(e model.LoggedEntry, loc *time.Location) string {
	return fmt.Sprintf("Logged: %s–%s  %s  %s\n",
		localClock(e.StartAt, loc), localClock(e.EndAt, loc),
		entryStyle.Render(e.Title), categoryStyle.Render(e.CategoryName))
}

func renderSyncStatus(imported map[model.EventSource]store.SourceImportStatus) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Imported calendars") + "\n\n")
	if len(imported) == 0 {
		b.WriteString(dimStyle.Render("  nothing imported yet") + "\n")
	}
	for src, st := range imported {
		b.WriteString(fmt.Sprintf("  %-16s %4d events  last synced %s\n",
			string(src), st.Count, dimStyle.Render(st.LastSyncedAt.Format(time.RFC3339))))
	}
	return b.String()
}
