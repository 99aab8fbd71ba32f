// Package scheduler runs the background reminder loop: on an aligned
// interval it checks whether any time has been logged recently and nudges
// the user with a desktop notification when the day is drifting unlogged.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/okarlsen/daytally/internal/config"
	"github.com/okarlsen/daytally/internal/store"
)

type Scheduler struct {
	cfg    *config.Config
	db     *store.DB
	logger *slog.Logger
	notify func(title, message string) error
}

func New(cfg *config.Config, db *store.DB, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		cfg:    cfg,
		db:     db,
		logger: logger,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Run blocks until ctx is cancelled, nudging at interval boundaries.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.writePID(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer s.removePID()

	interval := time.Duration(s.cfg.Reminder.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	s.logger.Info("reminder loop started", "interval", interval)

	for {
		next := nextAlignedTick(time.Now(), interval)
		s.logger.Debug("next reminder check", "at", next.Format("15:04"))

		select {
		case <-ctx.Done():
			s.logger.Info("reminder loop stopped")
			return nil
		case <-time.After(time.Until(next)):
		}

		s.tick(next, interval)
	}
}

// tick nudges unless an entry already ended inside the elapsed interval,
// which means the user is keeping up.
func (s *Scheduler) tick(tickTime time.Time, interval time.Duration) {
	last, ok, err := s.db.LastBoundary(s.cfg.User.ID)
	if err != nil {
		s.logger.Warn("reading last entry boundary", "error", err)
		return
	}
	if ok && tickTime.UTC().Sub(last) < interval {
		return
	}

	unlogged := interval
	if ok {
		unlogged = tickTime.UTC().Sub(last)
	}

	msg := fmt.Sprintf("About %s unlogged. What have you been doing?", unlogged.Round(time.Minute))
	if err := s.notify("daytally", msg); err != nil {
		s.logger.Warn("sending notification", "error", err)
	}
}

func nextAlignedTick(now time.Time, interval time.Duration) time.Time {
	mins := int(interval.Minutes())
	if mins <= 0 {
		mins = 60
	}

	nextMinute := ((now.Minute() / mins) + 1) * mins
	next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	return next.Add(time.Duration(nextMinute) * time.Minute)
}

func pidPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daytally.pid"), nil
}

func (s *Scheduler) writePID() error {
	path, err := pidPath()
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func (s *Scheduler) removePID() {
	if path, err := pidPath(); err == nil {
		os.Remove(path)
	}
}

// ReadPID reports the PID of a running reminder loop, if any.
func ReadPID() (int, error) {
	path, err := pidPath()
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no running reminder loop found")
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file")
	}

	return pid, nil
}
