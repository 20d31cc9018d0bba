package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// PruneTarget selects the files in Dir whose names start with Prefix.
type PruneTarget struct {
	Dir    string
	Prefix string
}

// Prune removes regular files in dir starting with prefix and last modified
// before cutoff. It returns how many files were removed.
func Prune(dir, prefix string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}
	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// RegisterHousekeeping schedules pruning of files older than retention.
// spec is a six-field cron expression (seconds first).
func (s *Scheduler) RegisterHousekeeping(spec string, targets []PruneTarget, retention time.Duration) error {
	if _, err := s.Cron.AddFunc(spec, func() { s.Housekeep(targets, retention) }); err != nil {
		return fmt.Errorf("register housekeeping: %w", err)
	}
	return nil
}

// Housekeep prunes every target once.
func (s *Scheduler) Housekeep(targets []PruneTarget, retention time.Duration) {
	cutoff := s.Now().Add(-retention)
	for _, t := range targets {
		n, err := Prune(t.Dir, t.Prefix, cutoff)
		if err != nil {
			s.Logger.Warn("housekeeping failed", zap.String("dir", t.Dir), zap.Error(err))
			continue
		}
		if n > 0 {
			s.Logger.Info("stale files pruned", zap.String("dir", t.Dir), zap.Int("removed", n))
		}
	}
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("housekeeping cron started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("housekeeping cron stopped")
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
