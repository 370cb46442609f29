// Package watch re-runs the live-store load whenever an input file changes,
// polling modification times on a fixed interval.
package watch

import (
	"context"
	"os"
	"time"

	"mediadex/internal"
	"mediadex/internal/config"
	"mediadex/internal/logger"
	"mediadex/internal/pipeline"
	"mediadex/internal/storage"
)

type Service struct {
	db  *storage.DB
	cfg config.Config
	log *logger.Logger

	lastSeen map[string]time.Time
}

func NewService(db *storage.DB, cfg config.Config, log *logger.Logger) *Service {
	return &Service{db: db, cfg: cfg, log: log, lastSeen: map[string]time.Time{}}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Error("watch cycle error", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.WatchIntervalSec) * time.Second):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	inputs := []struct {
		medium internal.Medium
		path   string
	}{
		{internal.MediumAnime, s.cfg.AnimeCSVPath},
		{internal.MediumManga, s.cfg.MangaCSVPath},
	}

	for _, in := range inputs {
		if in.path == "" {
			continue
		}
		changed, modTime, err := s.changedSince(in.path)
		if err != nil {
			s.log.Warn("watch stat failed", "path", in.path, "error", err)
			continue
		}
		if !changed {
			continue
		}

		svc := pipeline.NewService(pipeline.NewDBSink(s.db), s.log)
		report, err := svc.IngestFile(ctx, in.medium, in.path)
		if err != nil {
			return err
		}
		s.lastSeen[in.path] = modTime
		s.log.Info("watch cycle loaded",
			"medium", in.medium, "path", in.path,
			"loaded", report.Loaded, "skipped", len(report.Skipped))
	}
	return nil
}

func (s *Service) changedSince(path string) (bool, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, time.Time{}, err
	}
	last, seen := s.lastSeen[path]
	if seen && !info.ModTime().After(last) {
		return false, info.ModTime(), nil
	}
	return true, info.ModTime(), nil
}
