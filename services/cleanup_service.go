package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"securedocs/logger"

	"github.com/go-co-op/gocron"
)

const (
	TaskPurgeExpiredShares = "purge-expired-shares"
	TaskPurgeTrash         = "purge-trash"
	TaskPurgeStaleArchives = "purge-stale-archives"
)

type CleanupOptions struct {
	ShareInterval     time.Duration
	TrashInterval     time.Duration
	ArchiveInterval   time.Duration
	ExpiredShareGrace time.Duration
	TrashRetention    time.Duration
	ArchiveTempDir    string
	StaleArchiveAge   time.Duration
}

// CleanupTask is one periodic maintenance job. Handler reports how many
// items it removed.
type CleanupTask struct {
	Name     string
	Interval time.Duration
	Handler  func(ctx context.Context) (int, error)
}

type CleanupService struct {
	shares    *ShareService
	hierarchy *HierarchyService
	opts      CleanupOptions
	now       func() time.Time
	scheduler *gocron.Scheduler
	tasks     map[string]CleanupTask
}

func NewCleanupService(shares *ShareService, hierarchy *HierarchyService, opts CleanupOptions) *CleanupService {
	if opts.ShareInterval <= 0 {
		opts.ShareInterval = time.Hour
	}
	if opts.TrashInterval <= 0 {
		opts.TrashInterval = 24 * time.Hour
	}
	if opts.ArchiveInterval <= 0 {
		opts.ArchiveInterval = 15 * time.Minute
	}
	if opts.StaleArchiveAge <= 0 {
		opts.StaleArchiveAge = time.Hour
	}
	s := &CleanupService{
		shares:    shares,
		hierarchy: hierarchy,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		scheduler: gocron.NewScheduler(time.UTC),
	}
	s.tasks = map[string]CleanupTask{
		TaskPurgeExpiredShares: {Name: TaskPurgeExpiredShares, Interval: opts.ShareInterval, Handler: s.PurgeExpiredShares},
		TaskPurgeTrash:         {Name: TaskPurgeTrash, Interval: opts.TrashInterval, Handler: s.PurgeTrash},
		TaskPurgeStaleArchives: {Name: TaskPurgeStaleArchives, Interval: opts.ArchiveInterval, Handler: s.PurgeStaleArchives},
	}
	return s
}

// PurgeExpiredShares removes shares whose expiry passed more than the grace
// period ago.
func (s *CleanupService) PurgeExpiredShares(ctx context.Context) (int, error) {
	return s.shares.PurgeExpired(ctx, s.now().Add(-s.opts.ExpiredShareGrace))
}

func (s *CleanupService) PurgeTrash(ctx context.Context) (int, error) {
	return s.hierarchy.PurgeTrash(ctx, s.now().Add(-s.opts.TrashRetention))
}

// PurgeStaleArchives deletes archive temp files left behind by interrupted
// downloads.
func (s *CleanupService) PurgeStaleArchives(ctx context.Context) (int, error) {
	if s.opts.ArchiveTempDir == "" {
		return 0, nil
	}
	matches, err := filepath.Glob(filepath.Join(s.opts.ArchiveTempDir, archiveTempPattern))
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-s.opts.StaleArchiveAge)
	removed := 0
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove stale archive %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// RunTaskNow runs a task by name outside the schedule.
func (s *CleanupService) RunTaskNow(ctx context.Context, name string) (int, error) {
	task, ok := s.tasks[name]
	if !ok {
		return 0, fmt.Errorf("cleanup task %s not found", name)
	}
	return task.Handler(ctx)
}

// Run schedules every task and blocks until ctx is cancelled.
func (s *CleanupService) Run(ctx context.Context) error {
	for _, task := range s.tasks {
		task := task
		job, err := s.scheduler.Every(task.Interval).SingletonMode().Do(func() {
			removed, err := task.Handler(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Errorf("cleanup task %s failed: %v", task.Name, err)
				}
				return
			}
			if removed > 0 {
				logger.Infof("cleanup task %s removed %d item(s)", task.Name, removed)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s: %w", task.Name, err)
		}
		job.Tag(task.Name)
	}

	logger.Infof("cleanup scheduler started with %d task(s)", len(s.tasks))
	s.scheduler.StartAsync()
	<-ctx.Done()
	s.scheduler.Stop()
	logger.Infof("cleanup scheduler stopped")
	return nil
}
