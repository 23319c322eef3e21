package services

import (
	"context"
	"sync"
	"time"

	"securedocs/config"
	"securedocs/repositories"
	"securedocs/storage"
)

type Container struct {
	Hierarchy *HierarchyService
	Shares    *ShareService
	Nested    *NestedShareService
	Archive   *ArchiveService
	Copies    *CopyService
	Previews  *PreviewService
	Checks    *AccountChecks
	Notifier  *WebhookNotifier
	Cleanup   *CleanupService
}

func NewContainer(cfg *config.Config, repos repositories.Container, blobs storage.Backend) *Container {
	if cfg == nil {
		cfg = config.Default()
	}

	notifier := NewWebhookNotifier(repos.Notifications, WebhookOptions{
		URL:         cfg.Webhook.URL,
		Timeout:     time.Duration(cfg.Webhook.TimeoutMs) * time.Millisecond,
		MaxAttempts: cfg.Webhook.MaxAttempts,
		RetryDelay:  time.Duration(cfg.Webhook.RetryDelayMs) * time.Millisecond,
	})
	checks := NewAccountChecks(repos.Users, repos.OtpSecurity)

	hierarchy := NewHierarchyService(repos.TxManager, repos.Nodes, repos.Shares, repos.Copies, blobs, notifier, HierarchyOptions{
		MaxNameLength:     cfg.Hierarchy.MaxNameLength,
		MaxDepth:          cfg.Hierarchy.MaxDepth,
		DisambiguateLimit: cfg.Hierarchy.DisambiguateLimit,
		DefaultPageSize:   cfg.Pagination.DefaultPageSize,
		MaxPageSize:       cfg.Pagination.MaxPageSize,
		MaxFileSize:       cfg.Storage.MaxFileSize,
	})
	shares := NewShareService(repos.TxManager, repos.Nodes, repos.Shares, repos.Copies, repos.AccessLogs, checks, ShareOptions{
		TokenLength:       cfg.Share.TokenLength,
		GrantSecret:       cfg.Share.GrantSecret,
		GrantTTL:          time.Duration(cfg.Share.GrantTTLMinutes) * time.Minute,
		MaxExpiresInDays:  cfg.Share.MaxExpiresInDays,
		MinPasswordLength: cfg.Share.MinPasswordLength,
		MaxPasswordLength: cfg.Share.MaxPasswordLength,
		MaxDownloadsLimit: cfg.Share.MaxDownloadsLimit,
		MaxDepth:          cfg.Hierarchy.MaxDepth,
		DefaultPageSize:   cfg.Pagination.DefaultPageSize,
		MaxPageSize:       cfg.Pagination.MaxPageSize,
	})

	container := &Container{
		Hierarchy: hierarchy,
		Shares:    shares,
		Nested:    NewNestedShareService(repos.Nodes, repos.Shares, hierarchy, shares, cfg.Hierarchy.MaxDepth),
		Archive: NewArchiveService(hierarchy, blobs, shares, ArchiveOptions{
			Enabled:       cfg.Archive.Enabled,
			MaxTotalBytes: cfg.Archive.MaxTotalBytes,
			TempDir:       cfg.Storage.TempDir,
		}),
		Copies: NewCopyService(repos.TxManager, repos.Nodes, repos.Copies, hierarchy, notifier),
		Previews: NewPreviewService(blobs, repos.Thumbnails, PreviewOptions{
			Width:    cfg.Thumbnail.Width,
			Height:   cfg.Thumbnail.Height,
			Quality:  cfg.Thumbnail.Quality,
			CacheTTL: time.Duration(cfg.Thumbnail.CacheTTLSeconds) * time.Second,
		}),
		Checks:   checks,
		Notifier: notifier,
		Cleanup: NewCleanupService(shares, hierarchy, CleanupOptions{
			ShareInterval:     time.Duration(cfg.Cleanup.ShareInterval) * time.Second,
			TrashInterval:     time.Duration(cfg.Cleanup.TrashInterval) * time.Second,
			ArchiveInterval:   time.Duration(cfg.Cleanup.ArchiveInterval) * time.Second,
			ExpiredShareGrace: time.Duration(cfg.Share.PurgeExpiredAfterDays) * 24 * time.Hour,
			TrashRetention:    time.Duration(cfg.Trash.RetentionDays) * 24 * time.Hour,
			ArchiveTempDir:    cfg.Storage.TempDir,
			StaleArchiveAge:   time.Duration(cfg.Archive.StaleAfterMinutes) * time.Minute,
		}),
	}
	SetCleanupService(container.Cleanup)
	return container
}

var (
	cleanupMu             sync.RWMutex
	defaultCleanupService *CleanupService
)

func SetCleanupService(svc *CleanupService) {
	cleanupMu.Lock()
	defer cleanupMu.Unlock()
	defaultCleanupService = svc
}

// StartCleanupWorkers runs the registered cleanup scheduler until ctx is
// done. Without a registered service it returns immediately.
func StartCleanupWorkers(ctx context.Context) error {
	cleanupMu.RLock()
	svc := defaultCleanupService
	cleanupMu.RUnlock()
	if svc == nil {
		return nil
	}
	return svc.Run(ctx)
}
