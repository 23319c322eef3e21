package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"securedocs/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeStaleArchivesRemovesOnlyOldArchives(t *testing.T) {
	env := newTestEnv(t)
	dir := env.cfg.Storage.TempDir
	require.NoError(t, os.MkdirAll(dir, 0o755))

	stale := filepath.Join(dir, "share-archive-old.zip")
	fresh := filepath.Join(dir, "share-archive-new.zip")
	other := filepath.Join(dir, "unrelated.zip")
	for _, path := range []string{stale, fresh, other} {
		require.NoError(t, os.WriteFile(path, []byte("zip"), 0o644))
	}
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	removed, err := env.svc.Cleanup.RunTaskNow(env.ctx, TaskPurgeStaleArchives)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestRunTaskNowRejectsUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.Cleanup.RunTaskNow(env.ctx, "defragment")
	require.Error(t, err)
}

func TestPurgeTrashHonoursRetention(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()
	owner := env.user(t, false)
	folder := env.folder(t, owner.ID, "Old", nil)
	file := env.file(t, owner.ID, "old.txt", &folder, []byte("old"))
	require.NoError(t, env.svc.Hierarchy.SoftDelete(env.ctx, owner.ID, folder.ID))
	recent := env.file(t, owner.ID, "recent.txt", nil, []byte("new"))
	env.setNow(now.AddDate(0, 0, 20))
	require.NoError(t, env.svc.Hierarchy.SoftDelete(env.ctx, owner.ID, recent.ID))

	env.svc.Cleanup.opts.TrashRetention = 10 * 24 * time.Hour
	removed, err := env.svc.Cleanup.RunTaskNow(env.ctx, TaskPurgeTrash)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.Zero(t, env.countRows(t, &models.FileNode{}, "id IN ?", []uint{folder.ID, file.ID}))
	assert.Equal(t, int64(1), env.countRows(t, &models.FileNode{}, "id = ?", recent.ID))
	exists, err := env.blobs.Exists(env.ctx, file.StoragePath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPurgeExpiredSharesHonoursGrace(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env.setNow(now)
	owner := env.user(t, false)
	file := env.file(t, owner.ID, "a.txt", nil, []byte("a"))
	share := env.share(t, CreateShareInput{FileID: file.ID, OwnerID: owner.ID, ExpiresInDays: intPtr(1)})
	env.svc.Cleanup.opts.ExpiredShareGrace = 7 * 24 * time.Hour

	env.setNow(now.AddDate(0, 0, 5))
	removed, err := env.svc.Cleanup.PurgeExpiredShares(env.ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	env.setNow(now.AddDate(0, 0, 9))
	removed, err = env.svc.Cleanup.PurgeExpiredShares(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Zero(t, env.countRows(t, &models.PublicShare{}, "id = ?", share.ID))
}

func TestCleanupRunStopsWithContext(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(env.ctx)
	done := make(chan error, 1)
	go func() { done <- env.svc.Cleanup.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("cleanup scheduler did not stop")
	}
}
