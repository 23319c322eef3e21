package services

import (
	"testing"
	"time"

	"securedocs/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyToAccountClonesIntoViewerRoot(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	viewer := env.user(t, false)
	original := env.file(t, owner.ID, "plan.pdf", nil, []byte("%PDF"))
	share := env.share(t, CreateShareInput{FileID: original.ID, OwnerID: owner.ID})
	env.file(t, viewer.ID, "plan.pdf", nil, []byte("mine"))

	copied, err := env.svc.Copies.CopyToAccount(env.ctx, share, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, viewer.ID, copied.OwnerID)
	assert.Nil(t, copied.ParentID)
	assert.Equal(t, "plan.pdf COPY(1)", copied.Name)
	assert.Equal(t, original.StoragePath, copied.StoragePath)
	assert.Equal(t, original.ContentHash, copied.ContentHash)
	require.NotNil(t, copied.SizeBytes)
	assert.Equal(t, *original.SizeBytes, *copied.SizeBytes)

	assert.Equal(t, int64(1), env.countRows(t, &models.SharedFileCopy{},
		"original_share_id = ? AND copied_by_user_id = ? AND copied_file_id = ?", share.ID, viewer.ID, copied.ID))

	last := env.notifier.Events()
	require.NotEmpty(t, last)
	assert.Equal(t, EventFileCreated, last[len(last)-1].Event)
	assert.Equal(t, copied.ID, last[len(last)-1].Payload.(map[string]interface{})["id"])

	_, err = env.svc.Copies.CopyToAccount(env.ctx, share, viewer.ID)
	requireKind(t, err, KindConflict)
	assert.Equal(t, int64(1), env.countRows(t, &models.SharedFileCopy{}, "original_share_id = ?", share.ID))
}

func TestCopyToAccountOutlastsRepeatedNameRaces(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	viewer := env.user(t, false)
	original := env.file(t, owner.ID, "report.txt", nil, []byte("r"))
	share := env.share(t, CreateShareInput{FileID: original.ID, OwnerID: owner.ID})
	contended := &contendedNodeRepo{NodeRepository: env.svc.Copies.nodes, failures: 7}
	env.svc.Copies.nodes = contended

	copied, err := env.svc.Copies.CopyToAccount(env.ctx, share, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", copied.Name)
	assert.Equal(t, 8, contended.calls)
	assert.Equal(t, int64(1), env.countRows(t, &models.SharedFileCopy{}, "original_share_id = ?", share.ID))
}

func TestCopyToAccountCopiesFolderAsEmptyFolder(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	viewer := env.user(t, false)
	folder := env.folder(t, owner.ID, "Album", nil)
	env.file(t, owner.ID, "photo.jpg", &folder, []byte("jpg"))
	share := env.share(t, CreateShareInput{FileID: folder.ID, OwnerID: owner.ID})
	before := len(env.notifier.Events())

	copied, err := env.svc.Copies.CopyToAccount(env.ctx, share, viewer.ID)
	require.NoError(t, err)
	assert.True(t, copied.IsFolder)
	assert.Equal(t, "Album", copied.Name)
	assert.Len(t, env.notifier.Events(), before, "folders do not notify")

	page, err := env.svc.Hierarchy.ListChildren(env.ctx, ListChildrenQuery{OwnerID: viewer.ID, ParentID: parentIDOf(&copied)})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestCopyToAccountRejectsUnusableShares(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	env.setNow(now)
	owner := env.user(t, false)
	viewer := env.user(t, false)
	file := env.file(t, owner.ID, "expiring.txt", nil, []byte("e"))
	share := env.share(t, CreateShareInput{FileID: file.ID, OwnerID: owner.ID, ExpiresInDays: intPtr(1)})

	_, err := env.svc.Copies.CopyToAccount(env.ctx, share, 0)
	requireKind(t, err, KindValidation)

	env.setNow(now.AddDate(0, 0, 2))
	_, err = env.svc.Copies.CopyToAccount(env.ctx, share, viewer.ID)
	requireKind(t, err, KindExpiredOrExhausted)

	env.setNow(now)
	require.NoError(t, env.svc.Hierarchy.SoftDelete(env.ctx, owner.ID, file.ID))
	_, err = env.svc.Copies.CopyToAccount(env.ctx, share, viewer.ID)
	requireKind(t, err, KindNotFound)
	assert.Zero(t, env.countRows(t, &models.SharedFileCopy{}, "copied_by_user_id = ?", viewer.ID))
}

func TestCopyToAccountDoesNotConsumeDownloads(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	viewer := env.user(t, false)
	file := env.file(t, owner.ID, "once.txt", nil, []byte("1"))
	share := env.share(t, CreateShareInput{FileID: file.ID, OwnerID: owner.ID, IsOneTime: true})

	_, err := env.svc.Copies.CopyToAccount(env.ctx, share, viewer.ID)
	require.NoError(t, err)
	assert.Zero(t, env.reloadShare(t, share.ID).DownloadCount)
}
