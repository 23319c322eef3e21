package services

import (
	"testing"
	"time"

	"securedocs/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreateNestedShareIsIdempotentAndInherits(t *testing.T) {
	env := newTestEnv(t)
	env.setNow(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	owner := env.user(t, false)
	folder := env.folder(t, owner.ID, "Reports", nil)
	sub := env.folder(t, owner.ID, "2026", &folder)
	file := env.file(t, owner.ID, "q1.pdf", &sub, []byte("pdf"))
	parent := env.share(t, CreateShareInput{FileID: folder.ID, OwnerID: owner.ID, ExpiresInDays: intPtr(10), MaxDownloads: intPtr(3)})

	first, node, err := env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, parent, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.ID, node.ID)
	assert.NotEqual(t, parent.ID, first.ID)
	require.NotNil(t, first.ParentShareID)
	assert.Equal(t, parent.ID, *first.ParentShareID)
	assert.Equal(t, models.ShareTypeFile, first.ShareType)
	require.NotNil(t, first.MaxDownloads)
	assert.Equal(t, 3, *first.MaxDownloads)
	require.NotNil(t, first.ExpiresAt)
	assert.True(t, first.ExpiresAt.Equal(*parent.ExpiresAt))
	assert.Zero(t, first.DownloadCount)

	second, _, err := env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, parent, file.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ShareToken, second.ShareToken)

	self, root, err := env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, parent, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, parent.ID, self.ID)
	assert.Equal(t, folder.ID, root.ID)

	assert.Equal(t, int64(2), env.countRows(t, &models.PublicShare{}, "owner_id = ?", owner.ID))
}

func TestResolveOrCreateNestedShareRejectsItemsOutsideTheShare(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	other := env.user(t, false)
	shared := env.folder(t, owner.ID, "Shared", nil)
	private := env.folder(t, owner.ID, "Private", nil)
	secret := env.file(t, owner.ID, "secret.txt", &private, []byte("s"))
	foreign := env.file(t, other.ID, "foreign.txt", nil, []byte("f"))
	single := env.file(t, owner.ID, "single.txt", nil, []byte("x"))
	folderShare := env.share(t, CreateShareInput{FileID: shared.ID, OwnerID: owner.ID})
	fileShare := env.share(t, CreateShareInput{FileID: single.ID, OwnerID: owner.ID})

	_, _, err := env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, folderShare, secret.ID)
	requireKind(t, err, KindNotFound)

	_, _, err = env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, folderShare, foreign.ID)
	requireKind(t, err, KindNotFound)

	_, _, err = env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, folderShare, 987654)
	requireKind(t, err, KindNotFound)

	_, _, err = env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, fileShare, secret.ID)
	requireKind(t, err, KindNotFound)

	assert.Equal(t, int64(2), env.countRows(t, &models.PublicShare{}, "owner_id = ?", owner.ID))
}

func TestBuildBreadcrumbsRunsFromRootToCurrent(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	a := env.folder(t, owner.ID, "A", nil)
	b := env.folder(t, owner.ID, "B", &a)
	c := env.folder(t, owner.ID, "C", &b)
	share := env.share(t, CreateShareInput{FileID: a.ID, OwnerID: owner.ID})

	crumbs, err := env.svc.Nested.BuildBreadcrumbs(env.ctx, c, share)
	require.NoError(t, err)
	assert.Equal(t, []Breadcrumb{
		{ID: a.ID, Name: "A", IsRoot: true},
		{ID: b.ID, Name: "B"},
		{ID: c.ID, Name: "C"},
	}, crumbs)

	crumbs, err = env.svc.Nested.BuildBreadcrumbs(env.ctx, a, share)
	require.NoError(t, err)
	assert.Equal(t, []Breadcrumb{{ID: a.ID, Name: "A", IsRoot: true}}, crumbs)
}

func TestBuildBreadcrumbsDetectsCyclesAndDepth(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	a := env.folder(t, owner.ID, "A", nil)
	b := env.folder(t, owner.ID, "B", &a)
	c := env.folder(t, owner.ID, "C", &b)
	share := env.share(t, CreateShareInput{FileID: a.ID, OwnerID: owner.ID})

	x := env.folder(t, owner.ID, "X", nil)
	y := env.folder(t, owner.ID, "Y", &x)
	require.NoError(t, env.db.Model(&models.FileNode{}).Where("id = ?", x.ID).
		Updates(map[string]interface{}{"parent_id": y.ID, "parent_key": y.ID}).Error)

	_, err := env.svc.Nested.BuildBreadcrumbs(env.ctx, y, share)
	requireKind(t, err, KindIntegrity)

	loose := env.folder(t, owner.ID, "Loose", nil)
	_, err = env.svc.Nested.BuildBreadcrumbs(env.ctx, loose, share)
	requireKind(t, err, KindNotFound)

	env.svc.Nested.maxDepth = 1
	_, err = env.svc.Nested.BuildBreadcrumbs(env.ctx, c, share)
	requireKind(t, err, KindIntegrity)
}

func TestBrowseFolderListsChildrenWithNestedToken(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	root := env.folder(t, owner.ID, "Root", nil)
	docs := env.folder(t, owner.ID, "Docs", &root)
	env.file(t, owner.ID, "b.txt", &docs, []byte("b"))
	env.file(t, owner.ID, "a.txt", &docs, []byte("a"))
	loose := env.file(t, owner.ID, "loose.txt", &root, []byte("l"))
	share := env.share(t, CreateShareInput{FileID: root.ID, OwnerID: owner.ID})

	view, err := env.svc.Nested.BrowseFolder(env.ctx, share, docs.ID, BrowseQuery{})
	require.NoError(t, err)
	assert.Equal(t, docs.ID, view.Folder.ID)
	assert.NotEqual(t, share.ShareToken, view.ShareToken)
	assert.Equal(t, int64(2), view.Total)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "a.txt", view.Items[0].Name)
	require.Len(t, view.Breadcrumbs, 2)
	assert.True(t, view.Breadcrumbs[0].IsRoot)

	rootView, err := env.svc.Nested.BrowseFolder(env.ctx, share, root.ID, BrowseQuery{Search: "lo"})
	require.NoError(t, err)
	assert.Equal(t, share.ShareToken, rootView.ShareToken)
	require.Len(t, rootView.Items, 1)
	assert.Equal(t, loose.ID, rootView.Items[0].ID)

	_, err = env.svc.Nested.BrowseFolder(env.ctx, share, loose.ID, BrowseQuery{})
	requireKind(t, err, KindValidation)
}

func TestDescribeFileRejectsConsumedNestedShare(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	root := env.folder(t, owner.ID, "Root", nil)
	file := env.file(t, owner.ID, "one.txt", &root, []byte("1"))
	share := env.share(t, CreateShareInput{FileID: root.ID, OwnerID: owner.ID, IsOneTime: true})

	view, err := env.svc.Nested.DescribeFile(env.ctx, share, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.ID, view.File.ID)
	assert.Equal(t, ShareActive, view.Status)

	nested, _, err := env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, share, file.ID)
	require.NoError(t, err)
	assert.Equal(t, view.ShareToken, nested.ShareToken)
	require.NoError(t, env.svc.Shares.RecordDownload(env.ctx, nested))

	_, err = env.svc.Nested.DescribeFile(env.ctx, share, file.ID)
	requireKind(t, err, KindExpiredOrExhausted)
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ShareUsed, appErr.Data.(errorData)["status"])
}

func TestBrowseFolderRejectsConsumedNestedShare(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	root := env.folder(t, owner.ID, "Root", nil)
	docs := env.folder(t, owner.ID, "Docs", &root)
	env.file(t, owner.ID, "a.txt", &docs, []byte("a"))
	share := env.share(t, CreateShareInput{FileID: root.ID, OwnerID: owner.ID, IsOneTime: true})

	_, err := env.svc.Nested.BrowseFolder(env.ctx, share, docs.ID, BrowseQuery{})
	require.NoError(t, err)

	nested, _, err := env.svc.Nested.ResolveOrCreateNestedShare(env.ctx, share, docs.ID)
	require.NoError(t, err)
	require.NoError(t, env.svc.Shares.RecordDownload(env.ctx, nested))

	_, err = env.svc.Nested.BrowseFolder(env.ctx, share, docs.ID, BrowseQuery{})
	requireKind(t, err, KindExpiredOrExhausted)

	// The root share itself is untouched.
	_, err = env.svc.Nested.BrowseFolder(env.ctx, share, root.ID, BrowseQuery{})
	require.NoError(t, err)
}

func TestAuthorizeDescendantChecksNestedValidity(t *testing.T) {
	env := newTestEnv(t)
	owner := env.user(t, false)
	root := env.folder(t, owner.ID, "Root", nil)
	file := env.file(t, owner.ID, "one.txt", &root, []byte("1"))
	share := env.share(t, CreateShareInput{FileID: root.ID, OwnerID: owner.ID, MaxDownloads: intPtr(1)})

	rootItem, nested, err := env.svc.Nested.AuthorizeDescendant(env.ctx, share.ShareToken, "", file.ID)
	require.NoError(t, err)
	assert.Equal(t, share.ID, rootItem.Share.ID)
	require.NoError(t, env.svc.Shares.RecordDownload(env.ctx, nested.Share))

	_, _, err = env.svc.Nested.AuthorizeDescendant(env.ctx, share.ShareToken, "", file.ID)
	requireKind(t, err, KindExpiredOrExhausted)

	rootItem, same, err := env.svc.Nested.AuthorizeDescendant(env.ctx, share.ShareToken, "", root.ID)
	require.NoError(t, err)
	assert.Equal(t, rootItem.Share.ID, same.Share.ID)
}
