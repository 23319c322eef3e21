package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"securedocs/config"
	"securedocs/database"
	"securedocs/models"
	"securedocs/repositories"
	"securedocs/storage"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordedEvent struct {
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Event: event, Payload: payload})
}

func (n *recordingNotifier) Events() []recordedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

// testEnv wires every service against a throwaway sqlite file and a local
// blob directory.
type testEnv struct {
	ctx      context.Context
	db       *gorm.DB
	cfg      *config.Config
	repos    repositories.Container
	blobs    *storage.LocalBackend
	notifier *recordingNotifier
	svc      *Container
	users    int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "services.db")
	cfg.Database.LogLevel = "silent"
	cfg.JWT.Secret = "test-jwt-secret"
	cfg.Share.GrantSecret = "test-grant-secret"
	cfg.Storage.BasePath = t.TempDir()
	cfg.Storage.TempDir = filepath.Join(cfg.Storage.BasePath, "temp")

	db, err := database.Open(&cfg.Database)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	blobs, err := storage.NewLocalBackend(cfg.Storage.BasePath)
	require.NoError(t, err)

	previous := defaultCleanupService
	t.Cleanup(func() { SetCleanupService(previous) })

	repos := repositories.NewGormRepositories(db, nil, cfg.Webhook.QueueKey).BuildContainer()
	svc := NewContainer(cfg, repos, blobs)
	notifier := &recordingNotifier{}
	svc.Hierarchy.notifier = notifier
	svc.Copies.notifier = notifier

	return &testEnv{
		ctx:      context.Background(),
		db:       db,
		cfg:      cfg,
		repos:    repos,
		blobs:    blobs,
		notifier: notifier,
		svc:      svc,
	}
}

// setNow pins the clock of every service.
func (e *testEnv) setNow(now time.Time) {
	clock := func() time.Time { return now }
	e.svc.Hierarchy.now = clock
	e.svc.Shares.now = clock
	e.svc.Copies.now = clock
	e.svc.Cleanup.now = clock
}

func (e *testEnv) user(t *testing.T, premium bool) models.User {
	t.Helper()
	e.users++
	user := models.User{Username: fmt.Sprintf("user%d", e.users), IsPremium: premium}
	require.NoError(t, e.repos.Users.Create(e.ctx, nil, &user))
	return user
}

func (e *testEnv) folder(t *testing.T, ownerID uint, name string, parent *models.FileNode) models.FileNode {
	t.Helper()
	node, err := e.svc.Hierarchy.CreateNode(e.ctx, CreateNodeInput{
		OwnerID:  ownerID,
		Name:     name,
		ParentID: parentIDOf(parent),
		IsFolder: true,
	})
	require.NoError(t, err)
	return node
}

func (e *testEnv) file(t *testing.T, ownerID uint, name string, parent *models.FileNode, content []byte) models.FileNode {
	t.Helper()
	node, err := e.svc.Hierarchy.UploadFile(e.ctx, UploadFileInput{
		OwnerID:  ownerID,
		ParentID: parentIDOf(parent),
		Name:     name,
		Content:  bytes.NewReader(content),
	})
	require.NoError(t, err)
	return node
}

func (e *testEnv) share(t *testing.T, in CreateShareInput) models.PublicShare {
	t.Helper()
	share, err := e.svc.Shares.CreateShare(e.ctx, in)
	require.NoError(t, err)
	return share
}

func (e *testEnv) reloadShare(t *testing.T, id uint) models.PublicShare {
	t.Helper()
	share, err := e.repos.Shares.GetByID(e.ctx, nil, id)
	require.NoError(t, err)
	return share
}

func (e *testEnv) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Unscoped().Model(model).Where(query, args...).Count(&count).Error)
	return count
}

func parentIDOf(parent *models.FileNode) *uint {
	if parent == nil {
		return nil
	}
	id := parent.ID
	return &id
}

func intPtr(v int) *int { return &v }

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, IsKind(err, kind), "expected %s error, got %v", kind, err)
}

// contendedNodeRepo fails the first failures inserts with a sibling-index
// violation, as if another writer kept taking the chosen name.
type contendedNodeRepo struct {
	repositories.NodeRepository
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *contendedNodeRepo) Create(ctx context.Context, tx *gorm.DB, node *models.FileNode) error {
	r.mu.Lock()
	r.calls++
	lose := r.calls <= r.failures
	r.mu.Unlock()
	if lose {
		return gorm.ErrDuplicatedKey
	}
	return r.NodeRepository.Create(ctx, tx, node)
}
