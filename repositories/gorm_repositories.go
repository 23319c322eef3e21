package repositories

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) *GormTxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return m.db.WithContext(ctx).Transaction(fn)
}

type GormRepositories struct {
	db       *gorm.DB
	redis    *redis.Client
	queueKey string
}

func NewGormRepositories(db *gorm.DB, redisClient *redis.Client, queueKey string) *GormRepositories {
	return &GormRepositories{db: db, redis: redisClient, queueKey: queueKey}
}

func (r *GormRepositories) BuildContainer() Container {
	container := Container{
		TxManager:   NewGormTxManager(r.db),
		Users:       NewGormUserRepository(r.db),
		Nodes:       NewGormNodeRepository(r.db),
		Shares:      NewGormShareRepository(r.db),
		Copies:      NewGormSharedCopyRepository(r.db),
		OtpSecurity: NewGormOtpSecurityRepository(r.db),
		AccessLogs:  NewGormAccessLogRepository(r.db),
	}
	if r.redis != nil {
		container.Notifications = NewRedisNotificationQueue(r.redis, r.queueKey)
		container.Thumbnails = NewRedisThumbnailCache(r.redis)
	} else {
		container.Notifications = NewMemoryNotificationQueue(1024)
		container.Thumbnails = NoopThumbnailCache{}
	}
	return container
}

func useTx(db *gorm.DB, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

// IsUniqueViolation reports whether err came from a unique index. Drivers
// without error translation are matched on their message.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}

const likeEscapeChar = "!"

// escapeLike quotes LIKE wildcards using '!' so the same pattern works on
// mysql, postgres and sqlite.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func childPathPattern(rootPath string) string {
	return escapeLike(strings.TrimRight(rootPath, "/")) + "/%"
}
