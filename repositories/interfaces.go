package repositories

import (
	"context"
	"time"

	"securedocs/models"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, userID uint) (models.User, error)
	SetPremium(ctx context.Context, tx *gorm.DB, userID uint, premium bool) error
}

type ListChildrenInput struct {
	OwnerID  uint
	ParentID *uint
	Search   string
	Offset   int
	Limit    int
}

type NodeRepository interface {
	Create(ctx context.Context, tx *gorm.DB, node *models.FileNode) error
	GetByID(ctx context.Context, tx *gorm.DB, nodeID uint) (models.FileNode, error)
	GetByIDAndOwner(ctx context.Context, tx *gorm.DB, nodeID uint, ownerID uint) (models.FileNode, error)
	GetByIDAndOwnerUnscoped(ctx context.Context, tx *gorm.DB, nodeID uint, ownerID uint) (models.FileNode, error)
	ExistsLiveName(ctx context.Context, tx *gorm.DB, ownerID uint, parentID *uint, name string, excludeID uint) (bool, error)
	CountChildren(ctx context.Context, tx *gorm.DB, in ListChildrenInput) (int64, error)
	ListChildren(ctx context.Context, tx *gorm.DB, in ListChildrenInput) ([]models.FileNode, error)
	ListByParentIDs(ctx context.Context, tx *gorm.DB, ownerID uint, parentIDs []uint, unscoped bool) ([]models.FileNode, error)
	ListByPathPrefix(ctx context.Context, tx *gorm.DB, ownerID uint, rootPath string, unscoped bool) ([]models.FileNode, error)
	ListByIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uint, unscoped bool) ([]models.FileNode, error)
	UpdateByID(ctx context.Context, tx *gorm.DB, nodeID uint, updates map[string]interface{}) error
	UpdateByIDUnscoped(ctx context.Context, tx *gorm.DB, nodeID uint, updates map[string]interface{}) error
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uint, trashRootID uint, at time.Time) error
	ListTrashedByRoot(ctx context.Context, tx *gorm.DB, ownerID uint, trashRootID uint) ([]models.FileNode, error)
	ListTrashRoots(ctx context.Context, tx *gorm.DB, ownerID uint) ([]models.FileNode, error)
	ListTrashRootsBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]models.FileNode, error)
	RestoreByIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uint) error
	HardDeleteByIDs(ctx context.Context, tx *gorm.DB, nodeIDs []uint) error
	CountFilesByStoragePath(ctx context.Context, tx *gorm.DB, storagePath string) (int64, error)
}

type ShareRepository interface {
	Create(ctx context.Context, tx *gorm.DB, share *models.PublicShare) error
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (models.PublicShare, error)
	GetByID(ctx context.Context, tx *gorm.DB, shareID uint) (models.PublicShare, error)
	GetByIDAndOwner(ctx context.Context, tx *gorm.DB, shareID uint, ownerID uint) (models.PublicShare, error)
	CountByToken(ctx context.Context, tx *gorm.DB, token string) (int64, error)
	FindByFileAndOwner(ctx context.Context, tx *gorm.DB, fileID uint, ownerID uint) (models.PublicShare, error)
	IncrementDownloadIfValid(ctx context.Context, tx *gorm.DB, shareID uint, now time.Time) (bool, error)
	CountByOwner(ctx context.Context, tx *gorm.DB, ownerID uint) (int64, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerID uint, offset int, limit int) ([]models.PublicShare, error)
	ListByIDs(ctx context.Context, tx *gorm.DB, shareIDs []uint) ([]models.PublicShare, error)
	PluckIDsByParentShareIDs(ctx context.Context, tx *gorm.DB, parentIDs []uint) ([]uint, error)
	PluckIDsByFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []uint) ([]uint, error)
	PluckExpiredIDs(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]uint, error)
	DeleteByIDs(ctx context.Context, tx *gorm.DB, shareIDs []uint) error
}

type SharedCopyRepository interface {
	Create(ctx context.Context, tx *gorm.DB, record *models.SharedFileCopy) error
	ExistsForShareAndUser(ctx context.Context, tx *gorm.DB, shareID uint, userID uint) (bool, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uint) (int64, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint, offset int, limit int) ([]models.SharedFileCopy, error)
	DeleteByShareIDs(ctx context.Context, tx *gorm.DB, shareIDs []uint) error
	DeleteByCopiedFileIDs(ctx context.Context, tx *gorm.DB, fileIDs []uint) error
}

type OtpSecurityRepository interface {
	IsEnabledForFile(ctx context.Context, tx *gorm.DB, fileID uint, userID uint) (bool, error)
	Create(ctx context.Context, tx *gorm.DB, record *models.FileOtpSecurity) error
}

type AccessLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.ShareAccessLog) error
	CountByShareAndAction(ctx context.Context, tx *gorm.DB, shareID uint, action string) (int64, error)
}

// NotificationQueue carries serialised webhook events between the request
// path and the delivery worker.
type NotificationQueue interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks up to timeout and returns nil, nil when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

type ThumbnailCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

type Container struct {
	TxManager     TxManager
	Users         UserRepository
	Nodes         NodeRepository
	Shares        ShareRepository
	Copies        SharedCopyRepository
	OtpSecurity   OtpSecurityRepository
	AccessLogs    AccessLogRepository
	Notifications NotificationQueue
	Thumbnails    ThumbnailCache
}
