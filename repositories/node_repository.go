package repositories

import (
	"context"
	"strings"
	"time"

	"securedocs/models"

	"gorm.io/gorm"
)

type GormNodeRepository struct {
	db *gorm.DB
}

func NewGormNodeRepository(db *gorm.DB) *GormNodeRepository {
	return &GormNodeRepository{db: db}
}

func (r *GormNodeRepository) Create(_ context.Context, tx *gorm.DB, node *models.FileNode) error {
	return useTx(r.db, tx).Create(node).Error
}

func (r *GormNodeRepository) GetByID(_ context.Context, tx *gorm.DB, nodeID uint) (models.FileNode, error) {
	var node models.FileNode
	err := useTx(r.db, tx).Where("id = ?", nodeID).First(&node).Error
	return node, err
}

func (r *GormNodeRepository) GetByIDAndOwner(_ context.Context, tx *gorm.DB, nodeID uint, ownerID uint) (models.FileNode, error) {
	var node models.FileNode
	err := useTx(r.db, tx).Where("id = ? AND owner_id = ?", nodeID, ownerID).First(&node).Error
	return node, err
}

func (r *GormNodeRepository) GetByIDAndOwnerUnscoped(_ context.Context, tx *gorm.DB, nodeID uint, ownerID uint) (models.FileNode, error) {
	var node models.FileNode
	err := useTx(r.db, tx).Unscoped().Where("id = ? AND owner_id = ?", nodeID, ownerID).First(&node).Error
	return node, err
}

func (r *GormNodeRepository) ExistsLiveName(_ context.Context, tx *gorm.DB, ownerID uint, parentID *uint, name string, excludeID uint) (bool, error) {
	query := useTx(r.db, tx).Model(&models.FileNode{}).
		Where("owner_id = ? AND parent_key = ? AND name = ?", ownerID, models.ParentKeyOf(parentID), name)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	err := query.Count(&count).Error
	return count > 0, err
}

func (r *GormNodeRepository) childrenQuery(db *gorm.DB, in ListChildrenInput) *gorm.DB {
	query := db.Model(&models.FileNode{}).Where("owner_id = ?", in.OwnerID)
	if in.ParentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *in.ParentID)
	}
	if search := strings.TrimSpace(in.Search); search != "" {
		query = query.Where("LOWER(name) LIKE ? ESCAPE '"+likeEscapeChar+"'", escapeLike(strings.ToLower(search))+"%")
	}
	return query
}

func (r *GormNodeRepository) CountChildren(_ context.Context, tx *gorm.DB, in ListChildrenInput) (int64, error) {
	var total int64
	err := r.childrenQuery(useTx(r.db, tx), in).Count(&total).Error
	return total, err
}

// ListChildren orders folders first, then by name, then newest first.
func (r *GormNodeRepository) ListChildren(_ context.Context, tx *gorm.DB, in ListChildrenInput) ([]models.FileNode, error) {
	query := r.childrenQuery(useTx(r.db, tx), in).
		Order("is_folder DESC").
		Order("name ASC").
		Order("created_at DESC")
	if in.Limit > 0 {
		query = query.Offset(in.Offset).Limit(in.Limit)
	}
	var nodes []models.FileNode
	err := query.Find(&nodes).Error
	return nodes, err
}

func (r *GormNodeRepository) ListByParentIDs(_ context.Context, tx *gorm.DB, ownerID uint, parentIDs []uint, unscoped bool) ([]models.FileNode, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var nodes []models.FileNode
	err := db.Where("owner_id = ? AND parent_id IN ?", ownerID, parentIDs).Find(&nodes).Error
	return nodes, err
}

func (r *GormNodeRepository) ListByPathPrefix(_ context.Context, tx *gorm.DB, ownerID uint, rootPath string, unscoped bool) ([]models.FileNode, error) {
	if strings.Trim(rootPath, "/") == "" {
		return nil, nil
	}
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var nodes []models.FileNode
	err := db.Where("owner_id = ? AND storage_path LIKE ? ESCAPE '"+likeEscapeChar+"'", ownerID, childPathPattern(rootPath)).
		Find(&nodes).Error
	return nodes, err
}

func (r *GormNodeRepository) ListByIDs(_ context.Context, tx *gorm.DB, nodeIDs []uint, unscoped bool) ([]models.FileNode, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	db := useTx(r.db, tx)
	if unscoped {
		db = db.Unscoped()
	}
	var nodes []models.FileNode
	err := db.Where("id IN ?", nodeIDs).Find(&nodes).Error
	return nodes, err
}

func (r *GormNodeRepository) UpdateByIDUnscoped(_ context.Context, tx *gorm.DB, nodeID uint, updates map[string]interface{}) error {
	return useTx(r.db, tx).Unscoped().Model(&models.FileNode{}).Where("id = ?", nodeID).Updates(updates).Error
}

func (r *GormNodeRepository) UpdateByID(_ context.Context, tx *gorm.DB, nodeID uint, updates map[string]interface{}) error {
	return useTx(r.db, tx).Model(&models.FileNode{}).Where("id = ?", nodeID).Updates(updates).Error
}

// SoftDeleteByIDs trashes live nodes. delete_marker takes the row id so a
// trashed name no longer collides with live siblings.
func (r *GormNodeRepository) SoftDeleteByIDs(_ context.Context, tx *gorm.DB, nodeIDs []uint, trashRootID uint, at time.Time) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Model(&models.FileNode{}).
		Where("id IN ?", nodeIDs).
		Updates(map[string]interface{}{
			"deleted_at":    at,
			"delete_marker": gorm.Expr("id"),
			"trash_root_id": trashRootID,
		}).Error
}

func (r *GormNodeRepository) ListTrashedByRoot(_ context.Context, tx *gorm.DB, ownerID uint, trashRootID uint) ([]models.FileNode, error) {
	var nodes []models.FileNode
	err := useTx(r.db, tx).Unscoped().
		Where("owner_id = ? AND trash_root_id = ? AND deleted_at IS NOT NULL", ownerID, trashRootID).
		Find(&nodes).Error
	return nodes, err
}

func (r *GormNodeRepository) ListTrashRoots(_ context.Context, tx *gorm.DB, ownerID uint) ([]models.FileNode, error) {
	var nodes []models.FileNode
	err := useTx(r.db, tx).Unscoped().
		Where("owner_id = ? AND deleted_at IS NOT NULL AND trash_root_id = id", ownerID).
		Order("deleted_at DESC").
		Find(&nodes).Error
	return nodes, err
}

func (r *GormNodeRepository) ListTrashRootsBefore(_ context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]models.FileNode, error) {
	var nodes []models.FileNode
	err := useTx(r.db, tx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ? AND trash_root_id = id", cutoff).
		Order("id ASC").
		Limit(limit).
		Find(&nodes).Error
	return nodes, err
}

func (r *GormNodeRepository) RestoreByIDs(_ context.Context, tx *gorm.DB, nodeIDs []uint) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Unscoped().Model(&models.FileNode{}).
		Where("id IN ?", nodeIDs).
		Updates(map[string]interface{}{
			"deleted_at":    nil,
			"delete_marker": 0,
			"trash_root_id": 0,
		}).Error
}

func (r *GormNodeRepository) HardDeleteByIDs(_ context.Context, tx *gorm.DB, nodeIDs []uint) error {
	if len(nodeIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Unscoped().Where("id IN ?", nodeIDs).Delete(&models.FileNode{}).Error
}

func (r *GormNodeRepository) CountFilesByStoragePath(_ context.Context, tx *gorm.DB, storagePath string) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Unscoped().Model(&models.FileNode{}).
		Where("storage_path = ? AND is_folder = ?", storagePath, false).
		Count(&count).Error
	return count, err
}
