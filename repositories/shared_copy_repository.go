package repositories

import (
	"context"

	"securedocs/models"

	"gorm.io/gorm"
)

type GormSharedCopyRepository struct {
	db *gorm.DB
}

func NewGormSharedCopyRepository(db *gorm.DB) *GormSharedCopyRepository {
	return &GormSharedCopyRepository{db: db}
}

func (r *GormSharedCopyRepository) Create(_ context.Context, tx *gorm.DB, record *models.SharedFileCopy) error {
	return useTx(r.db, tx).Create(record).Error
}

func (r *GormSharedCopyRepository) ExistsForShareAndUser(_ context.Context, tx *gorm.DB, shareID uint, userID uint) (bool, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.SharedFileCopy{}).
		Where("original_share_id = ? AND copied_by_user_id = ?", shareID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *GormSharedCopyRepository) CountByUser(_ context.Context, tx *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.SharedFileCopy{}).Where("copied_by_user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *GormSharedCopyRepository) ListByUser(_ context.Context, tx *gorm.DB, userID uint, offset int, limit int) ([]models.SharedFileCopy, error) {
	query := useTx(r.db, tx).Where("copied_by_user_id = ?", userID).Order("copied_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	var records []models.SharedFileCopy
	err := query.Find(&records).Error
	return records, err
}

func (r *GormSharedCopyRepository) DeleteByShareIDs(_ context.Context, tx *gorm.DB, shareIDs []uint) error {
	if len(shareIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("original_share_id IN ?", shareIDs).Delete(&models.SharedFileCopy{}).Error
}

func (r *GormSharedCopyRepository) DeleteByCopiedFileIDs(_ context.Context, tx *gorm.DB, fileIDs []uint) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("copied_file_id IN ?", fileIDs).Delete(&models.SharedFileCopy{}).Error
}
