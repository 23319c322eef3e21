package repositories

import (
	"context"
	"time"

	"securedocs/models"

	"gorm.io/gorm"
)

type GormShareRepository struct {
	db *gorm.DB
}

func NewGormShareRepository(db *gorm.DB) *GormShareRepository {
	return &GormShareRepository{db: db}
}

func (r *GormShareRepository) Create(_ context.Context, tx *gorm.DB, share *models.PublicShare) error {
	return useTx(r.db, tx).Create(share).Error
}

func (r *GormShareRepository) GetByToken(_ context.Context, tx *gorm.DB, token string) (models.PublicShare, error) {
	var share models.PublicShare
	err := useTx(r.db, tx).Where("share_token = ?", token).First(&share).Error
	return share, err
}

func (r *GormShareRepository) GetByID(_ context.Context, tx *gorm.DB, shareID uint) (models.PublicShare, error) {
	var share models.PublicShare
	err := useTx(r.db, tx).Where("id = ?", shareID).First(&share).Error
	return share, err
}

func (r *GormShareRepository) GetByIDAndOwner(_ context.Context, tx *gorm.DB, shareID uint, ownerID uint) (models.PublicShare, error) {
	var share models.PublicShare
	err := useTx(r.db, tx).Where("id = ? AND owner_id = ?", shareID, ownerID).First(&share).Error
	return share, err
}

func (r *GormShareRepository) CountByToken(_ context.Context, tx *gorm.DB, token string) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.PublicShare{}).Where("share_token = ?", token).Count(&count).Error
	return count, err
}

// FindByFileAndOwner returns the oldest share of fileID owned by ownerID.
func (r *GormShareRepository) FindByFileAndOwner(_ context.Context, tx *gorm.DB, fileID uint, ownerID uint) (models.PublicShare, error) {
	var share models.PublicShare
	err := useTx(r.db, tx).Where("file_id = ? AND owner_id = ?", fileID, ownerID).Order("id ASC").First(&share).Error
	return share, err
}

// IncrementDownloadIfValid consumes one download in a single conditional
// UPDATE. It reports false when the share was already invalid at now.
func (r *GormShareRepository) IncrementDownloadIfValid(_ context.Context, tx *gorm.DB, shareID uint, now time.Time) (bool, error) {
	result := useTx(r.db, tx).Model(&models.PublicShare{}).
		Where("id = ?", shareID).
		Where("(expires_at IS NULL OR expires_at >= ?)", now).
		Where("(is_one_time = ? OR download_count = 0)", false).
		Where("(max_downloads IS NULL OR download_count < max_downloads)").
		UpdateColumn("download_count", gorm.Expr("download_count + ?", 1))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *GormShareRepository) CountByOwner(_ context.Context, tx *gorm.DB, ownerID uint) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.PublicShare{}).Where("owner_id = ?", ownerID).Count(&count).Error
	return count, err
}

func (r *GormShareRepository) ListByOwner(_ context.Context, tx *gorm.DB, ownerID uint, offset int, limit int) ([]models.PublicShare, error) {
	query := useTx(r.db, tx).Where("owner_id = ?", ownerID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	var shares []models.PublicShare
	err := query.Find(&shares).Error
	return shares, err
}

func (r *GormShareRepository) ListByIDs(_ context.Context, tx *gorm.DB, shareIDs []uint) ([]models.PublicShare, error) {
	if len(shareIDs) == 0 {
		return nil, nil
	}
	var shares []models.PublicShare
	err := useTx(r.db, tx).Where("id IN ?", shareIDs).Find(&shares).Error
	return shares, err
}

func (r *GormShareRepository) PluckIDsByParentShareIDs(_ context.Context, tx *gorm.DB, parentIDs []uint) ([]uint, error) {
	if len(parentIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := useTx(r.db, tx).Model(&models.PublicShare{}).Where("parent_share_id IN ?", parentIDs).Pluck("id", &ids).Error
	return ids, err
}

func (r *GormShareRepository) PluckIDsByFileIDs(_ context.Context, tx *gorm.DB, fileIDs []uint) ([]uint, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	err := useTx(r.db, tx).Model(&models.PublicShare{}).Where("file_id IN ?", fileIDs).Pluck("id", &ids).Error
	return ids, err
}

func (r *GormShareRepository) PluckExpiredIDs(_ context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]uint, error) {
	var ids []uint
	err := useTx(r.db, tx).Model(&models.PublicShare{}).
		Where("expires_at IS NOT NULL AND expires_at < ?", cutoff).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *GormShareRepository) DeleteByIDs(_ context.Context, tx *gorm.DB, shareIDs []uint) error {
	if len(shareIDs) == 0 {
		return nil
	}
	return useTx(r.db, tx).Where("id IN ?", shareIDs).Delete(&models.PublicShare{}).Error
}
