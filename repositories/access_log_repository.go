package repositories

import (
	"context"

	"securedocs/models"

	"gorm.io/gorm"
)

type GormAccessLogRepository struct {
	db *gorm.DB
}

func NewGormAccessLogRepository(db *gorm.DB) *GormAccessLogRepository {
	return &GormAccessLogRepository{db: db}
}

func (r *GormAccessLogRepository) Create(_ context.Context, tx *gorm.DB, entry *models.ShareAccessLog) error {
	return useTx(r.db, tx).Create(entry).Error
}

func (r *GormAccessLogRepository) CountByShareAndAction(_ context.Context, tx *gorm.DB, shareID uint, action string) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.ShareAccessLog{}).
		Where("share_id = ? AND action = ?", shareID, action).
		Count(&count).Error
	return count, err
}
