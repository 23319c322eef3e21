package repositories

import (
	"context"

	"securedocs/models"

	"gorm.io/gorm"
)

type GormOtpSecurityRepository struct {
	db *gorm.DB
}

func NewGormOtpSecurityRepository(db *gorm.DB) *GormOtpSecurityRepository {
	return &GormOtpSecurityRepository{db: db}
}

func (r *GormOtpSecurityRepository) IsEnabledForFile(_ context.Context, tx *gorm.DB, fileID uint, userID uint) (bool, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.FileOtpSecurity{}).
		Where("file_id = ? AND user_id = ? AND is_enabled = ?", fileID, userID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *GormOtpSecurityRepository) Create(_ context.Context, tx *gorm.DB, record *models.FileOtpSecurity) error {
	return useTx(r.db, tx).Create(record).Error
}
