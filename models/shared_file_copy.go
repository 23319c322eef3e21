package models

import "time"

type SharedFileCopy struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OriginalShareID uint      `gorm:"not null;uniqueIndex:idx_share_copier,priority:1" json:"original_share_id"`
	CopiedByUserID  uint      `gorm:"not null;uniqueIndex:idx_share_copier,priority:2;index" json:"copied_by_user_id"`
	CopiedFileID    uint      `gorm:"not null;index" json:"copied_file_id"`
	CopiedAt        time.Time `gorm:"not null" json:"copied_at"`
}
