package models

import "time"

// FileOtpSecurity marks a file as guarded by one-time-password access.
type FileOtpSecurity struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID    uint      `gorm:"not null;index:idx_otp_file_user,priority:1" json:"file_id"`
	UserID    uint      `gorm:"not null;index:idx_otp_file_user,priority:2" json:"user_id"`
	IsEnabled bool      `gorm:"not null" json:"is_enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
