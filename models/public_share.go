package models

import "time"

const (
	ShareTypeFile   = "file"
	ShareTypeFolder = "folder"
)

type PublicShare struct {
	ID                uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID           uint       `gorm:"not null;index:idx_share_file_owner,priority:2" json:"owner_id"`
	FileID            uint       `gorm:"not null;index:idx_share_file_owner,priority:1" json:"file_id"`
	ParentShareID     *uint      `gorm:"index" json:"parent_share_id,omitempty"`
	ShareToken        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"share_token"`
	ShareType         string     `gorm:"type:varchar(10);not null" json:"share_type"`
	IsOneTime         bool       `gorm:"not null;default:false" json:"is_one_time"`
	DownloadCount     int        `gorm:"not null;default:0" json:"download_count"`
	MaxDownloads      *int       `json:"max_downloads"`
	ExpiresAt         *time.Time `gorm:"index" json:"expires_at"`
	PasswordProtected bool       `gorm:"not null;default:false" json:"password_protected"`
	PasswordHash      *string    `gorm:"type:varchar(255)" json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
