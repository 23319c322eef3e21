package models

import "time"

const (
	ShareActionView     = "view"
	ShareActionDownload = "download"
	ShareActionCopy     = "copy"
)

type ShareAccessLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ShareID    uint      `gorm:"not null;index" json:"share_id"`
	FileID     uint      `gorm:"not null;index" json:"file_id"`
	Action     string    `gorm:"type:varchar(20);not null;index" json:"action"`
	IPAddress  string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent  string    `gorm:"type:varchar(500)" json:"user_agent"`
	AccessTime time.Time `gorm:"index;autoCreateTime" json:"access_time"`
	Bytes      *int64    `json:"bytes"`
}
