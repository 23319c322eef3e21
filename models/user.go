package models

import (
	"time"

	"gorm.io/gorm"
)

// User is the slice of the account record this service reads. Accounts are
// provisioned by the auth service; IsPremium gates password protected shares.
type User struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Username  string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Nickname  string         `gorm:"type:varchar(100)" json:"nickname"`
	IsPremium bool           `gorm:"not null;default:false" json:"is_premium"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
