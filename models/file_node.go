package models

import (
	"time"

	"gorm.io/gorm"
)

const FolderMimeType = "inode/directory"

// FileNode is a file or folder in an owner's tree.
//
// ParentKey mirrors ParentID with 0 for the root level and DeleteMarker is 0
// while the node is live and the node's own id once trashed, so the
// idx_sibling_name unique index only binds live siblings.
type FileNode struct {
	ID                 uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID            uint           `gorm:"not null;uniqueIndex:idx_sibling_name,priority:1;index:idx_owner_parent,priority:1" json:"owner_id"`
	ParentKey          uint           `gorm:"not null;default:0;uniqueIndex:idx_sibling_name,priority:2;index:idx_owner_parent,priority:2" json:"-"`
	Name               string         `gorm:"type:varchar(255);not null;uniqueIndex:idx_sibling_name,priority:3" json:"name"`
	DeleteMarker       uint           `gorm:"not null;default:0;uniqueIndex:idx_sibling_name,priority:4" json:"-"`
	ParentID           *uint          `gorm:"index" json:"parent_id"`
	IsFolder           bool           `gorm:"not null;default:false" json:"is_folder"`
	StoragePath        string         `gorm:"type:varchar(1000);not null" json:"-"`
	SizeBytes          *int64         `json:"size_bytes"`
	MimeType           string         `gorm:"type:varchar(100)" json:"mime_type"`
	ContentHash        string         `gorm:"type:varchar(64)" json:"content_hash,omitempty"`
	IsBlockchainStored bool           `gorm:"not null;default:false" json:"is_blockchain_stored"`
	IsPermanentStored  bool           `gorm:"not null;default:false" json:"is_permanent_stored"`
	BlockchainProvider string         `gorm:"type:varchar(50)" json:"blockchain_provider,omitempty"`
	ProviderMetadata   string         `gorm:"type:text" json:"provider_metadata,omitempty"`
	TrashRootID        uint           `gorm:"not null;default:0;index" json:"-"`
	CreatedAt          time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (n *FileNode) BeforeCreate(_ *gorm.DB) error {
	n.ParentKey = ParentKeyOf(n.ParentID)
	return nil
}

// ParentKeyOf maps a nullable parent id onto the indexed parent_key column.
func ParentKeyOf(parentID *uint) uint {
	if parentID == nil {
		return 0
	}
	return *parentID
}
