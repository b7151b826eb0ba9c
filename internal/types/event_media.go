package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventMedia is one gallery item. EventID is a back-reference; the
// Event row owns the gallery.
type EventMedia struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"event_id"`
	Kind         MediaKind      `gorm:"column:kind;not null" json:"kind"`
	SourceURL    string         `gorm:"column:source_url" json:"source_url"`
	ThumbnailURL string         `gorm:"column:thumbnail_url" json:"thumbnail_url"`
	Title        string         `gorm:"column:title" json:"title,omitempty"`
	UploaderName string         `gorm:"column:uploader_name" json:"uploader_name,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (EventMedia) TableName() string { return "event_media" }
