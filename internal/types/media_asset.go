package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MediaKind string

const (
	MediaKindVideo MediaKind = "video"
	MediaKindImage MediaKind = "image"
)

// MediaAsset is one entry on the tribute wall. The ID is assigned by
// the uploading client (UUID v4) and never changes. Transcript is
// written at most once, server-side, after the transcription job
// finishes; SourceURL/ThumbnailURL are set once the upload commits.
type MediaAsset struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Kind          MediaKind      `gorm:"column:kind;not null" json:"kind"`
	SourceURL     string         `gorm:"column:source_url" json:"source_url"`
	ThumbnailURL  string         `gorm:"column:thumbnail_url" json:"thumbnail_url"`
	Title         string         `gorm:"column:title;not null" json:"title"`
	Description   string         `gorm:"column:description" json:"description"`
	DurationLabel string         `gorm:"column:duration_label" json:"duration_label,omitempty"`
	Transcript    *string        `gorm:"column:transcript" json:"transcript,omitempty"`
	Probe         datatypes.JSON `gorm:"column:probe;type:jsonb" json:"probe,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (MediaAsset) TableName() string { return "media_asset" }
