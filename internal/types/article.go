package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Article is a shared link. Title and description are auto-populated
// from the metadata scraper but stay user-editable before submission.
type Article struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Link         string         `gorm:"column:link;not null" json:"link"`
	Title        string         `gorm:"column:title" json:"title"`
	Description  string         `gorm:"column:description" json:"description"`
	PostedByName string         `gorm:"column:posted_by_name" json:"posted_by_name,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Article) TableName() string { return "article" }
