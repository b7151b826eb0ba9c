package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a named occasion (party, trip, ceremony) with an attached
// photo/video gallery. Deleting an event cascades over its gallery,
// storage objects included.
type Event struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title       string         `gorm:"column:title;not null" json:"title"`
	Description string         `gorm:"column:description" json:"description"`
	Date        time.Time      `gorm:"column:date;not null" json:"date"`
	Media       []*EventMedia  `gorm:"foreignKey:EventID;references:ID" json:"media,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Event) TableName() string { return "event" }
