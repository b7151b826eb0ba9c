package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/types"
)

type EventMediaRepo interface {
	Create(ctx context.Context, tx *gorm.DB, media []*types.EventMedia) ([]*types.EventMedia, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.EventMedia, error)
	GetByEventID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) ([]*types.EventMedia, error)
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
	SoftDeleteByEventID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) error
}

type eventMediaRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventMediaRepo(db *gorm.DB, baseLog *logger.Logger) EventMediaRepo {
	return &eventMediaRepo{db: db, log: baseLog.With("repo", "EventMediaRepo")}
}

func (r *eventMediaRepo) Create(ctx context.Context, tx *gorm.DB, media []*types.EventMedia) ([]*types.EventMedia, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(media) == 0 {
		return []*types.EventMedia{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (r *eventMediaRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.EventMedia, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var media types.EventMedia
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&media).Error; err != nil {
		return nil, err
	}
	return &media, nil
}

func (r *eventMediaRepo) GetByEventID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) ([]*types.EventMedia, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.EventMedia
	if err := transaction.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *eventMediaRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&types.EventMedia{}).Error
}

func (r *eventMediaRepo) SoftDeleteByEventID(ctx context.Context, tx *gorm.DB, eventID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&types.EventMedia{}).Error
}
