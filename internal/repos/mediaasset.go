package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/types"
)

type MediaAssetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, asset *types.MediaAsset) (*types.MediaAsset, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MediaAsset, error)
	ListNewestFirst(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.MediaAsset, error)
	SetTranscript(ctx context.Context, tx *gorm.DB, id uuid.UUID, transcript string) error
	SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type mediaAssetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMediaAssetRepo(db *gorm.DB, baseLog *logger.Logger) MediaAssetRepo {
	return &mediaAssetRepo{db: db, log: baseLog.With("repo", "MediaAssetRepo")}
}

func (r *mediaAssetRepo) Create(ctx context.Context, tx *gorm.DB, asset *types.MediaAsset) (*types.MediaAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(asset).Error; err != nil {
		return nil, err
	}
	return asset, nil
}

func (r *mediaAssetRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MediaAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var asset types.MediaAsset
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *mediaAssetRepo) ListNewestFirst(ctx context.Context, tx *gorm.DB, limit, offset int) ([]*types.MediaAsset, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.MediaAsset
	q := transaction.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// SetTranscript writes the transcript field and nothing else. Applying
// the same text twice is a no-op, which keeps duplicate change-feed
// deliveries safe.
func (r *mediaAssetRepo) SetTranscript(ctx context.Context, tx *gorm.DB, id uuid.UUID, transcript string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.MediaAsset{}).
		Where("id = ?", id).
		Update("transcript", transcript).Error
}

func (r *mediaAssetRepo) SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.MediaAsset{}).Error
}
