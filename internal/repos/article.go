package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/types"
)

type ArticleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, article *types.Article) (*types.Article, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Article, error)
	ListNewestFirst(ctx context.Context, tx *gorm.DB) ([]*types.Article, error)
	Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type articleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArticleRepo(db *gorm.DB, baseLog *logger.Logger) ArticleRepo {
	return &articleRepo{db: db, log: baseLog.With("repo", "ArticleRepo")}
}

func (r *articleRepo) Create(ctx context.Context, tx *gorm.DB, article *types.Article) (*types.Article, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(article).Error; err != nil {
		return nil, err
	}
	return article, nil
}

func (r *articleRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Article, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var article types.Article
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&article).Error; err != nil {
		return nil, err
	}
	return &article, nil
}

func (r *articleRepo) ListNewestFirst(ctx context.Context, tx *gorm.DB) ([]*types.Article, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Article
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *articleRepo) Update(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Article{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *articleRepo) SoftDeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Article{}).Error
}
