package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tributewall/tribute-backend/internal/clients/linkmeta"
	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/repos"
	"github.com/tributewall/tribute-backend/internal/types"
)

type CreateArticleInput struct {
	Link         string
	Title        string
	Description  string
	PostedByName string
}

type UpdateArticleInput struct {
	Title        *string
	Description  *string
	PostedByName *string
}

// ArticleService manages shared links. Missing title/description are
// filled in from the metadata scraper at create time; scraper failures
// degrade to a bare link rather than blocking the post.
type ArticleService interface {
	Create(ctx context.Context, in CreateArticleInput) (*types.Article, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Article, error)
	List(ctx context.Context) ([]*types.Article, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateArticleInput) (*types.Article, error)
	Delete(ctx context.Context, id uuid.UUID) error
	PreviewMetadata(ctx context.Context, link string) (*linkmeta.Metadata, error)
}

type articleService struct {
	log      *logger.Logger
	articles repos.ArticleRepo
	meta     linkmeta.Client
}

func NewArticleService(log *logger.Logger, articles repos.ArticleRepo, meta linkmeta.Client) ArticleService {
	return &articleService{
		log:      log.With("service", "ArticleService"),
		articles: articles,
		meta:     meta,
	}
}

func (s *articleService) Create(ctx context.Context, in CreateArticleInput) (*types.Article, error) {
	link, err := normalizeLink(in.Link)
	if err != nil {
		return nil, err
	}

	title, description := in.Title, in.Description
	if title == "" || description == "" {
		if md, merr := s.meta.Lookup(ctx, link); merr != nil {
			s.log.Debug("Metadata lookup failed", "link", link, "error", merr)
		} else {
			if title == "" {
				title = md.Title
			}
			if description == "" {
				description = md.Description
			}
		}
	}

	return s.articles.Create(ctx, nil, &types.Article{
		ID:           uuid.New(),
		Link:         link,
		Title:        title,
		Description:  description,
		PostedByName: in.PostedByName,
	})
}

func (s *articleService) GetByID(ctx context.Context, id uuid.UUID) (*types.Article, error) {
	article, err := s.articles.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, err
	}
	return article, nil
}

func (s *articleService) List(ctx context.Context) ([]*types.Article, error) {
	return s.articles.ListNewestFirst(ctx, nil)
}

func (s *articleService) Update(ctx context.Context, id uuid.UUID, in UpdateArticleInput) (*types.Article, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.PostedByName != nil {
		updates["posted_by_name"] = *in.PostedByName
	}
	if len(updates) == 0 {
		return s.GetByID(ctx, id)
	}
	if err := s.articles.Update(ctx, nil, id, updates); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *articleService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.articles.SoftDeleteByID(ctx, nil, id)
}

// PreviewMetadata backs the live preview in the share form.
func (s *articleService) PreviewMetadata(ctx context.Context, link string) (*linkmeta.Metadata, error) {
	link, err := normalizeLink(link)
	if err != nil {
		return nil, err
	}
	return s.meta.Lookup(ctx, link)
}

func normalizeLink(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: link required", faults.ErrInvalidArgument)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: link must be an absolute http(s) url", faults.ErrInvalidArgument)
	}
	return u.String(), nil
}
