package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tributewall/tribute-backend/internal/clients/gcp"
	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/repos"
	"github.com/tributewall/tribute-backend/internal/types"
)

// CreateEventInput is the event form body. Gallery items are attached
// separately through AddGalleryItem.
type CreateEventInput struct {
	Title       string
	Description string
	Date        time.Time
}

type UpdateEventInput struct {
	Title       *string
	Description *string
	Date        *time.Time
}

// AddGalleryItemInput carries one gallery upload for an event.
type AddGalleryItemInput struct {
	Kind         types.MediaKind
	Title        string
	UploaderName string
	FileName     string
	ItemIndex    int
	Payload      []byte
}

// EventService manages occasions and their galleries. Event deletion
// cascades over every gallery object in storage; when some objects
// refuse to go, the event row is still removed and the survivors are
// reported back so an operator can reap them.
type EventService interface {
	Create(ctx context.Context, in CreateEventInput) (*types.Event, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Event, error)
	List(ctx context.Context) ([]*types.Event, error)
	Update(ctx context.Context, id uuid.UUID, in UpdateEventInput) (*types.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AddGalleryItem(ctx context.Context, eventID uuid.UUID, in AddGalleryItemInput) (*types.EventMedia, error)
	RemoveGalleryItems(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) error
}

type eventService struct {
	log         *logger.Logger
	events      repos.EventRepo
	gallery     repos.EventMediaRepo
	uploader    UploaderService
	frames      FrameExtractorService
	placeholder PlaceholderService
	store       gcp.ObjectStore
	progress    *UploadProgressRegistry
	db          *gorm.DB
}

func NewEventService(
	log *logger.Logger,
	events repos.EventRepo,
	gallery repos.EventMediaRepo,
	uploader UploaderService,
	frames FrameExtractorService,
	placeholder PlaceholderService,
	store gcp.ObjectStore,
	progress *UploadProgressRegistry,
	db *gorm.DB,
) EventService {
	return &eventService{
		log:         log.With("service", "EventService"),
		events:      events,
		gallery:     gallery,
		uploader:    uploader,
		frames:      frames,
		placeholder: placeholder,
		store:       store,
		progress:    progress,
		db:          db,
	}
}

func (s *eventService) Create(ctx context.Context, in CreateEventInput) (*types.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title required", faults.ErrInvalidArgument)
	}
	if in.Date.IsZero() {
		return nil, fmt.Errorf("%w: date required", faults.ErrInvalidArgument)
	}
	return s.events.Create(ctx, nil, &types.Event{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
	})
}

func (s *eventService) GetByID(ctx context.Context, id uuid.UUID) (*types.Event, error) {
	event, err := s.events.GetByIDWithMedia(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

func (s *eventService) List(ctx context.Context) ([]*types.Event, error) {
	return s.events.ListByDate(ctx, nil)
}

func (s *eventService) Update(ctx context.Context, id uuid.UUID, in UpdateEventInput) (*types.Event, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("%w: title cannot be blank", faults.ErrInvalidArgument)
		}
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Date != nil {
		updates["date"] = *in.Date
	}
	if len(updates) == 0 {
		return s.GetByID(ctx, id)
	}
	if err := s.events.Update(ctx, nil, id, updates); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes the event, its gallery rows, and the stored objects.
// Rows go first, inside one transaction; object deletes then fan out
// concurrently. A failed object delete does not resurrect the rows. It
// is collected into a PartialCascadeFailure instead.
func (s *eventService) Delete(ctx context.Context, id uuid.UUID) error {
	items, err := s.gallery.GetByEventID(ctx, nil, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.gallery.SoftDeleteByEventID(ctx, tx, id); err != nil {
			return err
		}
		return s.events.SoftDeleteByID(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	keys := s.galleryObjectKeys(items)
	if len(keys) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		failed []string
		causes []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			if derr := s.store.DeleteObject(gctx, key); derr != nil {
				mu.Lock()
				failed = append(failed, key)
				causes = append(causes, derr)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failed) > 0 {
		return &faults.PartialCascadeFailure{
			EventID:    id.String(),
			FailedKeys: failed,
			Causes:     causes,
		}
	}
	return nil
}

func (s *eventService) AddGalleryItem(ctx context.Context, eventID uuid.UUID, in AddGalleryItemInput) (*types.EventMedia, error) {
	if _, err := s.events.GetByID(ctx, nil, eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, err
	}
	if len(in.Payload) == 0 || strings.TrimSpace(in.FileName) == "" {
		return nil, fmt.Errorf("%w: file name and payload required", faults.ErrInvalidArgument)
	}
	defer s.progress.Clear(in.ItemIndex, in.FileName)

	itemID := uuid.New()
	key := fmt.Sprintf("events/%s/%s/%s", eventID, itemID, sanitizeKeySegment(in.FileName))
	url, err := s.uploader.Upload(ctx, key, in.Payload, func(pct int) {
		s.progress.Set(in.ItemIndex, in.FileName, pct)
	})
	if err != nil {
		return nil, fmt.Errorf("upload gallery item: %w", err)
	}

	thumbURL := url
	if in.Kind == types.MediaKindVideo {
		thumbURL = s.galleryThumb(ctx, eventID, itemID, in)
	}

	created, err := s.gallery.Create(ctx, nil, []*types.EventMedia{{
		ID:           itemID,
		EventID:      eventID,
		Kind:         in.Kind,
		SourceURL:    url,
		ThumbnailURL: thumbURL,
		Title:        in.Title,
		UploaderName: in.UploaderName,
	}})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *eventService) RemoveGalleryItems(ctx context.Context, eventID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	items, err := s.gallery.GetByEventID(ctx, nil, eventID)
	if err != nil {
		return err
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var removed []*types.EventMedia
	for _, item := range items {
		if wanted[item.ID] {
			removed = append(removed, item)
		}
	}
	if err := s.gallery.SoftDeleteByIDs(ctx, nil, ids); err != nil {
		return err
	}
	for _, key := range s.galleryObjectKeys(removed) {
		if derr := s.store.DeleteObject(ctx, key); derr != nil {
			s.log.Warn("Failed to delete gallery object", "key", key, "error", derr)
		}
	}
	return nil
}

// galleryThumb is cosmetic; failure leaves the source URL doubling as
// the thumbnail.
func (s *eventService) galleryThumb(ctx context.Context, eventID, itemID uuid.UUID, in AddGalleryItemInput) string {
	still, err := s.frames.ExtractFrame(ctx, in.Payload, 0)
	if err != nil {
		s.log.Debug("Gallery frame extraction failed", "file", in.FileName, "error", err)
		if still, err = s.placeholder.RenderPlaceholder(in.Title); err != nil {
			return ""
		}
	}
	key := fmt.Sprintf("events/%s/%s/thumb.jpg", eventID, itemID)
	url, err := s.uploader.Upload(ctx, key, still, nil)
	if err != nil {
		s.log.Warn("Gallery thumb upload failed", "file", in.FileName, "error", err)
		return ""
	}
	return url
}

func (s *eventService) galleryObjectKeys(items []*types.EventMedia) []string {
	var keys []string
	for _, item := range items {
		for _, rawURL := range []string{item.SourceURL, item.ThumbnailURL} {
			if rawURL == "" {
				continue
			}
			if key, ok := s.store.KeyFromURL(rawURL); ok {
				keys = append(keys, key)
			}
		}
	}
	return dedupeStrings(keys)
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func sanitizeKeySegment(name string) string {
	name = strings.ToLower(name)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
