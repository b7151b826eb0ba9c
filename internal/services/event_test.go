package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/repos"
	"github.com/tributewall/tribute-backend/internal/types"
)

// flakyStore fails object deletion for chosen keys.
type flakyStore struct {
	*fakeStore
	failKeys map[string]bool
}

func (s *flakyStore) DeleteObject(ctx context.Context, key string) error {
	if s.failKeys[key] {
		return errors.New("storage 500")
	}
	return s.fakeStore.DeleteObject(ctx, key)
}

type eventFixture struct {
	svc     *eventService
	store   *flakyStore
	events  repos.EventRepo
	gallery repos.EventMediaRepo
	db      *gorm.DB
}

func newEventFixture(t *testing.T) *eventFixture {
	t.Helper()
	log := servicesTestLogger(t)
	db := newServicesTestDB(t)
	store := &flakyStore{fakeStore: newFakeStore(), failKeys: map[string]bool{}}
	events := repos.NewEventRepo(db, log)
	gallery := repos.NewEventMediaRepo(db, log)

	uploader := &uploaderService{
		log:      log,
		store:    store,
		sleep:    func(time.Duration) {},
		sessions: make(map[string]*chunkSession),
	}

	return &eventFixture{
		svc: &eventService{
			log:         log,
			events:      events,
			gallery:     gallery,
			uploader:    uploader,
			frames:      &fakeFrames{frame: []byte("still"), duration: 10},
			placeholder: NewPlaceholderService(),
			store:       store,
			progress:    NewUploadProgressRegistry(),
			db:          db,
		},
		store:   store,
		events:  events,
		gallery: gallery,
		db:      db,
	}
}

func TestEventCreateValidates(t *testing.T) {
	fx := newEventFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Create(ctx, CreateEventInput{Title: "  "}); !errors.Is(err, faults.ErrInvalidArgument) {
		t.Fatalf("blank title: err = %v, want InvalidArgument", err)
	}
	if _, err := fx.svc.Create(ctx, CreateEventInput{Title: "picnic"}); !errors.Is(err, faults.ErrInvalidArgument) {
		t.Fatalf("zero date: err = %v, want InvalidArgument", err)
	}

	event, err := fx.svc.Create(ctx, CreateEventInput{Title: "picnic", Date: time.Now()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if event.ID == uuid.Nil {
		t.Fatalf("no id assigned")
	}
}

func TestAddGalleryItemStoresAndRecords(t *testing.T) {
	fx := newEventFixture(t)
	ctx := context.Background()

	event, err := fx.svc.Create(ctx, CreateEventInput{Title: "trip", Date: time.Now()})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	item, err := fx.svc.AddGalleryItem(ctx, event.ID, AddGalleryItemInput{
		Kind:         types.MediaKindImage,
		Title:        "lake",
		UploaderName: "sam",
		FileName:     "Lake View.JPG",
		Payload:      []byte("img"),
	})
	if err != nil {
		t.Fatalf("AddGalleryItem: %v", err)
	}
	if item.SourceURL == "" || item.UploaderName != "sam" {
		t.Fatalf("unexpected item: %+v", item)
	}

	loaded, err := fx.svc.GetByID(ctx, event.ID)
	if err != nil || len(loaded.Media) != 1 {
		t.Fatalf("gallery not attached: %+v, %v", loaded, err)
	}

	if _, err := fx.svc.AddGalleryItem(ctx, uuid.New(), AddGalleryItemInput{
		Kind: types.MediaKindImage, FileName: "x.jpg", Payload: []byte("y"),
	}); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("unknown event: err = %v, want NotFound", err)
	}
}

func TestEventDeleteCascadesCleanly(t *testing.T) {
	fx := newEventFixture(t)
	ctx := context.Background()

	event, _ := fx.svc.Create(ctx, CreateEventInput{Title: "ceremony", Date: time.Now()})
	if _, err := fx.svc.AddGalleryItem(ctx, event.ID, AddGalleryItemInput{
		Kind: types.MediaKindImage, FileName: "a.jpg", Payload: []byte("a"),
	}); err != nil {
		t.Fatalf("AddGalleryItem: %v", err)
	}

	if err := fx.svc.Delete(ctx, event.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fx.store.objects) != 0 {
		t.Fatalf("objects survived cascade: %v", fx.store.objects)
	}
	if _, err := fx.svc.GetByID(ctx, event.ID); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("event row survived delete")
	}
}

func TestEventDeleteReportsPartialCascade(t *testing.T) {
	fx := newEventFixture(t)
	ctx := context.Background()

	event, _ := fx.svc.Create(ctx, CreateEventInput{Title: "ceremony", Date: time.Now()})
	item, err := fx.svc.AddGalleryItem(ctx, event.ID, AddGalleryItemInput{
		Kind: types.MediaKindImage, FileName: "stuck.jpg", Payload: []byte("s"),
	})
	if err != nil {
		t.Fatalf("AddGalleryItem: %v", err)
	}
	stuckKey, _ := fx.store.KeyFromURL(item.SourceURL)
	fx.store.failKeys[stuckKey] = true

	err = fx.svc.Delete(ctx, event.ID)
	var partial *faults.PartialCascadeFailure
	if !errors.As(err, &partial) {
		t.Fatalf("err = %v, want PartialCascadeFailure", err)
	}
	if len(partial.FailedKeys) != 1 || partial.FailedKeys[0] != stuckKey {
		t.Fatalf("failed keys = %v, want [%s]", partial.FailedKeys, stuckKey)
	}

	// The rows are gone regardless; only the orphaned object is
	// reported for the operator to reap.
	if _, err := fx.svc.GetByID(ctx, event.ID); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("event row survived partial cascade")
	}
	remaining, _ := fx.gallery.GetByEventID(ctx, nil, event.ID)
	if len(remaining) != 0 {
		t.Fatalf("gallery rows survived partial cascade")
	}
}

func TestRemoveGalleryItems(t *testing.T) {
	fx := newEventFixture(t)
	ctx := context.Background()

	event, _ := fx.svc.Create(ctx, CreateEventInput{Title: "party", Date: time.Now()})
	keep, _ := fx.svc.AddGalleryItem(ctx, event.ID, AddGalleryItemInput{
		Kind: types.MediaKindImage, FileName: "keep.jpg", Payload: []byte("k"),
	})
	drop, _ := fx.svc.AddGalleryItem(ctx, event.ID, AddGalleryItemInput{
		Kind: types.MediaKindImage, FileName: "drop.jpg", Payload: []byte("d"),
	})

	if err := fx.svc.RemoveGalleryItems(ctx, event.ID, []uuid.UUID{drop.ID}); err != nil {
		t.Fatalf("RemoveGalleryItems: %v", err)
	}
	remaining, _ := fx.gallery.GetByEventID(ctx, nil, event.ID)
	if len(remaining) != 1 || remaining[0].ID != keep.ID {
		t.Fatalf("wrong survivors: %+v", remaining)
	}
	dropKey, _ := fx.store.KeyFromURL(drop.SourceURL)
	if _, ok := fx.store.objects[dropKey]; ok {
		t.Fatalf("removed item's object still stored")
	}
	keepKey, _ := fx.store.KeyFromURL(keep.SourceURL)
	if _, ok := fx.store.objects[keepKey]; !ok {
		t.Fatalf("kept item's object was deleted")
	}
}
