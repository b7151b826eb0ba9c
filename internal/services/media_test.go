package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/repos"
	"github.com/tributewall/tribute-backend/internal/types"
)

// newServicesTestDB mirrors the production tables in sqlite; the uuid
// defaults are postgres-only so the schema is spelled out.
func newServicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	stmts := []string{
		`CREATE TABLE media_asset (
			id TEXT PRIMARY KEY, kind TEXT NOT NULL, source_url TEXT,
			thumbnail_url TEXT, title TEXT NOT NULL, description TEXT,
			duration_label TEXT, transcript TEXT, probe TEXT,
			created_at DATETIME, updated_at DATETIME, deleted_at DATETIME
		)`,
		`CREATE TABLE event (
			id TEXT PRIMARY KEY, title TEXT NOT NULL, description TEXT,
			date DATETIME NOT NULL,
			created_at DATETIME, updated_at DATETIME, deleted_at DATETIME
		)`,
		`CREATE TABLE event_media (
			id TEXT PRIMARY KEY, event_id TEXT NOT NULL, kind TEXT NOT NULL,
			source_url TEXT, thumbnail_url TEXT, title TEXT, uploader_name TEXT,
			created_at DATETIME, updated_at DATETIME, deleted_at DATETIME
		)`,
	}
	for _, s := range stmts {
		if err := db.Exec(s).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func servicesTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

// fakeFrames skips ffmpeg entirely.
type fakeFrames struct {
	frame      []byte
	extractErr error
	duration   float64
}

func (f *fakeFrames) ExtractFrame(ctx context.Context, video []byte, offsetSec float64) ([]byte, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.frame, nil
}

func (f *fakeFrames) ProbeDuration(ctx context.Context, video []byte) (float64, error) {
	if f.duration <= 0 {
		return 0, fmt.Errorf("%w: no duration", faults.ErrMediaDecode)
	}
	return f.duration, nil
}

type fakeTranscoder struct {
	calls int
	out   []byte
	err   error
}

func (f *fakeTranscoder) Compress(ctx context.Context, video []byte, targetBytes int64) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return video, nil
}

type fakeTranscription struct {
	triggered []string // "<id> <url>"
}

func (f *fakeTranscription) Transcribe(ctx context.Context, mediaID uuid.UUID, videoURL string) error {
	f.triggered = append(f.triggered, mediaID.String()+" "+videoURL)
	return nil
}

func (f *fakeTranscription) TranscribeAsync(mediaID uuid.UUID, videoURL string) {
	f.triggered = append(f.triggered, mediaID.String()+" "+videoURL)
}

type mediaFixture struct {
	svc           *mediaService
	store         *fakeStore
	frames        *fakeFrames
	transcoder    *fakeTranscoder
	transcription *fakeTranscription
	progress      *UploadProgressRegistry
	assets        repos.MediaAssetRepo
}

func newMediaFixture(t *testing.T, maxUploadBytes int64) *mediaFixture {
	t.Helper()
	log := servicesTestLogger(t)
	db := newServicesTestDB(t)
	store := newFakeStore()
	frames := &fakeFrames{frame: []byte("jpeg-bytes"), duration: 83.2}
	transcoder := &fakeTranscoder{}
	transcription := &fakeTranscription{}
	progress := NewUploadProgressRegistry()
	assets := repos.NewMediaAssetRepo(db, log)

	uploader := &uploaderService{
		log:      log,
		store:    store,
		maxBytes: maxUploadBytes,
		sleep:    func(d time.Duration) {},
		sessions: make(map[string]*chunkSession),
	}

	return &mediaFixture{
		svc: &mediaService{
			log:                log,
			assets:             assets,
			uploader:           uploader,
			frames:             frames,
			placeholder:        NewPlaceholderService(),
			transcoder:         transcoder,
			transcription:      transcription,
			store:              store,
			progress:           progress,
			compressAboveBytes: 25 << 20,
		},
		store:         store,
		frames:        frames,
		transcoder:    transcoder,
		transcription: transcription,
		progress:      progress,
		assets:        assets,
	}
}

func TestCreateVideoHappyPath(t *testing.T) {
	fx := newMediaFixture(t, 0)

	asset, err := fx.svc.Create(context.Background(), CreateMediaInput{
		Kind:      types.MediaKindVideo,
		Title:     "wedding toast",
		FileName:  "Toast Final.MP4",
		ItemIndex: 0,
		Payload:   bytes.Repeat([]byte("v"), 1<<20),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if asset.SourceURL == "" || asset.ThumbnailURL == "" {
		t.Fatalf("urls not set: %+v", asset)
	}
	if asset.DurationLabel != "1:23" {
		t.Fatalf("duration label = %q, want 1:23", asset.DurationLabel)
	}

	stored, err := fx.assets.GetByID(context.Background(), nil, asset.ID)
	if err != nil {
		t.Fatalf("row not persisted: %v", err)
	}
	if stored.Transcript != nil {
		t.Fatalf("fresh asset must have a null transcript")
	}

	if len(fx.transcription.triggered) != 1 {
		t.Fatalf("transcription triggers = %d, want 1", len(fx.transcription.triggered))
	}
	if fx.transcoder.calls != 0 {
		t.Fatalf("small payload must not be compressed")
	}
	if fx.progress.Len() != 0 {
		t.Fatalf("progress token leaked after settlement")
	}
}

func TestCreateVideoOverLimitLeavesNoTrace(t *testing.T) {
	fx := newMediaFixture(t, 150<<20)

	_, err := fx.svc.Create(context.Background(), CreateMediaInput{
		Kind:      types.MediaKindVideo,
		Title:     "too big",
		FileName:  "big.mp4",
		ItemIndex: 3,
		Payload:   bytes.Repeat([]byte("v"), 200<<20),
	})
	if !errors.Is(err, faults.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want QuotaExceeded", err)
	}

	list, _ := fx.assets.ListNewestFirst(context.Background(), nil, 0, 0)
	if len(list) != 0 {
		t.Fatalf("rejected upload left a database record")
	}
	if fx.progress.Len() != 0 {
		t.Fatalf("rejected upload left a progress token")
	}
	if len(fx.transcription.triggered) != 0 {
		t.Fatalf("rejected upload triggered transcription")
	}
}

func TestCreateVideoFrameFailureFallsBackToPlaceholder(t *testing.T) {
	fx := newMediaFixture(t, 0)
	fx.frames.extractErr = fmt.Errorf("%w: moov atom not found", faults.ErrMediaDecode)

	asset, err := fx.svc.Create(context.Background(), CreateMediaInput{
		Kind:     types.MediaKindVideo,
		Title:    "corrupt but playable",
		FileName: "odd.mp4",
		Payload:  []byte("video"),
	})
	if err != nil {
		t.Fatalf("cosmetic failure must not block the upload: %v", err)
	}
	if asset.ThumbnailURL == "" {
		t.Fatalf("placeholder thumbnail missing")
	}
}

func TestCreateVideoCompressionFailureUploadsOriginal(t *testing.T) {
	fx := newMediaFixture(t, 0)
	fx.transcoder.err = faults.ErrNoSupportedCodec

	payload := bytes.Repeat([]byte("v"), 30<<20) // over the compress threshold
	asset, err := fx.svc.Create(context.Background(), CreateMediaInput{
		Kind:     types.MediaKindVideo,
		Title:    "long video",
		FileName: "long.mp4",
		Payload:  payload,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if fx.transcoder.calls != 1 {
		t.Fatalf("compression was not attempted")
	}
	key, _ := fx.store.KeyFromURL(asset.SourceURL)
	if len(fx.store.objects[key]) != len(payload) {
		t.Fatalf("original payload was not uploaded after compression failure")
	}
}

func TestDeleteMediaRemovesObjectsAndRow(t *testing.T) {
	fx := newMediaFixture(t, 0)

	asset, err := fx.svc.Create(context.Background(), CreateMediaInput{
		Kind:     types.MediaKindVideo,
		Title:    "to be removed",
		FileName: "gone.mp4",
		Payload:  []byte("video"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(fx.store.objects) == 0 {
		t.Fatalf("nothing stored")
	}

	if err := fx.svc.Delete(context.Background(), asset.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fx.store.objects) != 0 {
		t.Fatalf("objects survived delete: %v", fx.store.objects)
	}
	if _, err := fx.svc.GetByID(context.Background(), asset.ID); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("row survived delete: %v", err)
	}
}

func TestTriggerTranscriptionValidates(t *testing.T) {
	fx := newMediaFixture(t, 0)

	image, err := fx.svc.Create(context.Background(), CreateMediaInput{
		Kind:     types.MediaKindImage,
		Title:    "a photo",
		FileName: "p.png",
		Payload:  onePixelPNG(t),
	})
	if err != nil {
		t.Fatalf("Create image: %v", err)
	}
	fx.transcription.triggered = nil

	err = fx.svc.TriggerTranscription(context.Background(), image.ID, "")
	if !errors.Is(err, faults.ErrInvalidArgument) {
		t.Fatalf("image transcription should be rejected, got %v", err)
	}
	if err := fx.svc.TriggerTranscription(context.Background(), uuid.New(), ""); !errors.Is(err, faults.ErrNotFound) {
		t.Fatalf("unknown id should be NotFound, got %v", err)
	}
}

func onePixelPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestFormatDurationLabel(t *testing.T) {
	cases := []struct {
		sec  float64
		want string
	}{
		{0, "0:00"},
		{59.4, "0:59"},
		{83.2, "1:23"},
		{600, "10:00"},
		{3725, "1:02:05"},
	}
	for _, tc := range cases {
		if got := formatDurationLabel(tc.sec); got != tc.want {
			t.Errorf("formatDurationLabel(%.1f) = %q, want %q", tc.sec, got, tc.want)
		}
	}
}

func TestMediaObjectKeySanitizes(t *testing.T) {
	id := uuid.MustParse("3c9478f4-13e2-4b92-a34c-5d1a4ab3c001")
	key := mediaObjectKey(id, "source", `..\Weird Név! (1).MP4`)
	want := "media/3c9478f4-13e2-4b92-a34c-5d1a4ab3c001/source/weird-n-v---1-.mp4"
	if key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}
