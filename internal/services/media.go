package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tributewall/tribute-backend/internal/clients/gcp"
	"github.com/tributewall/tribute-backend/internal/clients/redis"
	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/repos"
	"github.com/tributewall/tribute-backend/internal/sse"
	"github.com/tributewall/tribute-backend/internal/types"
	"github.com/tributewall/tribute-backend/internal/utils"
)

// CreateMediaInput carries one upload from the wall form. ItemIndex and
// FileName together form the progress token the client polls while the
// transfer runs.
type CreateMediaInput struct {
	Kind        types.MediaKind
	Title       string
	Description string
	FileName    string
	ItemIndex   int
	Payload     []byte
	// FrameOffsetSec picks the thumbnail still; zero means the default.
	FrameOffsetSec float64
}

// MediaService owns the wall's upload pipeline: compress oversized
// video, derive a thumbnail, move both into object storage, record the
// row, then kick transcription off in the background.
type MediaService interface {
	Create(ctx context.Context, in CreateMediaInput) (*types.MediaAsset, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.MediaAsset, error)
	List(ctx context.Context, limit, offset int) ([]*types.MediaAsset, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TriggerTranscription(ctx context.Context, id uuid.UUID, videoURL string) error
}

type mediaService struct {
	log           *logger.Logger
	assets        repos.MediaAssetRepo
	uploader      UploaderService
	frames        FrameExtractorService
	placeholder   PlaceholderService
	transcoder    TranscodeService
	transcription TranscriptionService
	store         gcp.ObjectStore
	progress      *UploadProgressRegistry
	hub           *sse.SSEHub
	bus           redis.Bus

	compressAboveBytes int64
}

func NewMediaService(
	log *logger.Logger,
	assets repos.MediaAssetRepo,
	uploader UploaderService,
	frames FrameExtractorService,
	placeholder PlaceholderService,
	transcoder TranscodeService,
	transcription TranscriptionService,
	store gcp.ObjectStore,
	progress *UploadProgressRegistry,
	hub *sse.SSEHub,
	bus redis.Bus,
) MediaService {
	svcLog := log.With("service", "MediaService")
	return &mediaService{
		log:           svcLog,
		assets:        assets,
		uploader:      uploader,
		frames:        frames,
		placeholder:   placeholder,
		transcoder:    transcoder,
		transcription: transcription,
		store:         store,
		progress:      progress,
		hub:           hub,
		bus:           bus,
		compressAboveBytes: utils.GetEnvAsInt64(
			"MEDIA_COMPRESS_ABOVE_BYTES", 25<<20, svcLog),
	}
}

func (s *mediaService) Create(ctx context.Context, in CreateMediaInput) (*types.MediaAsset, error) {
	if err := validateCreateMediaInput(in); err != nil {
		return nil, err
	}
	// The token dies with the request, success or failure.
	defer s.progress.Clear(in.ItemIndex, in.FileName)

	switch in.Kind {
	case types.MediaKindVideo:
		return s.createVideo(ctx, in)
	case types.MediaKindImage:
		return s.createImage(ctx, in)
	default:
		return nil, fmt.Errorf("%w: unknown media kind %q", faults.ErrInvalidArgument, in.Kind)
	}
}

func (s *mediaService) createVideo(ctx context.Context, in CreateMediaInput) (*types.MediaAsset, error) {
	payload := in.Payload
	if int64(len(payload)) > s.compressAboveBytes {
		compressed, err := s.transcoder.Compress(ctx, payload, s.compressAboveBytes)
		if err != nil {
			// Compression is an optimization; the original still plays.
			s.log.Warn("Compression failed; uploading original", "file", in.FileName, "error", err)
		} else {
			payload = compressed
		}
	}

	thumb := s.deriveThumbnail(ctx, payload, in)
	durationLabel, probeJSON := s.probeVideo(ctx, payload)

	assetID := uuid.New()
	videoKey := mediaObjectKey(assetID, "source", in.FileName)
	thumbKey := mediaObjectKey(assetID, "thumb", "thumb.jpg")

	videoURL, err := s.uploader.Upload(ctx, videoKey, payload, func(pct int) {
		// The still rides along after the video; hold 100 until both
		// objects are committed.
		if pct > 98 {
			pct = 98
		}
		s.progress.Set(in.ItemIndex, in.FileName, pct)
	})
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}

	var thumbURL string
	if len(thumb) > 0 {
		thumbURL, err = s.uploader.Upload(ctx, thumbKey, thumb, nil)
		if err != nil {
			s.log.Warn("Thumbnail upload failed; continuing without", "file", in.FileName, "error", err)
			thumbURL = ""
		}
	}

	asset := &types.MediaAsset{
		ID:            assetID,
		Kind:          types.MediaKindVideo,
		SourceURL:     videoURL,
		ThumbnailURL:  thumbURL,
		Title:         in.Title,
		Description:   in.Description,
		DurationLabel: durationLabel,
		Probe:         probeJSON,
	}
	asset, err = s.assets.Create(ctx, nil, asset)
	if err != nil {
		s.cleanupObjects(videoKey, thumbKey)
		return nil, fmt.Errorf("record media row: %w", err)
	}

	s.progress.Set(in.ItemIndex, in.FileName, 100)
	s.broadcast(ctx, sse.SSEEventMediaCreated, asset)
	s.transcription.TranscribeAsync(asset.ID, videoURL)
	return asset, nil
}

func (s *mediaService) createImage(ctx context.Context, in CreateMediaInput) (*types.MediaAsset, error) {
	scaled, err := s.placeholder.DownscaleImage(in.Payload, frameMaxWidth)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", faults.ErrMediaDecode, err)
	}

	assetID := uuid.New()
	key := mediaObjectKey(assetID, "source", imageKeyName(in.FileName))
	url, err := s.uploader.Upload(ctx, key, scaled, func(pct int) {
		s.progress.Set(in.ItemIndex, in.FileName, pct)
	})
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	asset := &types.MediaAsset{
		ID:           assetID,
		Kind:         types.MediaKindImage,
		SourceURL:    url,
		ThumbnailURL: url,
		Title:        in.Title,
		Description:  in.Description,
	}
	asset, err = s.assets.Create(ctx, nil, asset)
	if err != nil {
		s.cleanupObjects(key)
		return nil, fmt.Errorf("record media row: %w", err)
	}

	s.broadcast(ctx, sse.SSEEventMediaCreated, asset)
	return asset, nil
}

// deriveThumbnail never fails the upload: a decode problem degrades to
// a rendered placeholder, and a placeholder problem degrades to none.
func (s *mediaService) deriveThumbnail(ctx context.Context, video []byte, in CreateMediaInput) []byte {
	still, err := s.frames.ExtractFrame(ctx, video, in.FrameOffsetSec)
	if err == nil {
		return still
	}
	s.log.Warn("Frame extraction failed; rendering placeholder", "file", in.FileName, "error", err)

	ph, perr := s.placeholder.RenderPlaceholder(in.Title)
	if perr != nil {
		s.log.Warn("Placeholder render failed", "file", in.FileName, "error", perr)
		return nil
	}
	return ph
}

func (s *mediaService) probeVideo(ctx context.Context, video []byte) (string, datatypes.JSON) {
	dur, err := s.frames.ProbeDuration(ctx, video)
	if err != nil {
		s.log.Debug("Duration probe failed", "error", err)
		return "", nil
	}
	raw, _ := json.Marshal(map[string]any{"duration_sec": dur})
	return formatDurationLabel(dur), datatypes.JSON(raw)
}

func (s *mediaService) GetByID(ctx context.Context, id uuid.UUID) (*types.MediaAsset, error) {
	asset, err := s.assets.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, faults.ErrNotFound
		}
		return nil, err
	}
	return asset, nil
}

func (s *mediaService) List(ctx context.Context, limit, offset int) ([]*types.MediaAsset, error) {
	return s.assets.ListNewestFirst(ctx, nil, limit, offset)
}

// Delete removes the stored objects first, then the row. Object
// deletion failures are logged and skipped; an orphaned blob is
// recoverable, a dangling row pointing at nothing is not.
func (s *mediaService) Delete(ctx context.Context, id uuid.UUID) error {
	asset, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for _, rawURL := range []string{asset.SourceURL, asset.ThumbnailURL} {
		if rawURL == "" {
			continue
		}
		key, ok := s.store.KeyFromURL(rawURL)
		if !ok {
			continue
		}
		if derr := s.store.DeleteObject(ctx, key); derr != nil {
			s.log.Warn("Failed to delete stored object", "key", key, "error", derr)
		}
	}
	if err := s.assets.SoftDeleteByID(ctx, nil, id); err != nil {
		return err
	}
	s.broadcast(ctx, sse.SSEEventMediaDeleted, map[string]any{"id": id})
	return nil
}

// TriggerTranscription re-runs the pipeline for an existing asset, used
// by the explicit retry endpoint. Validation happens here; the pipeline
// itself runs detached.
func (s *mediaService) TriggerTranscription(ctx context.Context, id uuid.UUID, videoURL string) error {
	asset, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if asset.Kind != types.MediaKindVideo {
		return fmt.Errorf("%w: transcription applies to video only", faults.ErrInvalidArgument)
	}
	if videoURL == "" {
		videoURL = asset.SourceURL
	}
	if videoURL == "" {
		return fmt.Errorf("%w: asset has no source url", faults.ErrInvalidArgument)
	}
	s.transcription.TranscribeAsync(asset.ID, videoURL)
	return nil
}

func (s *mediaService) cleanupObjects(keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.DeleteObject(ctx, key); err != nil {
			s.log.Warn("Cleanup delete failed", "key", key, "error", err)
		}
	}
}

func (s *mediaService) broadcast(ctx context.Context, event sse.SSEEvent, data any) {
	msg := sse.SSEMessage{Channel: sse.ChannelWall, Event: event, Data: data}
	if s.hub != nil {
		s.hub.Broadcast(msg)
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, msg); err != nil {
			s.log.Warn("Bus publish failed", "event", event, "error", err)
		}
	}
}

func validateCreateMediaInput(in CreateMediaInput) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title required", faults.ErrInvalidArgument)
	case strings.TrimSpace(in.FileName) == "":
		return fmt.Errorf("%w: file name required", faults.ErrInvalidArgument)
	case len(in.Payload) == 0:
		return fmt.Errorf("%w: empty payload", faults.ErrInvalidArgument)
	case in.ItemIndex < 0:
		return fmt.Errorf("%w: negative item index", faults.ErrInvalidArgument)
	}
	return nil
}

func mediaObjectKey(assetID uuid.UUID, slot, fileName string) string {
	base := strings.ToLower(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	return fmt.Sprintf("media/%s/%s/%s", assetID, slot, base)
}

func imageKeyName(fileName string) string {
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}

func formatDurationLabel(sec float64) string {
	total := int(sec + 0.5)
	m, s := total/60, total%60
	if m >= 60 {
		return fmt.Sprintf("%d:%02d:%02d", m/60, m%60, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
