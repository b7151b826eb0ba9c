package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/clients/gcp"
	"github.com/tributewall/tribute-backend/internal/clients/redis"
	"github.com/tributewall/tribute-backend/internal/clients/transcribe"
	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
	"github.com/tributewall/tribute-backend/internal/pkg/httpx"
	"github.com/tributewall/tribute-backend/internal/repos"
	"github.com/tributewall/tribute-backend/internal/sse"
)

const (
	transcribePollInterval = 5 * time.Second
	transcribeMaxPolls     = 60
	signedURLTTL           = 2 * time.Hour
)

// TranscriptionService runs the background pipeline for a freshly
// uploaded video: verify the asset is fetchable, hand it to the
// speech-to-text provider, poll until the job settles, persist the
// transcript, and push the change over the wall channel. The whole
// pipeline is best-effort: any failure is logged and the video stays
// up without a transcript. Nothing here ever surfaces to the uploader.
type TranscriptionService interface {
	Transcribe(ctx context.Context, mediaID uuid.UUID, videoURL string) error
	TranscribeAsync(mediaID uuid.UUID, videoURL string)
}

type transcriptionService struct {
	log      *logger.Logger
	provider transcribe.Client
	store    gcp.ObjectStore
	assets   repos.MediaAssetRepo
	hub      *sse.SSEHub
	bus      redis.Bus // nil when running single-replica

	httpClient   *http.Client
	pollInterval time.Duration
	maxPolls     int
}

func NewTranscriptionService(
	log *logger.Logger,
	provider transcribe.Client,
	store gcp.ObjectStore,
	assets repos.MediaAssetRepo,
	hub *sse.SSEHub,
	bus redis.Bus,
) TranscriptionService {
	return &transcriptionService{
		log:          log.With("service", "TranscriptionService"),
		provider:     provider,
		store:        store,
		assets:       assets,
		hub:          hub,
		bus:          bus,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		pollInterval: transcribePollInterval,
		maxPolls:     transcribeMaxPolls,
	}
}

// TranscribeAsync detaches the pipeline from the request that triggered
// it. The caller has already responded 202 by the time this runs.
func (s *transcriptionService) TranscribeAsync(mediaID uuid.UUID, videoURL string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()
		if err := s.Transcribe(ctx, mediaID, videoURL); err != nil {
			s.log.Warn("Transcription pipeline failed",
				"media_id", mediaID,
				"error", err,
			)
		}
	}()
}

func (s *transcriptionService) Transcribe(ctx context.Context, mediaID uuid.UUID, videoURL string) error {
	if mediaID == uuid.Nil || videoURL == "" {
		return fmt.Errorf("%w: media id and video url required", faults.ErrInvalidArgument)
	}

	audioURL, err := s.resolveFetchableURL(ctx, videoURL)
	if err != nil {
		return err
	}

	jobID, err := s.provider.Submit(ctx, audioURL, "en")
	if err != nil {
		return fmt.Errorf("submit transcription job: %w", err)
	}
	s.log.Info("Transcription job submitted", "media_id", mediaID, "job_id", jobID)

	text, err := s.pollUntilSettled(ctx, jobID)
	if err != nil {
		return err
	}

	// Persisting and re-pushing the same text twice is harmless, so a
	// duplicate pipeline run for the same asset converges.
	if err := s.assets.SetTranscript(ctx, nil, mediaID, text); err != nil {
		return fmt.Errorf("persist transcript for %s: %w", mediaID, err)
	}

	s.notifyTranscriptReady(ctx, mediaID, text)
	s.log.Info("Transcript stored", "media_id", mediaID, "job_id", jobID, "chars", len(text))
	return nil
}

// resolveFetchableURL verifies the provider will be able to pull the
// media. HEAD first, then a GET probe for hosts that reject HEAD, then
// a signed URL when the object is private. A URL this backend did not
// issue cannot be signed and is reported unreachable.
func (s *transcriptionService) resolveFetchableURL(ctx context.Context, videoURL string) (string, error) {
	if s.probe(ctx, http.MethodHead, videoURL) {
		return videoURL, nil
	}
	if s.probe(ctx, http.MethodGet, videoURL) {
		return videoURL, nil
	}

	key, ok := s.store.KeyFromURL(videoURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", faults.ErrAssetUnreachable, videoURL)
	}
	signed, err := s.store.SignedURL(key, signedURLTTL)
	if err != nil {
		return "", fmt.Errorf("%w: sign fallback: %v", faults.ErrAssetUnreachable, err)
	}
	if !s.probe(ctx, http.MethodHead, signed) && !s.probe(ctx, http.MethodGet, signed) {
		return "", fmt.Errorf("%w: signed url also unreachable", faults.ErrAssetUnreachable)
	}
	s.log.Debug("Falling back to signed url for transcription fetch")
	return signed, nil
}

func (s *transcriptionService) probe(ctx context.Context, method, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return false
	}
	if method == http.MethodGet {
		// Just enough to prove the object serves bytes.
		req.Header.Set("Range", "bytes=0-0")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusPartialContent
}

func (s *transcriptionService) pollUntilSettled(ctx context.Context, jobID string) (string, error) {
	for attempt := 1; attempt <= s.maxPolls; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		job, err := s.provider.Poll(ctx, jobID)
		switch {
		case err == nil:
			switch job.Status {
			case transcribe.JobStatusCompleted:
				return job.Text, nil
			case transcribe.JobStatusError:
				return "", fmt.Errorf("%w: job %s: %s", faults.ErrProvider, jobID, job.Error)
			}
		case httpx.IsRetryableError(err):
			// A flaky poll consumes its slot; the cap still bounds the
			// total wait.
			s.log.Debug("Transcription poll failed transiently", "job_id", jobID, "attempt", attempt, "error", err)
		default:
			return "", fmt.Errorf("poll job %s: %w", jobID, err)
		}

		if attempt < s.maxPolls {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.pollInterval):
			}
		}
	}
	return "", fmt.Errorf("%w: job %s still unsettled after %d polls",
		faults.ErrPollTimeout, jobID, s.maxPolls)
}

func (s *transcriptionService) notifyTranscriptReady(ctx context.Context, mediaID uuid.UUID, text string) {
	msg := sse.SSEMessage{
		Channel: sse.ChannelWall,
		Event:   sse.SSEEventTranscriptReady,
		Data: sse.TranscriptReadyPayload{
			ID:         mediaID,
			Transcript: text,
		},
	}
	if s.hub != nil {
		s.hub.Broadcast(msg)
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, msg); err != nil {
			s.log.Warn("Failed to publish transcript event to bus", "media_id", mediaID, "error", err)
		}
	}
}
