package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tributewall/tribute-backend/internal/clients/gcp"
	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

const (
	// uploadChunkSize is also the single-shot cutoff; the resumable
	// protocol mandates this as the minimum chunk size.
	uploadChunkSize = 6 << 20
)

// uploadRetrySchedule is the delay before each transfer attempt.
var uploadRetrySchedule = []time.Duration{
	0,
	3 * time.Second,
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
}

// UploaderService moves a binary payload into object storage and
// returns its stable URL. Small payloads go in one shot; large ones go
// through a chunked session that can be resumed after an interruption
// for the same (key, size) fingerprint. Progress is monotonically
// non-decreasing and reaches 100 only on confirmed commit.
type UploaderService interface {
	Upload(ctx context.Context, key string, data []byte, onProgress func(pct int)) (string, error)
}

type uploaderService struct {
	log      *logger.Logger
	store    gcp.ObjectStore
	maxBytes int64

	sleep func(time.Duration)

	mu       sync.Mutex
	sessions map[string]*chunkSession
}

type chunkSession struct {
	writer gcp.ChunkWriter
	sent   int64
}

func NewUploaderService(log *logger.Logger, store gcp.ObjectStore, maxBytes int64) UploaderService {
	return &uploaderService{
		log:      log.With("service", "UploaderService"),
		store:    store,
		maxBytes: maxBytes,
		sleep:    time.Sleep,
		sessions: make(map[string]*chunkSession),
	}
}

func (u *uploaderService) Upload(ctx context.Context, key string, data []byte, onProgress func(pct int)) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: destination key required", faults.ErrInvalidArgument)
	}
	size := int64(len(data))
	if size == 0 {
		return "", fmt.Errorf("%w: empty payload", faults.ErrInvalidArgument)
	}
	if u.maxBytes > 0 && size > u.maxBytes {
		return "", fmt.Errorf("%w: payload is %d bytes, backend limit is %d",
			faults.ErrQuotaExceeded, size, u.maxBytes)
	}

	report := monotonicProgress(onProgress)

	if size <= uploadChunkSize {
		return u.uploadSingleShot(ctx, key, data, report)
	}
	return u.uploadChunked(ctx, key, data, report)
}

func (u *uploaderService) uploadSingleShot(ctx context.Context, key string, data []byte, report func(int)) (string, error) {
	var finalURL string
	err := u.withRetry(ctx, func() error {
		url, err := u.store.PutObject(ctx, key, bytes.NewReader(data))
		if err != nil {
			return err
		}
		finalURL = url
		return nil
	})
	if err != nil {
		return "", err
	}
	report(100)
	return finalURL, nil
}

func (u *uploaderService) uploadChunked(ctx context.Context, key string, data []byte, report func(int)) (string, error) {
	total := int64(len(data))
	fp := transferFingerprint(key, total)

	sess, resumed, err := u.sessionFor(ctx, fp, key)
	if err != nil {
		return "", err
	}
	if resumed {
		u.log.Info("Resuming interrupted upload", "key", key, "sent_bytes", sess.sent)
		report(chunkPct(sess.sent, total))
	}

	var last error
	refreshed := false
	for attempt := 0; attempt < len(uploadRetrySchedule); attempt++ {
		if d := uploadRetrySchedule[attempt]; d > 0 {
			u.sleep(d)
		}

		url, err := u.pushAndCommit(ctx, sess, data, report)
		if err == nil {
			u.dropSession(fp)
			report(100)
			return url, nil
		}
		if ctx.Err() != nil {
			// The caller is gone but the writer is healthy; keep the
			// session so a later call with the same fingerprint can
			// pick up where this one stopped.
			return "", ctx.Err()
		}
		last = err

		switch {
		case errors.Is(err, faults.ErrTransientNetwork):
			if sess, err = u.restartSession(ctx, fp, key); err != nil {
				return "", err
			}
		case errors.Is(err, faults.ErrAuthExpired) && !refreshed:
			refreshed = true
			if rerr := u.store.RefreshAuth(ctx); rerr != nil {
				u.abandonSession(fp, sess)
				return "", fmt.Errorf("credential refresh failed: %w", rerr)
			}
			if sess, err = u.restartSession(ctx, fp, key); err != nil {
				return "", err
			}
			// Retry immediately with the fresh credential; the
			// schedule slot is not consumed.
			attempt--
		default:
			u.abandonSession(fp, sess)
			return "", err
		}
	}
	u.abandonSession(fp, sess)
	return "", last
}

// pushAndCommit streams the remaining chunks into the session's writer
// and commits. Chunk accounting caps progress at 99; 100 is reserved
// for the confirmed commit.
func (u *uploaderService) pushAndCommit(ctx context.Context, sess *chunkSession, data []byte, report func(int)) (string, error) {
	total := int64(len(data))
	for sess.sent < total {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		end := sess.sent + uploadChunkSize
		if end > total {
			end = total
		}
		if err := sess.writer.Put(data[sess.sent:end]); err != nil {
			return "", err
		}
		sess.sent = end
		report(chunkPct(sess.sent, total))
	}
	return sess.writer.Commit()
}

// restartSession replaces a session whose writer has failed. A storage
// writer that has returned an error accepts no further writes, so the
// replacement replays from byte zero; the progress guard hides the
// regression from callers.
func (u *uploaderService) restartSession(ctx context.Context, fp, key string) (*chunkSession, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if old, ok := u.sessions[fp]; ok {
		old.writer.Abort()
		delete(u.sessions, fp)
	}
	w, err := u.store.BeginChunked(ctx, key)
	if err != nil {
		return nil, err
	}
	sess := &chunkSession{writer: w}
	u.sessions[fp] = sess
	return sess, nil
}

// abandonSession aborts and forgets a session that can never finish.
func (u *uploaderService) abandonSession(fp string, sess *chunkSession) {
	sess.writer.Abort()
	u.dropSession(fp)
}

// sessionFor returns a live incomplete session for the fingerprint if
// one exists, otherwise opens a fresh chunked writer.
func (u *uploaderService) sessionFor(ctx context.Context, fp, key string) (*chunkSession, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if sess, ok := u.sessions[fp]; ok {
		return sess, true, nil
	}
	w, err := u.store.BeginChunked(ctx, key)
	if err != nil {
		return nil, false, err
	}
	sess := &chunkSession{writer: w}
	u.sessions[fp] = sess
	return sess, false, nil
}

func (u *uploaderService) dropSession(fp string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.sessions, fp)
}

// withRetry runs fn on the fixed backoff schedule for transient
// failures. An expired credential is refreshed once and retried once;
// everything else is terminal on first sight.
func (u *uploaderService) withRetry(ctx context.Context, fn func() error) error {
	var last error
	refreshed := false
	for attempt := 0; attempt < len(uploadRetrySchedule); attempt++ {
		if d := uploadRetrySchedule[attempt]; d > 0 {
			u.sleep(d)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		last = err

		switch {
		case errors.Is(err, faults.ErrTransientNetwork):
			continue
		case errors.Is(err, faults.ErrAuthExpired) && !refreshed:
			refreshed = true
			if rerr := u.store.RefreshAuth(ctx); rerr != nil {
				return fmt.Errorf("credential refresh failed: %w", rerr)
			}
			// Retry immediately with the fresh credential; the
			// schedule slot is not consumed.
			attempt--
			continue
		default:
			return err
		}
	}
	return last
}

func transferFingerprint(key string, size int64) string {
	return fmt.Sprintf("%s:%d", key, size)
}

func chunkPct(sent, total int64) int {
	pct := int(sent * 100 / total)
	if pct > 99 {
		pct = 99
	}
	return pct
}

// monotonicProgress guards the caller's callback: percentages never
// regress and 100 fires at most once.
func monotonicProgress(onProgress func(int)) func(int) {
	if onProgress == nil {
		return func(int) {}
	}
	last := -1
	return func(pct int) {
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		if pct <= last {
			return
		}
		last = pct
		onProgress(pct)
	}
}
