package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/tributewall/tribute-backend/internal/logger"
	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

// ObjectStore is the storage collaborator contract: store bytes at a
// key, hand back a stable URL. Chunked sessions exist for payloads too
// large for a single-shot put; nothing is visible at the key until the
// session commits.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, data io.Reader) (string, error)
	BeginChunked(ctx context.Context, key string) (ChunkWriter, error)
	SignedURL(key string, ttl time.Duration) (string, error)
	DeleteObject(ctx context.Context, key string) error
	PublicURL(key string) string
	KeyFromURL(rawURL string) (string, bool)
	RefreshAuth(ctx context.Context) error
}

// ChunkWriter accumulates one object across multiple Put calls. The
// object becomes visible only after Commit returns nil.
type ChunkWriter interface {
	Put(chunk []byte) error
	Commit() (string, error)
	Abort()
}

type objectStore struct {
	log       *logger.Logger
	bucket    string
	cdnDomain string
	chunkSize int

	// client is swapped by RefreshAuth while requests are in flight.
	mu     sync.RWMutex
	client *storage.Client
}

func (s *objectStore) cl() *storage.Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client
}

func (s *objectStore) setClient(c *storage.Client) *storage.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.client
	s.client = c
	return old
}

func NewObjectStore(log *logger.Logger, chunkSize int) (ObjectStore, error) {
	serviceLog := log.With("service", "ObjectStore")

	bucket := strings.TrimSpace(os.Getenv("MEDIA_GCS_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing env var MEDIA_GCS_BUCKET_NAME")
	}
	cdnDomain := strings.TrimSpace(os.Getenv("MEDIA_CDN_DOMAIN"))

	ctx := context.Background()
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &objectStore{
		log:       serviceLog,
		client:    client,
		bucket:    bucket,
		cdnDomain: cdnDomain,
		chunkSize: chunkSize,
	}, nil
}

func (s *objectStore) PutObject(ctx context.Context, key string, data io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.cl().Bucket(s.bucket).Object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	w.CacheControl = "public, max-age=31536000"
	if _, err := io.Copy(w, data); err != nil {
		_ = w.Close()
		return "", classifyStorageError(err)
	}
	if err := w.Close(); err != nil {
		return "", classifyStorageError(err)
	}
	return s.PublicURL(key), nil
}

func (s *objectStore) BeginChunked(ctx context.Context, key string) (ChunkWriter, error) {
	// The session outlives the request that opened it so an interrupted
	// transfer can resume from a later request. Only Abort or Commit
	// ends the writer's context.
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w := s.cl().Bucket(s.bucket).Object(key).NewWriter(wctx)
	w.ChunkSize = s.chunkSize
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	w.CacheControl = "public, max-age=31536000"
	return &chunkWriter{store: s, key: key, w: w, cancel: cancel}, nil
}

type chunkWriter struct {
	store  *objectStore
	key    string
	w      *storage.Writer
	cancel context.CancelFunc
}

func (cw *chunkWriter) Put(chunk []byte) error {
	if _, err := cw.w.Write(chunk); err != nil {
		return classifyStorageError(err)
	}
	return nil
}

func (cw *chunkWriter) Commit() (string, error) {
	if err := cw.w.Close(); err != nil {
		cw.cancel()
		return "", classifyStorageError(err)
	}
	cw.cancel()
	return cw.store.PublicURL(cw.key), nil
}

// Abort cancels the writer context; GCS discards the uncommitted
// resumable session server-side.
func (cw *chunkWriter) Abort() {
	cw.cancel()
	_ = cw.w.Close()
}

func (s *objectStore) SignedURL(key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	u, err := s.cl().Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("sign url for %q: %w", key, err)
	}
	return u, nil
}

func (s *objectStore) DeleteObject(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := s.cl().Bucket(s.bucket).Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, s.bucket, err)
	}
	return nil
}

func (s *objectStore) PublicURL(key string) string {
	if s.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key)
}

// KeyFromURL recovers the object key from the two URL shapes this
// backend hands out. Unknown shapes are rejected rather than guessed
// at; the caller treats that as unreachable.
func (s *objectStore) KeyFromURL(rawURL string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Path == "" {
		return "", false
	}
	path := strings.TrimPrefix(u.Path, "/")
	switch {
	case u.Host == "storage.googleapis.com":
		prefix := s.bucket + "/"
		if !strings.HasPrefix(path, prefix) {
			return "", false
		}
		return strings.TrimPrefix(path, prefix), true
	case s.cdnDomain != "" && u.Host == s.cdnDomain:
		return path, true
	default:
		return "", false
	}
}

// RefreshAuth rebuilds the underlying client, picking up rotated
// credentials from the environment.
func (s *objectStore) RefreshAuth(ctx context.Context) error {
	opts := ClientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return fmt.Errorf("refresh storage client: %w", err)
	}
	_ = s.setClient(client).Close()
	return nil
}

// classifyStorageError maps transport errors onto the upload failure
// taxonomy so callers never inspect googleapi internals.
func classifyStorageError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 413:
			return fmt.Errorf("%w: %v", faults.ErrQuotaExceeded, err)
		case apiErr.Code == 401:
			return fmt.Errorf("%w: %v", faults.ErrAuthExpired, err)
		case apiErr.Code == 408 || apiErr.Code == 429 || apiErr.Code >= 500:
			return fmt.Errorf("%w: %v", faults.ErrTransientNetwork, err)
		}
		return err
	}
	if strings.Contains(err.Error(), "exceeds the maximum object size") {
		return fmt.Errorf("%w: %v", faults.ErrQuotaExceeded, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", faults.ErrTransientNetwork, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", faults.ErrTransientNetwork, err)
	}
	return err
}

func contentTypeForKey(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "?"); i >= 0 {
		s = s[:i]
	}
	switch {
	case strings.HasSuffix(s, ".png"):
		return "image/png"
	case strings.HasSuffix(s, ".jpg"), strings.HasSuffix(s, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(s, ".webp"):
		return "image/webp"
	case strings.HasSuffix(s, ".gif"):
		return "image/gif"
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	default:
		return ""
	}
}
