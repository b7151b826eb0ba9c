package gcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/tributewall/tribute-backend/internal/pkg/faults"
)

func TestKeyFromURL(t *testing.T) {
	s := &objectStore{bucket: "tribute-media", cdnDomain: "cdn.example.com"}

	cases := []struct {
		rawURL string
		want   string
		ok     bool
	}{
		{"https://cdn.example.com/media/a/source/a.mp4", "media/a/source/a.mp4", true},
		{"https://storage.googleapis.com/tribute-media/media/a/thumb.jpg", "media/a/thumb.jpg", true},
		{"https://storage.googleapis.com/other-bucket/media/a.mp4", "", false},
		{"https://elsewhere.example.com/media/a.mp4", "", false},
		{"://bad url", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := s.KeyFromURL(tc.rawURL)
		if got != tc.want || ok != tc.ok {
			t.Errorf("KeyFromURL(%q) = (%q, %v), want (%q, %v)", tc.rawURL, got, ok, tc.want, tc.ok)
		}
	}
}

func TestKeyFromURLWithoutCDN(t *testing.T) {
	s := &objectStore{bucket: "tribute-media"}
	if _, ok := s.KeyFromURL("https://cdn.example.com/media/a.mp4"); ok {
		t.Fatalf("cdn shape must be rejected when no cdn domain is configured")
	}
	if key, ok := s.KeyFromURL("https://storage.googleapis.com/tribute-media/x.png"); !ok || key != "x.png" {
		t.Fatalf("bucket shape broken: (%q, %v)", key, ok)
	}
}

func TestPublicURL(t *testing.T) {
	withCDN := &objectStore{bucket: "tribute-media", cdnDomain: "cdn.example.com"}
	if got := withCDN.PublicURL("media/a.mp4"); got != "https://cdn.example.com/media/a.mp4" {
		t.Fatalf("cdn url = %q", got)
	}
	bare := &objectStore{bucket: "tribute-media"}
	if got := bare.PublicURL("media/a.mp4"); got != "https://storage.googleapis.com/tribute-media/media/a.mp4" {
		t.Fatalf("bucket url = %q", got)
	}
}

func TestClassifyStorageError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"payload too large", &googleapi.Error{Code: 413}, faults.ErrQuotaExceeded},
		{"expired credential", &googleapi.Error{Code: 401}, faults.ErrAuthExpired},
		{"rate limited", &googleapi.Error{Code: 429}, faults.ErrTransientNetwork},
		{"server error", &googleapi.Error{Code: 503}, faults.ErrTransientNetwork},
		{"deadline", context.DeadlineExceeded, faults.ErrTransientNetwork},
		{"object size cap", fmt.Errorf("write: exceeds the maximum object size"), faults.ErrQuotaExceeded},
	}
	for _, tc := range cases {
		if got := classifyStorageError(tc.in); !errors.Is(got, tc.want) {
			t.Errorf("%s: classified as %v, want %v", tc.name, got, tc.want)
		}
	}

	if classifyStorageError(nil) != nil {
		t.Errorf("nil must stay nil")
	}
	notFound := &googleapi.Error{Code: 404}
	if got := classifyStorageError(notFound); errors.Is(got, faults.ErrTransientNetwork) || errors.Is(got, faults.ErrQuotaExceeded) {
		t.Errorf("404 must pass through unclassified, got %v", got)
	}
}

// Exercised with -race: readers keep getting a non-nil client while a
// refresh swaps it out underneath them.
func TestClientSwapDuringReads(t *testing.T) {
	s := &objectStore{bucket: "tribute-media", client: &storage.Client{}}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if s.cl() == nil {
					t.Errorf("reader observed a nil client")
					return
				}
			}
		}()
	}
	for j := 0; j < 1000; j++ {
		if old := s.setClient(&storage.Client{}); old == nil {
			t.Fatalf("swap lost the previous client")
		}
	}
	wg.Wait()
}

func TestContentTypeForKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"media/a/source/clip.mp4", "video/mp4"},
		{"media/a/thumb.JPG", "image/jpeg"},
		{"media/a/poster.png?x=1", "image/png"},
		{"media/a/clip.webm", "video/webm"},
		{"media/a/raw.bin", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := contentTypeForKey(tc.key); got != tc.want {
			t.Errorf("contentTypeForKey(%q) = %q, want %q", tc.key, got, tc.want)
		}
	}
}
