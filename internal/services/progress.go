package services

import (
	"fmt"
	"sync"
)

// UploadProgressRegistry tracks ephemeral 0-100 percentages for
// in-flight uploads, keyed by (itemIndex, fileName). Entries must be
// cleared the moment the upload settles, success or failure; a leaked
// entry is a bug.
type UploadProgressRegistry struct {
	mu      sync.RWMutex
	entries map[string]int
}

func NewUploadProgressRegistry() *UploadProgressRegistry {
	return &UploadProgressRegistry{entries: make(map[string]int)}
}

func progressKey(itemIndex int, fileName string) string {
	return fmt.Sprintf("%d:%s", itemIndex, fileName)
}

func (r *UploadProgressRegistry) Set(itemIndex int, fileName string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Monotonic within a token: a late or duplicate report never
	// rewinds the bar.
	key := progressKey(itemIndex, fileName)
	if cur, ok := r.entries[key]; ok && cur >= pct {
		return
	}
	r.entries[key] = pct
}

func (r *UploadProgressRegistry) Get(itemIndex int, fileName string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pct, ok := r.entries[progressKey(itemIndex, fileName)]
	return pct, ok
}

// Clear removes the token. Called from every settlement path.
func (r *UploadProgressRegistry) Clear(itemIndex int, fileName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, progressKey(itemIndex, fileName))
}

func (r *UploadProgressRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
