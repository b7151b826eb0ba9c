package services

import "testing"

func TestProgressRegistryMonotonic(t *testing.T) {
	r := NewUploadProgressRegistry()

	r.Set(0, "a.mp4", 10)
	r.Set(0, "a.mp4", 40)
	r.Set(0, "a.mp4", 25) // late report must not rewind
	if pct, _ := r.Get(0, "a.mp4"); pct != 40 {
		t.Fatalf("pct = %d, want 40", pct)
	}

	r.Set(0, "a.mp4", 150)
	if pct, _ := r.Get(0, "a.mp4"); pct != 100 {
		t.Fatalf("pct = %d, want clamped 100", pct)
	}
}

func TestProgressRegistryKeysAreIndependent(t *testing.T) {
	r := NewUploadProgressRegistry()
	r.Set(0, "a.mp4", 50)
	r.Set(1, "a.mp4", 10)
	r.Set(0, "b.mp4", 90)

	if pct, _ := r.Get(1, "a.mp4"); pct != 10 {
		t.Fatalf("(1, a.mp4) = %d, want 10", pct)
	}
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
}

func TestProgressRegistryClearOnSettlement(t *testing.T) {
	r := NewUploadProgressRegistry()
	r.Set(2, "c.mp4", 99)
	r.Clear(2, "c.mp4")

	if _, ok := r.Get(2, "c.mp4"); ok {
		t.Fatalf("cleared token still present")
	}
	if r.Len() != 0 {
		t.Fatalf("registry leaked entries: %d", r.Len())
	}
}
