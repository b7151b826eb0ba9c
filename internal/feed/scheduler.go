package feed

import (
	"time"

	"github.com/google/uuid"

	"github.com/tributewall/tribute-backend/internal/logger"
)

// LoadStage is the per-item preload lattice. Stages only ever advance;
// once a source is attached it stays attached for the life of the
// session, playback state alone toggles.
type LoadStage int

const (
	StageNotRequested LoadStage = iota
	StageSourceAttached
	StagePlaybackReady
)

func (s LoadStage) String() string {
	switch s {
	case StageSourceAttached:
		return "SourceAttached"
	case StagePlaybackReady:
		return "PlaybackReady"
	default:
		return "NotRequested"
	}
}

// PreloadMode distinguishes a full warm-up from a metadata-only probe.
// The immediate next item gets full preload; everything further out in
// the prefetch window gets metadata only.
type PreloadMode string

const (
	PreloadFull     PreloadMode = "full"
	PreloadMetadata PreloadMode = "metadata"
)

// decodeRetryDelay is the pause before the single forced reload after
// a decode error.
const decodeRetryDelay = 1500 * time.Millisecond

// Arena is the rendering layer's side of the contract. The scheduler
// references items by stable media id only and never holds a playback
// handle itself; the arena owns those and may recreate them between
// render passes.
type Arena interface {
	Attach(id uuid.UUID, mode PreloadMode)
	Play(id uuid.UUID, muted bool)
	Pause(id uuid.UUID)
	Reload(id uuid.UUID, after time.Duration)
	ScrollTo(index int)
}

// Scheduler runs one browsing session's feed. It is a single-writer
// structure: the owning session serializes all calls, so there is no
// locking here.
type Scheduler struct {
	log     *logger.Logger
	items   []uuid.UUID
	quality ConnectionQuality
	arena   Arena
	scroll  *scrollMachine

	stages  map[uuid.UUID]LoadStage
	retried map[uuid.UUID]bool
	active  int // -1 until mount
	muted   bool
	playing bool
}

// SchedulerOption tweaks construction; tests inject a fake clock.
type SchedulerOption func(*Scheduler)

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.scroll = newScrollMachine(now) }
}

func WithMuted(muted bool) SchedulerOption {
	return func(s *Scheduler) { s.muted = muted }
}

func NewScheduler(log *logger.Logger, items []uuid.UUID, quality ConnectionQuality, arena Arena, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		log:     log.With("component", "FeedScheduler"),
		items:   items,
		quality: quality,
		arena:   arena,
		scroll:  newScrollMachine(nil),
		stages:  make(map[uuid.UUID]LoadStage, len(items)),
		retried: make(map[uuid.UUID]bool),
		active:  -1,
		muted:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Empty reports the terminal empty state: a session over zero items
// renders an empty wall and never emits a command. Not an error.
func (s *Scheduler) Empty() bool { return len(s.items) == 0 }

func (s *Scheduler) ActiveIndex() int { return s.active }

func (s *Scheduler) ScrollState() ScrollState { return s.scroll.State() }

func (s *Scheduler) Stage(id uuid.UUID) LoadStage { return s.stages[id] }

// Mount activates the first item and warms the prefetch window.
func (s *Scheduler) Mount() {
	if s.Empty() || s.active >= 0 {
		return
	}
	s.activate(0)
}

// ReportVisibility is the intersection callback. An item crossing the
// 0.5 ratio becomes the active item; an item dropping below it is
// paused no matter how well buffered it is. Reports are ignored while
// a programmatic scroll is settling.
func (s *Scheduler) ReportVisibility(index int, ratio float64) {
	if !s.inBounds(index) {
		return
	}
	if s.scroll.State() == ScrollProgrammatic {
		return
	}
	if ratio > 0.5 {
		if index != s.active {
			s.activate(index)
			return
		}
		// The active item dipped out of view and came back; it is
		// still attached and buffered, so playback resumes in place.
		if !s.playing {
			s.arena.Play(s.items[index], s.muted)
			s.playing = true
		}
		return
	}
	if s.stages[s.items[index]] >= StageSourceAttached {
		s.arena.Pause(s.items[index])
		if index == s.active {
			s.playing = false
		}
	}
}

// ReportUserScroll feeds a raw scroll event into the scroll machine.
// It returns true when the event may drive recomputation.
func (s *Scheduler) ReportUserScroll() bool {
	return s.scroll.OnUserScroll()
}

// Navigate moves the active index by delta (ArrowDown = +1, ArrowUp =
// -1), clamped to bounds, and requests a centered smooth scroll. The
// scroll machine suppresses the echo of that animation.
func (s *Scheduler) Navigate(delta int) {
	if s.Empty() {
		return
	}
	next := s.active + delta
	if next < 0 {
		next = 0
	}
	if next >= len(s.items) {
		next = len(s.items) - 1
	}
	if next == s.active {
		return
	}
	s.scroll.BeginProgrammatic()
	s.activate(next)
	s.arena.ScrollTo(next)
}

// ReportPlaybackReady advances the item to the top of the lattice once
// the rendering layer has buffered enough to play. A ready report for
// an item that was never attached is a stale echo from a previous
// render pass and is dropped; the lattice never skips SourceAttached.
func (s *Scheduler) ReportPlaybackReady(index int) {
	if !s.inBounds(index) {
		return
	}
	id := s.items[index]
	if s.stages[id] < StageSourceAttached {
		return
	}
	s.advance(id, StagePlaybackReady)
}

// ReportDecodeError retries a broken item exactly once by forcing a
// reload after a fixed delay; a second failure leaves it paused with
// no user-facing error.
func (s *Scheduler) ReportDecodeError(index int) {
	if !s.inBounds(index) {
		return
	}
	id := s.items[index]
	if s.retried[id] {
		s.arena.Pause(id)
		if index == s.active {
			s.playing = false
		}
		s.log.Debug("Second decode error; leaving item paused", "media_id", id)
		return
	}
	s.retried[id] = true
	s.arena.Reload(id, decodeRetryDelay)
}

// SetMuted flips the session-wide mute flag and reapplies it to the
// playing item.
func (s *Scheduler) SetMuted(muted bool) {
	s.muted = muted
	if s.playing && s.inBounds(s.active) {
		s.arena.Play(s.items[s.active], s.muted)
	}
}

func (s *Scheduler) activate(index int) {
	if s.inBounds(s.active) && s.active != index {
		s.arena.Pause(s.items[s.active])
	}

	id := s.items[index]
	if s.advance(id, StageSourceAttached) {
		s.arena.Attach(id, PreloadFull)
	}
	s.arena.Play(id, s.muted)
	s.active = index
	s.playing = true

	s.prefetchAround(index)
}

// prefetchAround warms the window for the new active index: the
// immediate next item fully, the rest of the fan-out metadata-only,
// and one behind on fast connections. Attachment is one-way; items
// already attached are left alone.
func (s *Scheduler) prefetchAround(index int) {
	fanout := s.quality.Fanout()
	for ahead := 1; ahead <= fanout; ahead++ {
		i := index + ahead
		if !s.inBounds(i) {
			break
		}
		mode := PreloadMetadata
		if ahead == 1 {
			mode = PreloadFull
		}
		if s.advance(s.items[i], StageSourceAttached) {
			s.arena.Attach(s.items[i], mode)
		}
	}
	if s.quality.PrefetchBehind() && s.inBounds(index-1) {
		if s.advance(s.items[index-1], StageSourceAttached) {
			s.arena.Attach(s.items[index-1], PreloadMetadata)
		}
	}
}

// advance moves the item up the lattice, never down. It reports
// whether the stage actually changed.
func (s *Scheduler) advance(id uuid.UUID, to LoadStage) bool {
	if s.stages[id] >= to {
		return false
	}
	s.stages[id] = to
	return true
}

func (s *Scheduler) inBounds(i int) bool { return i >= 0 && i < len(s.items) }
