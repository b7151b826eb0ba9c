package feed

import "time"

// ScrollState names the three scroll regimes. ProgrammaticScroll is
// entered when the engine itself requests a smooth scroll (keyboard
// navigation); while it holds, scroll-driven active-index recomputation
// is suppressed so the in-flight animation cannot feed back into the
// scheduler.
type ScrollState string

const (
	ScrollIdle         ScrollState = "Idle"
	ScrollProgrammatic ScrollState = "ProgrammaticScroll"
	ScrollUser         ScrollState = "UserScroll"
)

// scrollSettleDelay is how long after the last relevant event a scroll
// regime is considered finished.
const scrollSettleDelay = 500 * time.Millisecond

// scrollMachine tracks the current regime. It is driven by the owning
// scheduler only, never concurrently.
type scrollMachine struct {
	state   ScrollState
	settled time.Time // regime expires at this instant

	now func() time.Time
}

func newScrollMachine(now func() time.Time) *scrollMachine {
	if now == nil {
		now = time.Now
	}
	return &scrollMachine{state: ScrollIdle, now: now}
}

// State expires a stale regime before reporting it.
func (m *scrollMachine) State() ScrollState {
	if m.state != ScrollIdle && m.now().After(m.settled) {
		m.state = ScrollIdle
	}
	return m.state
}

// BeginProgrammatic marks a keyboard/click-triggered smooth scroll as
// in flight.
func (m *scrollMachine) BeginProgrammatic() {
	m.state = ScrollProgrammatic
	m.settled = m.now().Add(scrollSettleDelay)
}

// OnUserScroll records a raw scroll event. It returns true when
// scroll-driven recomputation may run, false while a programmatic
// scroll is still settling.
func (m *scrollMachine) OnUserScroll() bool {
	if m.State() == ScrollProgrammatic {
		// The animation is still in flight; its deadline is not
		// extended by the scroll events it generates itself.
		return false
	}
	m.state = ScrollUser
	m.settled = m.now().Add(scrollSettleDelay)
	return true
}
