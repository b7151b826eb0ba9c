package feed

import (
	"testing"
	"time"
)

func TestScrollMachineIdleByDefault(t *testing.T) {
	m := newScrollMachine(nil)
	if got := m.State(); got != ScrollIdle {
		t.Fatalf("initial state = %s, want Idle", got)
	}
}

func TestScrollMachineProgrammaticSettles(t *testing.T) {
	now := time.Now()
	m := newScrollMachine(func() time.Time { return now })

	m.BeginProgrammatic()
	if got := m.State(); got != ScrollProgrammatic {
		t.Fatalf("state = %s, want ProgrammaticScroll", got)
	}
	if m.OnUserScroll() {
		t.Fatalf("scroll events during programmatic scroll must be suppressed")
	}

	now = now.Add(501 * time.Millisecond)
	if got := m.State(); got != ScrollIdle {
		t.Fatalf("state after settle = %s, want Idle", got)
	}
	if !m.OnUserScroll() {
		t.Fatalf("scroll events after settle must drive recomputation")
	}
	if got := m.State(); got != ScrollUser {
		t.Fatalf("state = %s, want UserScroll", got)
	}
}

func TestScrollMachineUserScrollExpires(t *testing.T) {
	now := time.Now()
	m := newScrollMachine(func() time.Time { return now })

	if !m.OnUserScroll() {
		t.Fatalf("user scroll from idle must be allowed")
	}
	now = now.Add(501 * time.Millisecond)
	if got := m.State(); got != ScrollIdle {
		t.Fatalf("user scroll regime should expire to Idle, got %s", got)
	}
}
