package feed

import (
	"testing"

	"github.com/google/uuid"
)

func TestSessionManagerLifecycle(t *testing.T) {
	m := NewSessionManager(testLogger(t))

	sess := m.Open(makeItems(3), ConnectionSignals{EffectiveType: "4g"}, true)
	if m.Len() != 1 {
		t.Fatalf("Len = %d after open, want 1", m.Len())
	}

	// Mount already ran; the first drain carries the attach/play batch.
	cmds := sess.Drain()
	if len(cmds) == 0 {
		t.Fatalf("expected mount commands, got none")
	}
	if len(sess.Drain()) != 0 {
		t.Fatalf("second drain should be empty")
	}

	got, err := m.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get returned %v, %v", got, err)
	}
	if _, err := m.Get(uuid.New()); err == nil {
		t.Fatalf("Get for unknown id should fail")
	}

	m.Close(sess.ID)
	if m.Len() != 0 {
		t.Fatalf("Len = %d after close, want 0", m.Len())
	}
}

func TestCommandQueueBounded(t *testing.T) {
	q := NewCommandQueue()
	for i := 0; i < commandQueueCap+10; i++ {
		q.ScrollTo(i)
	}
	cmds := q.Drain()
	if len(cmds) != commandQueueCap {
		t.Fatalf("queue grew to %d, cap is %d", len(cmds), commandQueueCap)
	}
	if cmds[len(cmds)-1].Index != commandQueueCap+9 {
		t.Fatalf("newest command lost; tail index = %d", cmds[len(cmds)-1].Index)
	}
}
