package feed

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type CommandType string

const (
	CmdAttach   CommandType = "attach"
	CmdPlay     CommandType = "play"
	CmdPause    CommandType = "pause"
	CmdReload   CommandType = "reload"
	CmdScrollTo CommandType = "scroll_to"
)

// Command is one instruction for the rendering layer. The client polls
// these and applies them to the handles it owns.
type Command struct {
	Type    CommandType `json:"type"`
	MediaID uuid.UUID   `json:"media_id,omitempty"`
	Index   int         `json:"index,omitempty"`
	Mode    PreloadMode `json:"mode,omitempty"`
	Muted   bool        `json:"muted,omitempty"`
	DelayMs int         `json:"delay_ms,omitempty"`
}

// CommandQueue is the Arena used over HTTP: scheduler output
// accumulates here until the client drains it. Bounded so an abandoned
// session cannot grow without limit.
type CommandQueue struct {
	mu   sync.Mutex
	cmds []Command
}

const commandQueueCap = 256

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

func (q *CommandQueue) push(c Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.cmds) >= commandQueueCap {
		// Oldest commands are stale by definition; the client will
		// reconverge from the newer ones.
		q.cmds = q.cmds[1:]
	}
	q.cmds = append(q.cmds, c)
}

// Drain hands back everything queued so far and resets the queue.
func (q *CommandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.cmds
	q.cmds = nil
	return out
}

func (q *CommandQueue) Attach(id uuid.UUID, mode PreloadMode) {
	q.push(Command{Type: CmdAttach, MediaID: id, Mode: mode})
}

func (q *CommandQueue) Play(id uuid.UUID, muted bool) {
	q.push(Command{Type: CmdPlay, MediaID: id, Muted: muted})
}

func (q *CommandQueue) Pause(id uuid.UUID) {
	q.push(Command{Type: CmdPause, MediaID: id})
}

func (q *CommandQueue) Reload(id uuid.UUID, after time.Duration) {
	q.push(Command{Type: CmdReload, MediaID: id, DelayMs: int(after / time.Millisecond)})
}

func (q *CommandQueue) ScrollTo(index int) {
	q.push(Command{Type: CmdScrollTo, Index: index})
}
