package console

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const defaultNoticeTTL = 5 * time.Second

// Notices shows transient, auto-dismissing messages. A notice never
// blocks interaction: it is printed once and silently dropped from the
// active list when its interval elapses.
type Notices struct {
	mu     sync.Mutex
	out    io.Writer
	ttl    time.Duration
	nextID int
	active map[int]string
	timers map[int]*time.Timer
	closed bool
}

func NewNotices(out io.Writer, ttl time.Duration) *Notices {
	if ttl <= 0 {
		ttl = defaultNoticeTTL
	}
	return &Notices{
		out:    out,
		ttl:    ttl,
		active: make(map[int]string),
		timers: make(map[int]*time.Timer),
	}
}

// Notify displays text and schedules its dismissal.
func (n *Notices) Notify(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.nextID++
	id := n.nextID
	n.active[id] = text
	n.timers[id] = time.AfterFunc(n.ttl, func() { n.dismiss(id) })
	fmt.Fprintf(n.out, "! %s\n", text)
}

func (n *Notices) dismiss(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.active, id)
	delete(n.timers, id)
}

// Active returns the currently displayed notices.
func (n *Notices) Active() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.active))
	for _, text := range n.active {
		out = append(out, text)
	}
	return out
}

// Close cancels all pending dismissal timers. Further Notify calls are
// dropped.
func (n *Notices) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for id, t := range n.timers {
		t.Stop()
		delete(n.timers, id)
	}
}
