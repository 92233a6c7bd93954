package reconcile

import (
	"context"
	"sync"

	"github.com/starford/munchie/internal/models"
)

// Background runs hidden-flag reconciliation off the caller's goroutine.
//
// At most one pass runs at a time. Triggers that arrive during a pass replace
// each other, so only the newest store snapshot is reconciled next.
type Background struct {
	hidden *Hidden
	onDone func(HiddenReport)

	mu         sync.Mutex
	pending    []models.Collection
	hasPending bool
	running    bool
	idle       *sync.Cond
}

// NewBackground wraps h. onDone, when non-nil, is called after every pass.
func NewBackground(h *Hidden, onDone func(HiddenReport)) *Background {
	b := &Background{hidden: h, onDone: onDone}
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Trigger schedules a pass over cols.
func (b *Background) Trigger(cols []models.Collection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = cols
	b.hasPending = true
	if b.running {
		return
	}
	b.running = true
	go b.loop()
}

// Wait blocks until no pass is running or pending. It may be called while
// other goroutines keep triggering.
func (b *Background) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.running {
		b.idle.Wait()
	}
}

func (b *Background) loop() {
	for {
		b.mu.Lock()
		if !b.hasPending {
			b.running = false
			b.idle.Broadcast()
			b.mu.Unlock()
			return
		}
		cols := b.pending
		b.pending, b.hasPending = nil, false
		b.mu.Unlock()

		report := b.hidden.Reconcile(context.Background(), cols)
		if b.onDone != nil {
			b.onDone(report)
		}
	}
}
