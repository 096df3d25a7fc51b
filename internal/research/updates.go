package research

import (
	"context"
	"sync"

	"github.com/ayush/notsodumb/backend/internal/models"
)

// updateQueue hands section snapshots from committing code to a delivery
// goroutine. push never blocks, so commits can happen under the orchestrator
// lock while the consumer writes to a slow client.
type updateQueue struct {
	mu     sync.Mutex
	items  []models.ChatSection
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{ready: make(chan struct{}, 1), done: make(chan struct{})}
}

func (q *updateQueue) push(s models.ChatSection) {
	q.mu.Lock()
	q.items = append(q.items, s)
	q.mu.Unlock()
	q.signal()
}

func (q *updateQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *updateQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// deliver calls fn for each snapshot in push order until the queue is
// closed and drained or ctx ends.
func (q *updateQueue) deliver(ctx context.Context, fn func(models.ChatSection)) {
	defer close(q.done)
	for {
		q.mu.Lock()
		items, closed := q.items, q.closed
		q.items = nil
		q.mu.Unlock()

		for _, s := range items {
			if ctx.Err() != nil {
				return
			}
			fn(s)
		}
		if closed && len(items) == 0 {
			return
		}
		if len(items) > 0 {
			continue
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return
		}
	}
}
