package memstore

import (
	"sync"

	"github.com/dkeye/Cast/internal/core"
)

// listener delivers changes in commit order on its own goroutine so that
// callbacks never run under the store lock.
type listener struct {
	q  core.Query
	fn func(core.DocumentChange)

	mu     sync.Mutex
	queue  []core.DocumentChange
	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newListener(q core.Query, fn func(core.DocumentChange)) *listener {
	return &listener{
		q:      q,
		fn:     fn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (l *listener) matches(d core.Document) bool {
	return l.q.CreatedAfter.IsZero() || d.CreateTime.After(l.q.CreatedAfter)
}

func (l *listener) push(ch core.DocumentChange) {
	l.mu.Lock()
	l.queue = append(l.queue, ch)
	l.mu.Unlock()
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *listener) stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *listener) run() {
	for {
		select {
		case <-l.done:
			return
		case <-l.notify:
		}
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			batch := l.queue
			l.queue = nil
			l.mu.Unlock()
			for _, ch := range batch {
				select {
				case <-l.done:
					return
				default:
				}
				if l.fn != nil {
					l.fn(ch)
				}
			}
		}
	}
}
