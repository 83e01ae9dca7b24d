package netsync

import (
	"context"
	"sync"
)

// loop is the single execution context of an endpoint.
type loop struct {
	events chan func()
	done   chan struct{}
	once   sync.Once
}

func newLoop(buffer int) *loop {
	return &loop{
		events: make(chan func(), buffer),
		done:   make(chan struct{}),
	}
}

// post queues fn. It returns false once the loop has stopped.
func (l *loop) post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.events <- fn:
		return true
	}
}

// call runs fn on the loop and waits for it to finish.
func (l *loop) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.post(func() {
		fn()
		close(finished)
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// drain runs every queued event without blocking.
func (l *loop) drain() {
	for {
		select {
		case fn := <-l.events:
			fn()
		default:
			return
		}
	}
}

func (l *loop) stop() {
	l.once.Do(func() { close(l.done) })
}

func (l *loop) stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
