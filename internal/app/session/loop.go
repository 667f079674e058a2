package session

import (
	"context"
	"sync"

	"github.com/dkeye/VoicePeer/internal/domain"
)

// mailbox is an unbounded FIFO of closures run by the session loop.
type mailbox struct {
	mu    sync.Mutex
	items []func()
	wake  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{wake: make(chan struct{}, 1)}
}

func (m *mailbox) put(fn func()) {
	m.mu.Lock()
	m.items = append(m.items, fn)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}

// Run processes posted work until ctx is done, then destroys the session.
func (c *Controller) Run(ctx context.Context) error {
	c.log.Info().Msg("session loop started")
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			for _, fn := range c.box.take() {
				fn()
			}
			c.destroy()
			c.log.Info().Msg("session loop stopped")
			return nil
		case <-c.box.wake:
			for _, fn := range c.box.take() {
				fn()
			}
		}
	}
}

// post schedules fn on the loop without waiting. Used by media and transport
// callbacks.
func (c *Controller) post(fn func()) { c.box.put(fn) }

// exec runs fn on the loop and waits for it. Must not be called from the loop.
func (c *Controller) exec(fn func()) error {
	finished := make(chan struct{})
	c.post(func() {
		defer close(finished)
		fn()
	})
	select {
	case <-finished:
		return nil
	case <-c.done:
		select {
		case <-finished:
			return nil
		default:
			return domain.ErrClosed
		}
	}
}

// flush waits until everything posted so far has run.
func (c *Controller) flush() { _ = c.exec(func() {}) }
