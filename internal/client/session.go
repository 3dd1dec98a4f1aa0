package client

import (
	"context"
	"sync"
	"time"

	"github.com/rongwang/claims-tracker/internal/models"
	"github.com/rongwang/claims-tracker/internal/workqueue"
)

// DefaultPollInterval is how often a Session re-fetches claims when polling
const DefaultPollInterval = 30 * time.Second

// Session keeps a local copy of the claim list and renders the queue from
// it, the way the browser front-end does
type Session struct {
	client *Client

	mu    sync.Mutex
	state workqueue.State
}

// NewSession creates a session for the signed in user of c
func NewSession(c *Client, viewer models.Actor, loc *time.Location) *Session {
	return &Session{
		client: c,
		state:  workqueue.NewState(viewer, loc),
	}
}

// Refresh replaces the cached claims with a fresh fetch
func (s *Session) Refresh(ctx context.Context) error {
	claims, err := s.client.ListClaims(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = s.state.WithClaims(claims)
	s.mu.Unlock()
	return nil
}

// State returns the current state
func (s *Session) State() workqueue.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetFilter changes the filter and goes back to page one
func (s *Session) SetFilter(f workqueue.Filter) {
	s.mu.Lock()
	s.state = s.state.WithFilter(f)
	s.mu.Unlock()
}

// SetPage moves to another page of the current filter
func (s *Session) SetPage(page int) {
	s.mu.Lock()
	s.state = s.state.WithPage(page)
	s.mu.Unlock()
}

// View renders the cached claims as of now
func (s *Session) View(now time.Time) workqueue.Page {
	return s.State().View(now)
}

// Poll refreshes on every tick until ctx is done, calling fn with the new
// view or the refresh error. The first refresh happens immediately.
func (s *Session) Poll(ctx context.Context, interval time.Duration, fn func(workqueue.Page, error)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	tick := func() {
		if err := s.Refresh(ctx); err != nil {
			if ctx.Err() == nil {
				fn(workqueue.Page{}, err)
			}
			return
		}
		fn(s.View(time.Now()), nil)
	}

	tick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			tick()
		}
	}
}
