package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/tubedigest/internal/controller"
	"github.com/jonathan/tubedigest/internal/gateway"
	"github.com/jonathan/tubedigest/internal/history"
	"github.com/jonathan/tubedigest/internal/logging"
	"github.com/jonathan/tubedigest/internal/metrics"
	"github.com/jonathan/tubedigest/internal/storage"
)

// DefaultSessionIdle is how long an unused page session stays in memory.
// Its history stays in storage and is reloaded on the next visit.
const DefaultSessionIdle = 2 * time.Hour

type sessionEntry struct {
	ctrl     *controller.Controller
	lastSeen time.Time

	initMu sync.Mutex
	ready  bool
}

// load reads the session's history until one attempt gets past the backend.
// A read failure leaves the entry unready so the next request tries again.
func (e *sessionEntry) load(ctx context.Context) {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.ready {
		return
	}
	// Load failures surface as notifications on the page.
	err := e.ctrl.Init(context.WithoutCancel(ctx))
	e.ready = err == nil || errors.Is(err, history.ErrHistoryReset)
}

// Sessions holds one controller per page session.
type Sessions struct {
	gw   gateway.Summarizer
	kv   storage.KV
	log  logging.Logger
	idle time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]*sessionEntry
}

// NewSessions creates an empty registry.
func NewSessions(gw gateway.Summarizer, kv storage.KV, log logging.Logger, idle time.Duration) *Sessions {
	if idle <= 0 {
		idle = DefaultSessionIdle
	}
	return &Sessions{
		gw:      gw,
		kv:      kv,
		log:     log,
		idle:    idle,
		now:     time.Now,
		entries: make(map[uuid.UUID]*sessionEntry),
	}
}

// Get returns the controller for id, creating and loading it on first use.
func (s *Sessions) Get(ctx context.Context, id uuid.UUID) *controller.Controller {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		key := history.KeyFor(id.String())
		e = &sessionEntry{
			ctrl: controller.New(s.gw, history.NewStore(s.kv, key),
				controller.WithLogger(s.log.With(logging.String("session", id.String())))),
		}
		s.entries[id] = e
		metrics.ActiveSessions.Set(float64(len(s.entries)))
	}
	e.lastSeen = s.now()
	s.mu.Unlock()

	e.load(ctx)
	return e.ctrl
}

// Evict drops sessions idle longer than the configured duration and returns how many went.
func (s *Sessions) Evict() int {
	cutoff := s.now().Add(-s.idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
			n++
		}
	}
	metrics.ActiveSessions.Set(float64(len(s.entries)))
	return n
}

// Len returns the number of sessions in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// run evicts idle sessions every interval until ctx is done.
func (s *Sessions) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				s.log.Debug("evicted idle sessions", logging.Int("count", n))
			}
		}
	}
}
