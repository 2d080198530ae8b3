package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/vocaresume/vocaresume/router"
)

// RouterFactory builds the router for a new session.
type RouterFactory func(ctx context.Context, sessionID string, opts ...router.Option) *router.Router

// sessions owns one router per session and closes it after ttl of inactivity.
type sessions struct {
	cache    *ttlcache.Cache[string, *router.Router]
	factory  RouterFactory
	metrics  *metrics
	stopOnce sync.Once
}

func newSessions(ttl time.Duration, factory RouterFactory, m *metrics) *sessions {
	cache := ttlcache.New[string, *router.Router](
		ttlcache.WithTTL[string, *router.Router](ttl),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *router.Router]) {
		slog.Debug("session closed", "session", item.Key(), "reason", reason)
		if err := item.Value().Close(); err != nil {
			slog.Warn("failed to close session router", "session", item.Key(), "error", err)
		}
		m.sessions.Dec()
	})
	go cache.Start()
	return &sessions{cache: cache, factory: factory, metrics: m}
}

// create allocates a session id and builds its router.
func (s *sessions) create(ctx context.Context) string {
	id := uuid.NewString()
	r := s.factory(ctx, id, router.OnFallback(func(err error) {
		s.metrics.fallbacks.Inc()
	}))
	s.cache.Set(id, r, ttlcache.DefaultTTL)
	s.metrics.sessions.Inc()
	slog.Debug("session opened", "session", id, "backend", r.RoutingBackend())
	return id
}

// get returns the session's router and extends its lifetime.
func (s *sessions) get(id string) (*router.Router, bool) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (s *sessions) len() int {
	return s.cache.Len()
}

// close evicts every session, closing its router, and stops the expiry loop.
func (s *sessions) close() {
	s.stopOnce.Do(func() {
		s.cache.DeleteAll()
		s.cache.Stop()
	})
}
