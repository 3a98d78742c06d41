package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/myeasy-ai/fitquest/internal/app/engagement"
	"github.com/myeasy-ai/fitquest/internal/domain"
	"github.com/myeasy-ai/fitquest/internal/infra/metrics"
)

// DefaultCacheSize is the number of user sessions kept in memory.
const DefaultCacheSize = 1024

// evictFlushTimeout bounds the final save of an evicted session.
const evictFlushTimeout = 10 * time.Second

// loadTimeout bounds a shared first load. It does not follow the caller's
// cancellation, since other requests may be waiting on the same load.
const loadTimeout = 15 * time.Second

// ServiceFactory builds an unloaded Service for a user.
type ServiceFactory func(userID string) *engagement.Service

// Registry caches one loaded engagement.Service per user. Evicted sessions
// are flushed and closed in the background; a reload of the same user waits
// for that flush so it never reads a stale document.
type Registry struct {
	cache      *lru.Cache[string, *engagement.Service]
	loads      singleflight.Group
	newService ServiceFactory
	log        *slog.Logger

	mu      sync.Mutex
	closing map[string]chan struct{}
	wg      sync.WaitGroup
}

// NewRegistry creates a session cache holding up to size users.
func NewRegistry(size int, factory ServiceFactory, log *slog.Logger) (*Registry, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		newService: factory,
		log:        log.With("component", "sessions"),
		closing:    make(map[string]chan struct{}),
	}
	cache, err := lru.NewWithEvict[string, *engagement.Service](size, r.onEvict)
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Get returns the loaded session for userID, loading it on first use.
// Concurrent first requests for one user share a single load. A session
// whose store could not be read is returned degraded but never cached, so
// the next request reads the store again.
func (r *Registry) Get(ctx context.Context, userID string) (*engagement.Service, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUserID
	}
	if svc, ok := r.cache.Get(userID); ok {
		return svc, nil
	}

	v, err, _ := r.loads.Do(userID, func() (any, error) {
		if svc, ok := r.cache.Get(userID); ok {
			return svc, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		r.waitClosed(loadCtx, userID)

		svc := r.newService(userID)
		if err := svc.Load(loadCtx); err != nil {
			return nil, err
		}
		if svc.Degraded() {
			r.log.Warn("store unavailable, session not cached", "user_id", userID)
			return svc, nil
		}
		r.cache.Add(userID, svc)
		metrics.SessionsCached.Set(float64(r.cache.Len()))
		return svc, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*engagement.Service), nil
}

// Release ends a request's use of svc. Sessions the cache does not hold
// are flushed and closed here, since nothing else will.
func (r *Registry) Release(ctx context.Context, svc *engagement.Service) {
	if cached, ok := r.cache.Peek(svc.UserID()); ok && cached == svc {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evictFlushTimeout)
	defer cancel()
	svc.Close(ctx)
}

// Len returns the number of cached sessions.
func (r *Registry) Len() int { return r.cache.Len() }

// Evict drops a user's session after flushing it.
func (r *Registry) Evict(userID string) bool {
	ok := r.cache.Remove(userID)
	metrics.SessionsCached.Set(float64(r.cache.Len()))
	return ok
}

// Close flushes and drops every session.
func (r *Registry) Close() {
	r.cache.Purge()
	r.wg.Wait()
	metrics.SessionsCached.Set(0)
}

func (r *Registry) onEvict(userID string, svc *engagement.Service) {
	metrics.SessionEvictions.Inc()

	done := make(chan struct{})
	r.mu.Lock()
	r.closing[userID] = done
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			if r.closing[userID] == done {
				delete(r.closing, userID)
			}
			r.mu.Unlock()
			close(done)
		}()

		ctx, cancel := context.WithTimeout(context.Background(), evictFlushTimeout)
		defer cancel()
		if !svc.Close(ctx) {
			r.log.Warn("evicted session did not save cleanly", "user_id", userID,
				"error", svc.SaveStatus().LastError)
		}
	}()
}

func (r *Registry) waitClosed(ctx context.Context, userID string) {
	r.mu.Lock()
	done, ok := r.closing[userID]
	r.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}
