package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/superdango/ebom-lca/internal/must"
)

var ErrNotFound = errors.New("cache entry not found")

// DynamicValueFunc is stored instead of a value to have it computed on the first
// Get and refreshed every time the entry expires.
type DynamicValueFunc func(ctx context.Context) (any, error)

type entry struct {
	mu            sync.Mutex
	expiresAt     time.Time
	v             any
	fn            DynamicValueFunc
	cacheDuration time.Duration
}

func (e *entry) isExpired() bool {
	return time.Since(e.expiresAt) > 0
}

func (e *entry) isDynamic() bool {
	return e.fn != nil
}

func (e *entry) refresh(ctx context.Context) error {
	v, err := e.fn(ctx)
	if err != nil {
		return err
	}
	e.v = v
	e.expiresAt = time.Now().Add(e.cacheDuration)
	return nil
}

type Memory struct {
	m          *sync.Map
	defaultTTL time.Duration
}

// NewMemory returns a cache whose expired entries are swept every second until ctx is done.
func NewMemory(ctx context.Context, defaultTTL time.Duration) *Memory {
	cache := &Memory{
		m:          new(sync.Map),
		defaultTTL: defaultTTL,
	}

	go cache.expirerer(ctx)

	return cache
}

func (m *Memory) Set(ctx context.Context, k string, v any, ttl ...time.Duration) error {
	defaultTTL := m.defaultTTL
	if len(ttl) > 0 {
		defaultTTL = ttl[0]
	}

	if fn, ok := v.(DynamicValueFunc); ok {
		// store dynamic value as expired to force refresh on the first Get
		m.m.Store(k, &entry{
			expiresAt:     time.Time{},
			fn:            fn,
			cacheDuration: defaultTTL,
		})

		slog.Debug("new dynamic cache entry", "key", k)

		return nil
	}

	m.m.Store(k, &entry{
		expiresAt:     time.Now().Add(defaultTTL),
		v:             v,
		cacheDuration: defaultTTL,
	})

	slog.Debug("new cache entry", "key", k)
	return nil
}

func (m *Memory) GetOrSet(ctx context.Context, key string, valueFunc func(ctx context.Context) (any, error), ttl ...time.Duration) (v any, err error) {
	v, err = m.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		v, err = valueFunc(ctx)
		if err != nil {
			return nil, err
		}

		if err := m.Set(ctx, key, v, ttl...); err != nil {
			return nil, err
		}

		return v, nil
	}
	if err != nil {
		return nil, err
	}

	return v, nil
}

// Invalidate removes a static entry and forces a dynamic one to refresh on the next Get.
func (m *Memory) Invalidate(k string) {
	v, found := m.m.Load(k)
	if !found {
		return
	}

	entry, ok := v.(*entry)
	must.Assert(ok, "loaded value is not an entry")

	if !entry.isDynamic() {
		m.m.Delete(k)
		return
	}

	entry.mu.Lock()
	entry.expiresAt = time.Time{}
	entry.mu.Unlock()
}

func (m *Memory) Get(ctx context.Context, k string) (v any, err error) {
	v, found := m.m.Load(k)
	if !found {
		return nil, ErrNotFound
	}

	entry, ok := v.(*entry)
	must.Assert(ok, "loaded value is not an entry")

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.isExpired() && !entry.isDynamic() {
		slog.Debug("cache expired", "key", k)
		m.m.Delete(k)
		return nil, ErrNotFound
	}

	if entry.isExpired() && entry.isDynamic() {
		if err := entry.refresh(ctx); err != nil {
			return nil, err
		}
		slog.Debug("dynamic entry refreshed", "key", k)
	}

	return entry.v, nil
}

func (m *Memory) expirerer(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.m.Range(func(k, v any) bool {
			entry, ok := v.(*entry)
			must.Assert(ok, "loaded value is not an entry")

			entry.mu.Lock()
			defer entry.mu.Unlock()

			// dynamic entries are refreshed lazily by Get
			if entry.isExpired() && !entry.isDynamic() {
				slog.Debug("cache expired", "key", k)
				m.m.Delete(k)
			}

			return true
		})
	}
}
