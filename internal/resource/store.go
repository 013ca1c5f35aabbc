// Package resource is the console's read-through cache of backend resources.
//
// Every resource lives under one key in a shared Store. Reads go through a
// Query, which serves fresh data from the cache, serves stale data while it
// revalidates in the background, and collapses concurrent fetches of the same
// key. Writes never touch the cache directly: callers Invalidate the keys they
// affected and the next read refetches.
package resource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/larksync/larksync-console/internal/larkapi"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCapacity    = 256
	backgroundDeadline = 30 * time.Second
)

type entry struct {
	value     any
	err       string
	fetchedAt time.Time
	hasValue  bool
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries *lru.Cache[string, *entry]
	gens    map[string]uint64
	group   singleflight.Group
	now     func() time.Time
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	// lru.New only fails for a non-positive size
	entries, _ := lru.New[string, *entry](capacity)

	return &Store{
		entries: entries,
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

// Invalidate drops the cached data for keys. A fetch already in flight for
// one of them will not write its result back.
func (s *Store) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		s.gens[k]++
		s.entries.Remove(k)
	}
}

func (s *Store) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[key]
}

func (s *Store) load(key string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Get(key)
}

// commit stores e unless key was invalidated after gen was read.
func (s *Store) commit(key string, gen uint64, e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[key] != gen {
		return false
	}
	s.entries.Add(key, e)
	return true
}

// State is what a surface renders for one resource.
type State[T any] struct {
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	// Loaded is false until one fetch has succeeded.
	Loaded bool `json:"loaded"`
	// Stale is true when Data is older than the query's stale time.
	Stale bool `json:"stale"`
}

// Fetcher loads one resource from the backend.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Query reads one key of a Store.
type Query[T any] struct {
	store     *Store
	key       string
	staleTime time.Duration
	fetch     Fetcher[T]
}

func NewQuery[T any](store *Store, key string, staleTime time.Duration, fetch Fetcher[T]) *Query[T] {
	return &Query[T]{
		store:     store,
		key:       key,
		staleTime: staleTime,
		fetch:     fetch,
	}
}

func (q *Query[T]) Key() string {
	return q.key
}

// Get returns cached data when fresh. Stale data is returned immediately and
// refreshed in the background. With nothing cached, or only a stale error,
// Get fetches and waits.
func (q *Query[T]) Get(ctx context.Context) State[T] {
	if e, ok := q.store.load(q.key); ok {
		st := q.state(e)
		if !st.Stale {
			return st
		}
		if !e.hasValue {
			return q.Refetch(ctx)
		}
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), backgroundDeadline)
			defer cancel()
			q.Refetch(bg)
		}()
		return st
	}
	return q.Refetch(ctx)
}

// Peek returns whatever is cached without fetching.
func (q *Query[T]) Peek() State[T] {
	if e, ok := q.store.load(q.key); ok {
		return q.state(e)
	}
	return State[T]{}
}

// Refetch always goes to the backend, sharing the call with any concurrent
// Refetch of the same key and generation. The shared fetch outlives ctx: a
// caller that gives up gets what is cached and the result still lands in the
// store for everyone else.
func (q *Query[T]) Refetch(ctx context.Context) State[T] {
	gen := q.store.generation(q.key)
	flightKey := fmt.Sprintf("%s#%d", q.key, gen)

	ch := q.store.group.DoChan(flightKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backgroundDeadline)
		defer cancel()

		data, err := q.fetch(fetchCtx)

		prev, hadPrev := q.store.load(q.key)
		e := &entry{fetchedAt: q.store.now()}
		if err != nil {
			e.err = larkapi.ErrorMessage(err)
			// keep showing the last good data next to the error
			if hadPrev && prev.hasValue {
				e.value = prev.value
				e.hasValue = true
				e.fetchedAt = prev.fetchedAt
			}
			slog.Debug("resource fetch failed", "key", q.key, "error", err)
		} else {
			e.value = data
			e.hasValue = true
		}

		if !q.store.commit(q.key, gen, e) {
			slog.Debug("resource result superseded", "key", q.key)
		}
		return e, nil
	})

	select {
	case res := <-ch:
		return q.state(res.Val.(*entry))
	case <-ctx.Done():
		st := q.Peek()
		if st.Error == "" {
			st.Error = ctx.Err().Error()
		}
		return st
	}
}

// Patch rewrites the cached value in place without a refetch. It is a no-op
// when nothing is cached.
func (q *Query[T]) Patch(fn func(T) T) bool {
	s := q.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(q.key)
	if !ok || !e.hasValue {
		return false
	}
	cur, _ := e.value.(T)
	s.entries.Add(q.key, &entry{
		value:     fn(cur),
		err:       e.err,
		fetchedAt: e.fetchedAt,
		hasValue:  true,
	})
	return true
}

func (q *Query[T]) state(e *entry) State[T] {
	st := State[T]{
		Error: e.err,
		// an error with no data ages out like data does, so it gets retried
		Stale: q.store.now().Sub(e.fetchedAt) >= q.staleTime,
	}
	if e.hasValue {
		st.Data, _ = e.value.(T)
		st.Loaded = true
		st.UpdatedAt = e.fetchedAt
	}
	return st
}
