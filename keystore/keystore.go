package keystore

import (
	"context"
	"sync"

	"github.com/corvidwing/dispatch/routeerr"
)

// future holds the memoized outcome of one KeyFunction evaluation, shared
// across every caller that asks for the same id within one event.
type future struct {
	done  chan struct{}
	value any
	err   error
}

// KeyStore is the per-event memoization map described in spec §4.1. The
// zero value is not usable; construct with New.
type KeyStore struct {
	mu      sync.Mutex
	futures map[any]*future
	values  map[any]any // alias-published and directly-set values
}

// New creates a KeyStore seeded with the given alias->value items (the
// Python implementation seeds {event, source, bot} this way).
func New(seed map[any]any) *KeyStore {
	s := &KeyStore{
		futures: make(map[any]*future),
		values:  make(map[any]any, len(seed)),
	}
	for k, v := range seed {
		s.values[k] = v
	}
	return s
}

// Lookup fetches a directly-set or alias-published value by plain key,
// without going through KeyFunction evaluation. The bool reports presence.
func (s *KeyStore) Lookup(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a plain value directly, bypassing KeyFunction memoization.
// Used to seed well-known keys such as the wakeup-candidates list.
func (s *KeyStore) Set(key any, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Get evaluates kf at most once per event: the first caller for a given
// kf.ID() starts the computation and every later caller (including
// concurrent ones) awaits the same result. When the future resolves and
// kf.Alias() names a plain (non-KeyFunction) key, the value is also
// published under that alias for direct Lookup.
func Get[T any](ctx context.Context, s *KeyStore, kf KeyFunction[T], args *RouteArgs) (T, error) {
	var zero T

	s.mu.Lock()
	id := kf.ID()
	f, started := s.futures[id]
	if !started {
		f = &future{done: make(chan struct{})}
		s.futures[id] = f
	}
	s.mu.Unlock()

	if !started {
		go func() {
			v, err := kf.Call(ctx, args, s)
			f.value = v
			f.err = classifyErr(err)
			alias := kf.Alias()
			_, aliasIsKeyFunction := alias.(interface {
				ID() any
				Alias() any
			})
			if err == nil && alias != nil && !aliasIsKeyFunction {
				s.mu.Lock()
				s.values[alias] = v
				s.mu.Unlock()
			}
			close(f.done)
		}()
	}

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-f.done:
	}

	if f.err != nil {
		return zero, f.err
	}
	v, ok := f.value.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}

// classifyErr implements spec §4.1's error contract: a route exception
// passes through unchanged; any other error is wrapped as Internal.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*routeerr.Exception); ok {
		return err
	}
	if _, ok := err.(*routeerr.Internal); ok {
		return err
	}
	if _, ok := err.(*routeerr.Filtered); ok {
		return err
	}
	return routeerr.NewInternal(err)
}
