package memsafe

import (
	"sync"
	"weak"
)

// weakHandle type-erases a weak.Pointer[T] so registries can hold
// references to values of different types under one map, the Go
// analogue of memory_safety.rs boxing every weak ref as
// Weak<dyn Any + Send + Sync>.
type weakHandle interface {
	upgrade() (any, bool)
}

type typedWeak[T any] struct{ ptr weak.Pointer[T] }

func (w typedWeak[T]) upgrade() (any, bool) {
	v := w.ptr.Value()
	if v == nil {
		return nil, false
	}
	return v, true
}

// WeakRegistry maps string keys to weak references, so that a caller
// can hold onto a compiled schema/rule set without keeping it alive
// once every strong reference elsewhere has been released.
// weak.Pointer/the runtime's GC-driven collection stand in for
// std::sync::Weak here: no third-party weak-reference library appears
// anywhere in the retrieved pack, so this is the one component built
// directly on the standard library rather than an ecosystem dependency
// (recorded as an Open Question decision, not a dropped dependency).
type WeakRegistry struct {
	entries sync.Map // string -> weakHandle
}

// NewWeakRegistry returns an empty WeakRegistry.
func NewWeakRegistry() *WeakRegistry { return &WeakRegistry{} }

// Register stores a weak reference to v under key, replacing any
// existing entry.
func Register[T any](r *WeakRegistry, key string, v *T) {
	r.entries.Store(key, typedWeak[T]{ptr: weak.Make(v)})
}

// Upgrade attempts to recover the strong value stored under key. It
// reports false if key was never registered or its value has since
// been garbage collected, mirroring try_upgrade.
func Upgrade[T any](r *WeakRegistry, key string) (*T, bool) {
	v, ok := r.entries.Load(key)
	if !ok {
		return nil, false
	}
	raw, ok := v.(weakHandle).upgrade()
	if !ok {
		return nil, false
	}
	typed, ok := raw.(*T)
	return typed, ok
}

// CleanupExpired removes every entry whose referent has already been
// collected, mirroring cleanup_weak_refs.
func (r *WeakRegistry) CleanupExpired() {
	r.entries.Range(func(k, v any) bool {
		if _, alive := v.(weakHandle).upgrade(); !alive {
			r.entries.Delete(k)
		}
		return true
	})
}

// CircularRefBreaker registers possibly-cyclic weak references under a
// shared key and lets a caller explicitly break the cycle, mirroring
// memory_safety.rs's CircularRefBreaker (one entry can hold several weak
// refs, e.g. a class and every ancestor that references it back through
// an is_a cycle guard).
type CircularRefBreaker struct {
	mu       sync.Mutex
	registry map[string][]weakHandle
}

// NewCircularRefBreaker returns an empty CircularRefBreaker.
func NewCircularRefBreaker() *CircularRefBreaker {
	return &CircularRefBreaker{registry: map[string][]weakHandle{}}
}

// RegisterRef adds a weak reference to v under key.
func RegisterRef[T any](b *CircularRefBreaker, key string, v *T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.registry[key] = append(b.registry[key], typedWeak[T]{ptr: weak.Make(v)})
}

// BreakCycles drops every reference registered under key.
func (b *CircularRefBreaker) BreakCycles(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.registry, key)
}

// Cleanup drops collected references from every key, and drops any key
// whose reference list has become empty, mirroring cleanup's
// retain-non-empty behavior.
func (b *CircularRefBreaker) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, refs := range b.registry {
		live := refs[:0]
		for _, ref := range refs {
			if _, alive := ref.upgrade(); alive {
				live = append(live, ref)
			}
		}
		if len(live) == 0 {
			delete(b.registry, key)
		} else {
			b.registry[key] = live
		}
	}
}
