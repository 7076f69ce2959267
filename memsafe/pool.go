// Package memsafe provides the resource-lifetime layer used by the
// validation engine: typed object pools, allocation tracking with leak
// detection, and weak-reference registries for breaking reference
// cycles between cached compiled schemas/rules.
package memsafe

import "sync"

// Pool is a typed wrapper over sync.Pool, the same reuse idiom the
// teacher uses for jsonParserPool and bufferPool
// (jsonschema/v2/parser.go, jsonschema/v2/cache.go), generalized here
// to any resettable type rather than one hard-coded per call site.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(*T)
}

// NewPool returns a Pool that creates new values with newFn and, on
// Put, runs reset (if non-nil) before returning the value to the
// underlying sync.Pool — the same Reset-before-Put discipline
// jsonParserPool's Put wrapper uses.
func NewPool[T any](newFn func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		pool:  sync.Pool{New: func() any { return newFn() }},
		reset: reset,
	}
}

// Get returns a pooled value, creating one if the pool is empty.
func (p *Pool[T]) Get() *T {
	return p.pool.Get().(*T)
}

// Put resets v (if a reset function was supplied) and returns it to
// the pool.
func (p *Pool[T]) Put(v *T) {
	if p.reset != nil {
		p.reset(v)
	}
	p.pool.Put(v)
}

// cleanupCallback is run once when a ScopedPool is cleared, the Go
// analogue of memory_safety.rs's boxed FnOnce CleanupCallback.
type cleanupCallback func()

// ScopedPool groups resources allocated during one logical operation
// (one Validate/ValidateCollection call, one schema compile) so they
// can all be released together, plus cleanup callbacks run on release.
// Grounded on original_source/.../memory_safety.rs's ScopedMemoryPool:
// Rust's Drop-triggered release becomes an explicit Clear call here,
// since Go has no destructors.
type ScopedPool struct {
	id        string
	mu        sync.Mutex
	resources []any
	callbacks []cleanupCallback
	parent    *ScopedPool
}

// NewScopedPool returns a root ScopedPool identified by id.
func NewScopedPool(id string) *ScopedPool {
	return &ScopedPool{id: id}
}

// Child returns a new ScopedPool scoped under p, mirroring
// ScopedMemoryPool::child.
func (p *ScopedPool) Child(id string) *ScopedPool {
	return &ScopedPool{id: id, parent: p}
}

// Allocate registers resource as belonging to this pool and returns it
// unchanged, so a caller can both track and use the same value.
func (p *ScopedPool) Allocate(resource any) any {
	p.mu.Lock()
	p.resources = append(p.resources, resource)
	p.mu.Unlock()
	return resource
}

// OnClear registers a callback to run when Clear is called.
func (p *ScopedPool) OnClear(cb func()) {
	p.mu.Lock()
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}

// Clear releases every tracked resource and runs every registered
// cleanup callback exactly once, mirroring ScopedMemoryPool::clear.
func (p *ScopedPool) Clear() {
	p.mu.Lock()
	p.resources = nil
	callbacks := p.callbacks
	p.callbacks = nil
	p.mu.Unlock()
	for _, cb := range callbacks {
		cb()
	}
}

// ID returns the pool's identifier.
func (p *ScopedPool) ID() string { return p.id }
