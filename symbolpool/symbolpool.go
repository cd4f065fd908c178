// Package symbolpool is the symbol table the object-file Shared-Library
// Primitive backend (objectlib.go) links newly loaded relocatable
// object files against. It is adapted from the teacher's pool.go:
// the same idea of a single shared symbol map that every loaded
// module both resolves against and contributes its own exported
// symbols back into, so later loads can call into earlier ones.
package symbolpool

import (
	"sync"

	"github.com/pkujhd/goloader"
)

// Pool is a process-wide, mutex-guarded goloader symbol table.
type Pool struct {
	mu      sync.RWMutex
	symbols map[string]uintptr
	seeded  bool
}

// New returns an empty pool. Call Seed before first use to populate
// it with the host binary's own exported runtime symbols.
func New() *Pool {
	return &Pool{symbols: make(map[string]uintptr)}
}

// Seed registers the host binary's own symbols into the pool exactly
// once, mirroring the teacher's global.go init() which calls
// goloader.RegSymbol(gob) at package load time. Later calls are no-ops.
func (p *Pool) Seed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seeded {
		return nil
	}
	if err := goloader.RegSymbol(p.symbols); err != nil {
		return err
	}
	p.seeded = true
	return nil
}

// RegisterTypes registers the concrete types values may need at link
// time (interfaces returned across the plugin boundary, etc), via
// goloader.RegTypes.
func (p *Pool) RegisterTypes(values ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	goloader.RegTypes(p.symbols, values...)
}

// Snapshot returns a shallow copy of the current symbol map, safe for
// a caller to hand to goloader.Load without risking concurrent
// mutation by another loader using the same pool.
func (p *Pool) Snapshot() map[string]uintptr {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]uintptr, len(p.symbols))
	for k, v := range p.symbols {
		out[k] = v
	}
	return out
}

// Merge folds newly-resolved symbols (typically a freshly loaded
// module's exported symbol table) into the pool, skipping any name
// already present so the first definition wins -- mirrors the
// teacher's Pool.register in pool.go.
func (p *Pool) Merge(syms map[string]uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, addr := range syms {
		if _, exists := p.symbols[name]; !exists {
			p.symbols[name] = addr
		}
	}
}

// Forget removes symbols that matched a now-unloaded module, mirroring
// the teacher's Pool.unregister -- only symbols whose current address
// still equals the one being forgotten are removed, so a symbol
// re-exported by a different still-live module is left alone.
func (p *Pool) Forget(syms map[string]uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, addr := range syms {
		if cur, ok := p.symbols[name]; ok && cur == addr {
			delete(p.symbols, name)
		}
	}
}

var (
	sharedOnce sync.Once
	sharedPool *Pool
)

// Shared returns the process-wide pool used by the default object
// backend, seeding it on first access.
func Shared() *Pool {
	sharedOnce.Do(func() {
		sharedPool = New()
		_ = sharedPool.Seed()
	})
	return sharedPool
}
