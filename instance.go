package classloader

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// instanceHook is the "small holder attached to each outstanding
// instance" from spec §9's design note: it carries exactly one
// decrement obligation against the LoaderHandle that created it, and
// fires it at most once no matter how many Instance clones or
// finalizer passes observe it. This is what makes a lazy loader
// self-unloading -- when the last hook fires and the load count
// reaches zero, unloadLibrary tears the library down.
type instanceHook struct {
	loader *LoaderHandle
	once   sync.Once
}

func (h *instanceHook) release() {
	h.once.Do(func() {
		_ = h.loader.unloadLibrary()
	})
}

// Instance is a shared-ownership handle to a plugin-created value, as
// returned by CreateInstance. Clone records an additional holder;
// Release drops one. The library is only released back to the loader
// once every clone (and the original) has called Release -- Go has no
// deterministic destructors, so a finalizer is attached as a backstop
// in case a caller forgets, but callers should still call Release
// explicitly, the same way callers of os.File are expected to call
// Close rather than rely on the finalizer.
type Instance[Base any] struct {
	Value    Base
	hook     *instanceHook
	refs     *int32
	released int32
}

func newInstance[Base any](value Base, loader *LoaderHandle) *Instance[Base] {
	i := &Instance[Base]{Value: value, hook: &instanceHook{loader: loader}, refs: new(int32)}
	*i.refs = 1
	runtime.SetFinalizer(i, func(inst *Instance[Base]) { inst.Release() })
	return i
}

// Clone returns an additional handle sharing the same underlying
// release obligation; the loader is not released until every clone,
// and the original, have called Release.
func (i *Instance[Base]) Clone() *Instance[Base] {
	atomic.AddInt32(i.refs, 1)
	c := &Instance[Base]{Value: i.Value, hook: i.hook, refs: i.refs}
	runtime.SetFinalizer(c, func(inst *Instance[Base]) { inst.Release() })
	return c
}

// Release drops this handle's claim. Once the last outstanding clone
// releases, the loader's load count is decremented.
func (i *Instance[Base]) Release() {
	if !atomic.CompareAndSwapInt32(&i.released, 0, 1) {
		return
	}
	if atomic.AddInt32(i.refs, -1) <= 0 {
		i.hook.release()
	}
}

// UniqueInstance is an exclusive-ownership handle to a plugin-created
// value, as returned by CreateUniqueInstance. Unlike Instance it
// cannot be cloned: exactly one Release call (explicit or via the
// backstop finalizer) ties back to the loader's load count.
type UniqueInstance[Base any] struct {
	Value Base
	hook  *instanceHook
}

func newUniqueInstance[Base any](value Base, loader *LoaderHandle) *UniqueInstance[Base] {
	u := &UniqueInstance[Base]{Value: value, hook: &instanceHook{loader: loader}}
	runtime.SetFinalizer(u, func(inst *UniqueInstance[Base]) { inst.hook.release() })
	return u
}

// Release drops this handle's claim on the loader.
func (u *UniqueInstance[Base]) Release() {
	u.hook.release()
}
