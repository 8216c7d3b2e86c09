// internal/browser/jsbind/bundle.go
package jsbind

import (
	"sync/atomic"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
)

// slotCount is the number of private slots a bound object reserves. Slot 0 holds
// the foreign box; no other slot is defined.
const slotCount = 1

// Bundle pairs a node handle with the scope that guards it. Each bound object
// owns exactly one.
type Bundle struct {
	Node  dom.Handle
	Scope *dom.Scope
}

// foreignBox carries a bundle from creation to finalization. It is constructed
// only by newForeignBox and emptied only by reclaim, which succeeds once.
type foreignBox struct {
	bundle atomic.Pointer[Bundle]
	// finalize is the instance class hook. It must not reference the owning object.
	finalize FinalizeHook
}

func newForeignBox(b Bundle, finalize FinalizeHook) *foreignBox {
	box := &foreignBox{finalize: finalize}
	box.bundle.Store(&b)
	return box
}

// load returns the bundle without taking ownership.
func (f *foreignBox) load() (Bundle, bool) {
	b := f.bundle.Load()
	if b == nil {
		return Bundle{}, false
	}
	return *b, true
}

// reclaim moves the bundle out of the box. Only the first call gets it.
func (f *foreignBox) reclaim() (Bundle, bool) {
	b := f.bundle.Swap(nil)
	if b == nil {
		return Bundle{}, false
	}
	return *b, true
}
