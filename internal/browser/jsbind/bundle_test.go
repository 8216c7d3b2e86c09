// internal/browser/jsbind/bundle_test.go
package jsbind

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
)

func TestForeignBox_ReclaimOnce(t *testing.T) {
	box := newForeignBox(Bundle{Node: dom.Handle{ID: 7}}, nil)

	var wins atomic.Int32
	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			if b, ok := box.reclaim(); ok {
				assert.Equal(t, dom.NodeID(7), b.Node.ID)
				wins.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())

	_, ok := box.load()
	assert.False(t, ok, "box must be empty after reclaim")
}

func TestRealm_FinalizeRunsHookOnce(t *testing.T) {
	var hooked atomic.Int32
	reg, err := DefaultRegistry(func(Bundle) { hooked.Add(1) })
	require.NoError(t, err)
	doc, err := dom.ParseString(`<html><body><div id="a"></div></body></html>`)
	require.NoError(t, err)
	realm, err := NewRealm(goja.New(), reg, doc, nil, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)

	box := newForeignBox(Bundle{Node: doc.Root(), Scope: doc.Scope()}, func(Bundle) { hooked.Add(1) })
	realm.finalize(box)
	realm.finalize(box)

	assert.Equal(t, int32(1), hooked.Load())
	assert.Equal(t, int64(1), realm.Stats().Finalized)
}

func TestBind_SlotFailureReleasesBundleOnce(t *testing.T) {
	var hooked atomic.Int32
	reg, err := DefaultRegistry(func(Bundle) { hooked.Add(1) })
	require.NoError(t, err)
	doc, err := dom.ParseString(`<html><body><div id="a"></div></body></html>`)
	require.NoError(t, err)
	vm := goja.New()
	realm, err := NewRealm(vm, reg, doc, nil, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)

	a, _ := doc.ElementByID("a")
	obj, err := realm.instantiate(HTMLElementInterface)
	require.NoError(t, err)
	require.NoError(t, vm.Set("o", obj))
	_, err = vm.RunString(`Object.preventExtensions(o)`)
	require.NoError(t, err)

	err = realm.bind(obj, HTMLElementInterface, Bundle{Node: a, Scope: doc.Scope()})
	var instErr *InstantiationError
	require.True(t, errors.As(err, &instErr), "got %v", err)
	assert.Equal(t, HTMLElementInterface, instErr.Interface)

	assert.Equal(t, Stats{Created: 1, Finalized: 1, Live: 0}, realm.Stats())
	assert.Equal(t, int32(1), hooked.Load())

	_, _, err = realm.unwrap(obj)
	assert.ErrorIs(t, err, ErrNotBound)
}

// Bundles reaching a non-element are not produced by Wrap, but the tagName getter
// still answers null for them instead of failing.
func TestGetTagName_NonElementIsNull(t *testing.T) {
	reg, err := DefaultRegistry(nil)
	require.NoError(t, err)
	doc, err := dom.ParseString(`<html><body><p id="p">text</p></body></html>`)
	require.NoError(t, err)
	vm := goja.New()
	realm, err := NewRealm(vm, reg, doc, nil, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)

	p, ok := doc.ElementByID("p")
	require.True(t, ok)
	var text dom.Handle
	require.NoError(t, doc.Scope().Read(p, func(n dom.Node) {
		text = n.ChildNodes()[0].Handle()
	}))

	obj, err := realm.instantiate(HTMLElementInterface)
	require.NoError(t, err)
	require.NoError(t, realm.bind(obj, HTMLElementInterface, Bundle{Node: text, Scope: doc.Scope()}))
	require.NoError(t, vm.Set("t", obj))

	v, err := vm.RunString(`t.tagName`)
	require.NoError(t, err)
	assert.True(t, goja.IsNull(v))

	// Element-only mutation through the same bundle surfaces as a TypeError.
	_, err = vm.RunString(`t.setAttribute("x", "1")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TypeError")
}

func TestUnwrap_OwnSlotOnly(t *testing.T) {
	reg, err := DefaultRegistry(nil)
	require.NoError(t, err)
	doc, err := dom.ParseString(`<html><body><div id="a"></div></body></html>`)
	require.NoError(t, err)
	vm := goja.New()
	realm, err := NewRealm(vm, reg, doc, nil, zaptest.NewLogger(t), Options{})
	require.NoError(t, err)

	a, _ := doc.ElementByID("a")
	obj, err := realm.Wrap(a)
	require.NoError(t, err)

	_, b, err := realm.unwrap(obj)
	require.NoError(t, err)
	assert.Equal(t, a, b.Node)

	require.NoError(t, vm.Set("el", obj))
	child, err := vm.RunString(`Object.create(el)`)
	require.NoError(t, err)
	_, _, err = realm.unwrap(child)
	assert.ErrorIs(t, err, ErrNotBound)

	_, _, err = realm.unwrap(goja.Undefined())
	assert.ErrorIs(t, err, ErrNoReceiver)
	_, _, err = realm.unwrap(vm.ToValue("str"))
	assert.ErrorIs(t, err, ErrNoReceiver)
}
