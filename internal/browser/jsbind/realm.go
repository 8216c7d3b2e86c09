// internal/browser/jsbind/realm.go
package jsbind

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/layout"
)

// DefaultQueryTimeout bounds a layout round trip when Options leaves it unset.
const DefaultQueryTimeout = 250 * time.Millisecond

// LayoutQuerier answers content box queries. *layout.Task implements it.
type LayoutQuerier interface {
	QueryContentBox(ctx context.Context, h dom.Handle) (layout.Rect, error)
}

// Options tune a realm.
type Options struct {
	// QueryTimeout bounds each layout query issued by an accessor.
	QueryTimeout time.Duration
	// WidthOverflow decides what happens to out-of-range integer writes.
	WidthOverflow OverflowPolicy
	// InstanceClass selects the registered instance class for wrappers.
	InstanceClass string
}

// Stats counts bound objects over the life of a realm.
type Stats struct {
	Created   int64 `json:"created"`
	Finalized int64 `json:"finalized"`
	Live      int64 `json:"live"`
}

// Realm is one script global environment bound to one document. It installs the
// registry's prototypes into the VM, wraps nodes into script objects, and
// reclaims their bundles when the collector frees them.
type Realm struct {
	vm       *goja.Runtime
	registry *Registry
	doc      *dom.Document
	layout   LayoutQuerier
	logger   *zap.Logger
	opts     Options

	protos map[string]*goja.Object
	slots  [slotCount]*goja.Symbol

	ctxMu sync.Mutex
	ctx   context.Context

	created   atomic.Int64
	finalized atomic.Int64
	closed    atomic.Bool
}

// NewRealm installs registry into vm and binds it to doc. querier may be nil, in
// which case every node reads as not rendered.
func NewRealm(vm *goja.Runtime, registry *Registry, doc *dom.Document, querier LayoutQuerier, logger *zap.Logger, opts Options) (*Realm, error) {
	if vm == nil || registry == nil || doc == nil {
		return nil, fmt.Errorf("jsbind: realm requires a runtime, a registry and a document")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.InstanceClass == "" {
		opts.InstanceClass = DefaultInstanceClass
	}

	r := &Realm{
		vm:       vm,
		registry: registry,
		doc:      doc,
		layout:   querier,
		logger:   logger.Named("jsbind"),
		opts:     opts,
		ctx:      context.Background(),
	}
	r.slots[0] = goja.NewSymbol("[[Bundle]]")

	protos, err := registry.install(r)
	if err != nil {
		return nil, fmt.Errorf("failed to install registry: %w", err)
	}
	r.protos = protos
	r.logger.Debug("Realm initialized", zap.Int("interfaces", len(protos)), zap.String("overflow", opts.WidthOverflow.String()))
	return r, nil
}

// VM returns the runtime the realm is installed in.
func (r *Realm) VM() *goja.Runtime { return r.vm }

// Document returns the bound document.
func (r *Realm) Document() *dom.Document { return r.doc }

// Registry returns the registry installed in this realm.
func (r *Realm) Registry() *Registry { return r.registry }

// Prototype returns the prototype object of an interface.
func (r *Realm) Prototype(name string) (*goja.Object, bool) {
	p, ok := r.protos[name]
	return p, ok
}

// BindContext makes ctx the parent of layout queries issued by accessors until
// the returned function is called.
func (r *Realm) BindContext(ctx context.Context) func() {
	r.ctxMu.Lock()
	prev := r.ctx
	r.ctx = ctx
	r.ctxMu.Unlock()
	return func() {
		r.ctxMu.Lock()
		r.ctx = prev
		r.ctxMu.Unlock()
	}
}

func (r *Realm) queryContext() (context.Context, context.CancelFunc) {
	r.ctxMu.Lock()
	parent := r.ctx
	r.ctxMu.Unlock()
	return context.WithTimeout(parent, r.opts.QueryTimeout)
}

// Wrap creates a script object for the element named by h. Each call creates a
// new object that owns a new bundle.
func (r *Realm) Wrap(h dom.Handle) (*goja.Object, error) {
	if r.closed.Load() {
		return nil, ErrRealmClosed
	}

	var (
		iface     string
		isElement bool
	)
	err := r.doc.Scope().Read(h, func(n dom.Node) {
		el, ok := n.Element()
		if !ok {
			return
		}
		isElement = true
		iface = InterfaceFor(el.Kind())
	})
	if err != nil {
		return nil, err
	}
	if !isElement {
		return nil, ErrNotElement
	}

	obj, err := r.instantiate(iface)
	if err != nil {
		return nil, err
	}
	if err := r.bind(obj, iface, Bundle{Node: h, Scope: r.doc.Scope()}); err != nil {
		return nil, err
	}
	return obj, nil
}

// WrapValue is Wrap for script-facing callers: a zero handle maps to null.
func (r *Realm) WrapValue(h dom.Handle) (goja.Value, error) {
	if h.IsZero() {
		return goja.Null(), nil
	}
	obj, err := r.Wrap(h)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (r *Realm) instantiate(iface string) (*goja.Object, error) {
	proto, ok := r.protos[iface]
	if !ok {
		return nil, &InstantiationError{Interface: iface, Err: ErrUnknownInterface}
	}
	obj := r.vm.NewObject()
	if err := obj.SetPrototype(proto); err != nil {
		return nil, &InstantiationError{Interface: iface, Err: err}
	}
	return obj, nil
}

// bind moves b into obj's private slot, registers its reclamation with the
// collector, and materializes per-instance properties.
func (r *Realm) bind(obj *goja.Object, iface string, b Bundle) error {
	hook, ok := r.registry.finalizer(r.opts.InstanceClass)
	if !ok {
		return &InstantiationError{Interface: iface, Err: fmt.Errorf("%w: %s", ErrUnknownClass, r.opts.InstanceClass)}
	}

	box := newForeignBox(b, hook)
	r.created.Add(1)
	err := obj.DefineDataPropertySymbol(r.slots[0], r.vm.ToValue(box), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	if err != nil {
		// The slot never took ownership; release through the same path the
		// collector uses so the counters stay balanced.
		r.finalize(box)
		return &InstantiationError{Interface: iface, Err: err}
	}
	runtime.AddCleanup(obj, r.finalize, box)

	c := &Call{Realm: r, This: obj, Bundle: b}
	for _, p := range r.registry.instanceProperties(iface) {
		if p.flags.Has(FlagNativeAccessor) {
			if err := r.defineAccessor(obj, iface, p); err != nil {
				return &InstantiationError{Interface: iface, Err: err}
			}
			continue
		}
		v, err := p.get(c)
		if err != nil {
			return &InstantiationError{Interface: iface, Err: fmt.Errorf("evaluating %s: %w", p.name, err)}
		}
		enumerable := goja.FLAG_FALSE
		if p.flags.Has(FlagEnumerable) {
			enumerable = goja.FLAG_TRUE
		}
		if err := obj.DefineDataProperty(p.name, v, goja.FLAG_FALSE, goja.FLAG_FALSE, enumerable); err != nil {
			return &InstantiationError{Interface: iface, Err: err}
		}
	}
	return nil
}

// finalize runs on the collector's cleanup goroutine. It only performs atomic
// operations and the class hook.
func (r *Realm) finalize(box *foreignBox) {
	b, ok := box.reclaim()
	if !ok {
		return
	}
	r.finalized.Add(1)
	if box.finalize != nil {
		box.finalize(b)
	}
}

// unwrap finds the bundle owned by v. Only an own slot counts: an object whose
// prototype is a bound object is not itself bound.
func (r *Realm) unwrap(v goja.Value) (*goja.Object, Bundle, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, Bundle{}, ErrNoReceiver
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, Bundle{}, ErrNoReceiver
	}
	for _, sym := range obj.Symbols() {
		if sym != r.slots[0] {
			continue
		}
		box, ok := obj.GetSymbol(sym).Export().(*foreignBox)
		if !ok {
			break
		}
		b, ok := box.load()
		if !ok {
			break
		}
		return obj, b, nil
	}
	return obj, Bundle{}, ErrNotBound
}

// Unwrap returns the node handle bound to a script value.
func (r *Realm) Unwrap(v goja.Value) (dom.Handle, error) {
	_, b, err := r.unwrap(v)
	if err != nil {
		return dom.Handle{}, err
	}
	return b.Node, nil
}

// Stats returns creation and finalization counters.
func (r *Realm) Stats() Stats {
	finalized := r.finalized.Load()
	created := r.created.Load()
	return Stats{Created: created, Finalized: finalized, Live: created - finalized}
}

// Close stops the realm from creating further objects. Objects already created
// are still reclaimed by the collector.
func (r *Realm) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRealmClosed
	}
	s := r.Stats()
	r.logger.Debug("Realm closed", zap.Int64("created", s.Created), zap.Int64("finalized", s.Finalized))
	return nil
}

// throw converts an accessor error into a script exception. It does not return.
func (r *Realm) throw(iface, name string, err error) {
	var mismatch *VariantMismatchError
	var domErr *dom.DOMError
	switch {
	case errors.As(err, &mismatch):
		r.logger.Warn("Accessor invoked on mismatched variant",
			zap.String("interface", iface), zap.String("property", name), zap.Error(err))
		panic(r.vm.NewTypeError("%s", err.Error()))
	case errors.Is(err, ErrOutOfRange):
		panic(r.newError("RangeError", err.Error()))
	case errors.As(err, &domErr):
		ex := r.newError("Error", domErr.Message)
		_ = ex.Set("name", domErr.Name)
		panic(ex)
	case errors.Is(err, dom.ErrStaleHandle), errors.Is(err, ErrNotBound):
		panic(r.vm.NewTypeError("%s", err.Error()))
	default:
		panic(r.vm.NewGoError(err))
	}
}

func (r *Realm) newError(ctorName, msg string) *goja.Object {
	ex, err := r.vm.New(r.vm.Get(ctorName), r.vm.ToValue(msg))
	if err != nil {
		return r.vm.NewGoError(errors.New(msg))
	}
	return ex
}
