// internal/browser/jsbind/registry.go
package jsbind

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// PropertyFlags control how a property is materialized.
type PropertyFlags uint8

const (
	// FlagEnumerable makes the property visible to for-in and Object.keys.
	FlagEnumerable PropertyFlags = 1 << iota
	// FlagShared defines the property once on the interface prototype. Without it
	// the property is defined on every instance at creation.
	FlagShared
	// FlagNativeAccessor computes the value on each access. Without it the getter
	// runs once at creation and the result is stored as a read-only data property.
	FlagNativeAccessor
)

// Has reports whether all bits of f are set.
func (p PropertyFlags) Has(f PropertyFlags) bool { return p&f == f }

// Getter produces a property value for a bound receiver.
type Getter func(c *Call) (goja.Value, error)

// Setter stores a property value through a bound receiver.
type Setter func(c *Call, v goja.Value) error

// Method implements a prototype function for a bound receiver.
type Method func(c *Call, args []goja.Value) (goja.Value, error)

// FinalizeHook runs after a bundle has been reclaimed. It runs on the collector's
// cleanup goroutine: it must not block and must not touch the script runtime.
type FinalizeHook func(b Bundle)

// InterfaceHandle names a registered interface. The zero value names nothing.
type InterfaceHandle struct {
	idx  int
	name string
}

// Name returns the interface name.
func (h InterfaceHandle) Name() string { return h.name }

// IsZero reports whether the handle is unset.
func (h InterfaceHandle) IsZero() bool { return h.idx == 0 }

type propertyDesc struct {
	name  string
	get   Getter
	set   Setter
	flags PropertyFlags
}

type methodDesc struct {
	name string
	fn   Method
}

type interfaceDesc struct {
	name       string
	parent     int // index of the parent, 0 for none
	properties []propertyDesc
	methods    []methodDesc
	names      map[string]struct{}
}

// Registry holds interface descriptors and instance classes. It is built once,
// frozen, and then installed into any number of realms.
type Registry struct {
	mu      sync.RWMutex
	ifaces  []*interfaceDesc // slot 0 unused
	byName  map[string]int
	classes map[string]FinalizeHook
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ifaces:  []*interfaceDesc{nil},
		byName:  make(map[string]int),
		classes: make(map[string]FinalizeHook),
	}
}

// DefineInterface registers name with an optional parent. The parent must already
// be registered; the new prototype chain extends the parent's.
func (r *Registry) DefineInterface(name, parent string) (InterfaceHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return InterfaceHandle{}, ErrRegistryFrozen
	}
	if name == "" {
		return InterfaceHandle{}, fmt.Errorf("%w: empty interface name", ErrInvalidDescriptor)
	}
	if _, exists := r.byName[name]; exists {
		return InterfaceHandle{}, fmt.Errorf("%w: %s", ErrDuplicateInterface, name)
	}
	parentIdx := 0
	if parent != "" {
		idx, ok := r.byName[parent]
		if !ok {
			return InterfaceHandle{}, fmt.Errorf("%w: %s (parent of %s)", ErrUnknownParent, parent, name)
		}
		parentIdx = idx
	}

	idx := len(r.ifaces)
	r.ifaces = append(r.ifaces, &interfaceDesc{
		name:   name,
		parent: parentIdx,
		names:  make(map[string]struct{}),
	})
	r.byName[name] = idx
	return InterfaceHandle{idx: idx, name: name}, nil
}

// DefineAccessor attaches a native property descriptor to an interface.
func (r *Registry) DefineAccessor(h InterfaceHandle, name string, get Getter, set Setter, flags PropertyFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, err := r.mutableLocked(h)
	if err != nil {
		return err
	}
	switch {
	case name == "":
		return fmt.Errorf("%w: empty property name on %s", ErrInvalidDescriptor, h.name)
	case get == nil && set == nil:
		return fmt.Errorf("%w: %s.%s has neither getter nor setter", ErrInvalidDescriptor, h.name, name)
	case !flags.Has(FlagNativeAccessor) && flags.Has(FlagShared):
		return fmt.Errorf("%w: stored property %s.%s cannot be shared", ErrInvalidDescriptor, h.name, name)
	case !flags.Has(FlagNativeAccessor) && (get == nil || set != nil):
		return fmt.Errorf("%w: stored property %s.%s must be read-only with a getter", ErrInvalidDescriptor, h.name, name)
	}
	if _, dup := desc.names[name]; dup {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, h.name, name)
	}
	desc.names[name] = struct{}{}
	desc.properties = append(desc.properties, propertyDesc{name: name, get: get, set: set, flags: flags})
	return nil
}

// DefineMethod attaches a function to an interface prototype.
func (r *Registry) DefineMethod(h InterfaceHandle, name string, fn Method) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, err := r.mutableLocked(h)
	if err != nil {
		return err
	}
	if name == "" || fn == nil {
		return fmt.Errorf("%w: method on %s needs a name and a body", ErrInvalidDescriptor, h.name)
	}
	if _, dup := desc.names[name]; dup {
		return fmt.Errorf("%w: %s.%s", ErrDuplicateProperty, h.name, name)
	}
	desc.names[name] = struct{}{}
	desc.methods = append(desc.methods, methodDesc{name: name, fn: fn})
	return nil
}

// RegisterInstanceClass registers the concrete class used to create objects and
// the hook that runs once the bundle of such an object is reclaimed.
func (r *Registry) RegisterInstanceClass(className string, finalize FinalizeHook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}
	if className == "" {
		return fmt.Errorf("%w: empty class name", ErrInvalidDescriptor)
	}
	if _, exists := r.classes[className]; exists {
		return fmt.Errorf("%w: instance class %s", ErrDuplicateInterface, className)
	}
	r.classes[className] = finalize
	return nil
}

func (r *Registry) mutableLocked(h InterfaceHandle) (*interfaceDesc, error) {
	if r.frozen {
		return nil, ErrRegistryFrozen
	}
	if h.idx <= 0 || h.idx >= len(r.ifaces) || r.ifaces[h.idx].name != h.name {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterface, h.name)
	}
	return r.ifaces[h.idx], nil
}

// Freeze makes the registry immutable. Installing into a realm freezes it.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the handle of a registered interface.
func (r *Registry) Lookup(name string) (InterfaceHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byName[name]
	if !ok {
		return InterfaceHandle{}, false
	}
	return InterfaceHandle{idx: idx, name: name}, true
}

// Chain returns the prototype chain of name, leaf first.
func (r *Registry) Chain(name string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownInterface, name)
	}
	var chain []string
	for ; idx != 0; idx = r.ifaces[idx].parent {
		chain = append(chain, r.ifaces[idx].name)
	}
	return chain, nil
}

// Interfaces returns every registered interface name in registration order.
func (r *Registry) Interfaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ifaces)-1)
	for _, d := range r.ifaces[1:] {
		names = append(names, d.name)
	}
	return names
}

func (r *Registry) finalizer(className string) (FinalizeHook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.classes[className]
	return hook, ok
}

// instanceProperties returns the per-instance properties of name and its
// ancestors, root first.
func (r *Registry) instanceProperties(name string) []propertyDesc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var chain []*interfaceDesc
	for idx := r.byName[name]; idx != 0; idx = r.ifaces[idx].parent {
		chain = append(chain, r.ifaces[idx])
	}
	var props []propertyDesc
	for i := len(chain) - 1; i >= 0; i-- {
		for _, p := range chain[i].properties {
			if !p.flags.Has(FlagShared) {
				props = append(props, p)
			}
		}
	}
	return props
}

// install builds one prototype object per interface, linked to its parent's, and
// a global constructor per interface that refuses direct construction. Parents
// always precede children in r.ifaces, so a single pass suffices.
func (r *Registry) install(realm *Realm) (map[string]*goja.Object, error) {
	r.Freeze()

	r.mu.RLock()
	defer r.mu.RUnlock()

	vm := realm.vm
	protos := make(map[string]*goja.Object, len(r.ifaces))
	for _, desc := range r.ifaces[1:] {
		proto := vm.NewObject()
		if desc.parent != 0 {
			if err := proto.SetPrototype(protos[r.ifaces[desc.parent].name]); err != nil {
				return nil, fmt.Errorf("failed to link %s prototype: %w", desc.name, err)
			}
		}

		for _, p := range desc.properties {
			if !p.flags.Has(FlagShared) {
				continue
			}
			if err := realm.defineAccessor(proto, desc.name, p); err != nil {
				return nil, err
			}
		}
		for _, m := range desc.methods {
			fn := vm.ToValue(realm.nativeMethod(desc.name, m.name, m.fn))
			if err := proto.DefineDataProperty(m.name, fn, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
				return nil, fmt.Errorf("failed to define %s.%s: %w", desc.name, m.name, err)
			}
		}

		name := desc.name
		ctor := vm.ToValue(func(goja.ConstructorCall) *goja.Object {
			panic(vm.NewTypeError("Illegal constructor: %s", name))
		}).ToObject(vm)
		if err := ctor.DefineDataProperty("prototype", proto, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
			return nil, fmt.Errorf("failed to set %s.prototype: %w", name, err)
		}
		if err := proto.DefineDataProperty("constructor", ctor, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return nil, fmt.Errorf("failed to set %s.prototype.constructor: %w", name, err)
		}
		if err := vm.GlobalObject().Set(name, ctor); err != nil {
			return nil, fmt.Errorf("failed to expose %s: %w", name, err)
		}
		protos[name] = proto
	}
	return protos, nil
}
