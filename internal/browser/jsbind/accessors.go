// internal/browser/jsbind/accessors.go
package jsbind

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/layout"
)

// Call is the context handed to native property bodies.
type Call struct {
	Realm  *Realm
	This   *goja.Object
	Bundle Bundle
}

// VM returns the runtime of the call.
func (c *Call) VM() *goja.Runtime { return c.Realm.vm }

// --- Dispatch ---

// enter unwraps the receiver of a native call. A missing receiver is a call
// failure: the native returns undefined without running its body. A receiver
// without a bundle throws "Illegal invocation".
func (r *Realm) enter(this goja.Value, iface, name string) (*Call, bool) {
	obj, b, err := r.unwrap(this)
	switch {
	case errors.Is(err, ErrNoReceiver):
		r.logger.Debug("Native called without a receiver", zap.String("interface", iface), zap.String("property", name))
		return nil, false
	case err != nil:
		panic(r.vm.NewTypeError("Illegal invocation"))
	}
	return &Call{Realm: r, This: obj, Bundle: b}, true
}

func (r *Realm) nativeGetter(iface, name string, get Getter) func(goja.FunctionCall) goja.Value {
	return func(fc goja.FunctionCall) goja.Value {
		c, ok := r.enter(fc.This, iface, name)
		if !ok {
			return goja.Undefined()
		}
		v, err := get(c)
		if err != nil {
			r.throw(iface, name, err)
		}
		return v
	}
}

func (r *Realm) nativeSetter(iface, name string, set Setter) func(goja.FunctionCall) goja.Value {
	return func(fc goja.FunctionCall) goja.Value {
		c, ok := r.enter(fc.This, iface, name)
		if !ok {
			return goja.Undefined()
		}
		if err := set(c, fc.Argument(0)); err != nil {
			r.throw(iface, name, err)
		}
		return goja.Undefined()
	}
}

func (r *Realm) nativeMethod(iface, name string, fn Method) func(goja.FunctionCall) goja.Value {
	return func(fc goja.FunctionCall) goja.Value {
		c, ok := r.enter(fc.This, iface, name)
		if !ok {
			return goja.Undefined()
		}
		v, err := fn(c, fc.Arguments)
		if err != nil {
			r.throw(iface, name, err)
		}
		if v == nil {
			return goja.Undefined()
		}
		return v
	}
}

// defineAccessor installs p on target as an accessor property.
func (r *Realm) defineAccessor(target *goja.Object, iface string, p propertyDesc) error {
	getter, setter := goja.Undefined(), goja.Undefined()
	if p.get != nil {
		getter = r.vm.ToValue(r.nativeGetter(iface, p.name, p.get))
	}
	if p.set != nil {
		setter = r.vm.ToValue(r.nativeSetter(iface, p.name, p.set))
	}
	enumerable := goja.FLAG_FALSE
	if p.flags.Has(FlagEnumerable) {
		enumerable = goja.FLAG_TRUE
	}
	if err := target.DefineAccessorProperty(p.name, getter, setter, goja.FLAG_TRUE, enumerable); err != nil {
		return fmt.Errorf("failed to define %s.%s: %w", iface, p.name, err)
	}
	return nil
}

// --- Element ---

func getTagName(c *Call) (goja.Value, error) {
	var tag string
	isElement := false
	err := c.Bundle.Scope.Read(c.Bundle.Node, func(n dom.Node) {
		if el, ok := n.Element(); ok {
			tag, isElement = el.TagName(), true
		}
	})
	if err != nil {
		return nil, err
	}
	if !isElement {
		return goja.Null(), nil
	}
	return c.VM().ToValue(tag), nil
}

func getAttribute(c *Call, args []goja.Value) (goja.Value, error) {
	name := argString(args, 0)
	var (
		value string
		found bool
	)
	err := c.Bundle.Scope.Read(c.Bundle.Node, func(n dom.Node) {
		if el, ok := n.Element(); ok {
			value, found = el.Attribute(name)
		}
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return goja.Null(), nil
	}
	return c.VM().ToValue(value), nil
}

func hasAttribute(c *Call, args []goja.Value) (goja.Value, error) {
	name := argString(args, 0)
	found := false
	err := c.Bundle.Scope.Read(c.Bundle.Node, func(n dom.Node) {
		if el, ok := n.Element(); ok {
			_, found = el.Attribute(name)
		}
	})
	if err != nil {
		return nil, err
	}
	return c.VM().ToValue(found), nil
}

func setAttribute(c *Call, args []goja.Value) (goja.Value, error) {
	// Conversions may run script code; finish them before taking the write scope.
	name, value := argString(args, 0), argString(args, 1)
	return nil, c.Bundle.Scope.Write(c.Bundle.Node, func(n dom.Node) error {
		el, ok := n.Element()
		if !ok {
			return &VariantMismatchError{Property: "setAttribute", Want: ElementInterface, Got: n.Kind().String()}
		}
		return el.SetAttribute(name, value)
	})
}

func removeAttribute(c *Call, args []goja.Value) (goja.Value, error) {
	name := argString(args, 0)
	return nil, c.Bundle.Scope.Write(c.Bundle.Node, func(n dom.Node) error {
		el, ok := n.Element()
		if !ok {
			return &VariantMismatchError{Property: "removeAttribute", Want: ElementInterface, Got: n.Kind().String()}
		}
		return el.RemoveAttribute(name)
	})
}

func argString(args []goja.Value, i int) string {
	if i >= len(args) {
		return "undefined"
	}
	return args[i].String()
}

// --- HTMLImageElement ---

// imageVariant reports the receiver's variant name when it is not an image.
func imageVariant(n dom.Node) (string, bool) {
	el, ok := n.Element()
	if !ok {
		return n.Kind().String(), false
	}
	if el.Kind() != dom.ImageElement {
		return el.Kind().String(), false
	}
	return "", true
}

// getWidth reports the rendered content width. The variant is checked under the
// read scope, which is released before the layout round trip: the layout task
// reads the document itself and must not queue behind a writer waiting on us.
func getWidth(c *Call) (goja.Value, error) {
	var (
		got     string
		isImage bool
	)
	err := c.Bundle.Scope.Read(c.Bundle.Node, func(n dom.Node) {
		got, isImage = imageVariant(n)
	})
	if err != nil {
		return nil, err
	}
	if !isImage {
		return nil, &VariantMismatchError{Property: "width", Want: HTMLImageElementInterface, Got: got}
	}

	r := c.Realm
	if r.layout == nil {
		return c.VM().ToValue(0), nil
	}
	ctx, cancel := r.queryContext()
	defer cancel()

	rect, err := r.layout.QueryContentBox(ctx, c.Bundle.Node)
	if errors.Is(err, layout.ErrNotRendered) {
		if ce := r.logger.Check(zap.DebugLevel, "Width read on unrendered node"); ce != nil {
			path, _ := r.doc.XPathOf(c.Bundle.Node)
			ce.Write(zap.String("node", path), zap.Error(err))
		}
		return c.VM().ToValue(0), nil
	}
	if err != nil {
		return nil, err
	}
	return c.VM().ToValue(layoutWidth(rect.Width)), nil
}

// setWidth reflects the value into the width attribute. It never consults layout.
func setWidth(c *Call, v goja.Value) error {
	width, err := toWidth(v.ToFloat(), c.Realm.opts.WidthOverflow)
	if err != nil {
		return err
	}
	return c.Bundle.Scope.Write(c.Bundle.Node, func(n dom.Node) error {
		if got, ok := imageVariant(n); !ok {
			return &VariantMismatchError{Property: "width", Want: HTMLImageElementInterface, Got: got}
		}
		el, _ := n.Element()
		return el.SetAttribute("width", strconv.Itoa(int(width)))
	})
}
