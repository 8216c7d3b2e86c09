// internal/browser/jsbind/document.go
package jsbind

import (
	"errors"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
)

// NewDocumentObject builds the script-facing document object of the realm.
// Lookups return fresh wrappers; there is no identity map, so two lookups of the
// same node yield distinct objects.
func (r *Realm) NewDocumentObject() (*goja.Object, error) {
	d := r.vm.NewObject()

	getters := map[string]func() (dom.Handle, bool){
		"documentElement": r.doc.DocumentElement,
		"body":            r.doc.Body,
		"head":            r.doc.Head,
	}
	for name, lookup := range getters {
		getter := r.vm.ToValue(func(goja.FunctionCall) goja.Value {
			h, ok := lookup()
			if !ok {
				return goja.Null()
			}
			return r.wrapOrThrow("Document", h)
		})
		if err := d.DefineAccessorProperty(name, getter, goja.Undefined(), goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return nil, err
		}
	}

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"getElementById": func(fc goja.FunctionCall) goja.Value {
			h, ok := r.doc.ElementByID(fc.Argument(0).String())
			if !ok {
				return goja.Null()
			}
			return r.wrapOrThrow("getElementById", h)
		},
		"getElementsByTagName": func(fc goja.FunctionCall) goja.Value {
			return r.wrapList("getElementsByTagName", r.doc.ElementsByTagName(fc.Argument(0).String()))
		},
		"queryXPath": func(fc goja.FunctionCall) goja.Value {
			handles, err := r.doc.QueryXPath(fc.Argument(0).String())
			if err != nil {
				r.throw("Document", "queryXPath", err)
			}
			return r.wrapList("queryXPath", handles)
		},
		"createElement": func(fc goja.FunctionCall) goja.Value {
			h, err := r.doc.CreateElement(fc.Argument(0).String())
			if err != nil {
				r.throw("Document", "createElement", err)
			}
			return r.wrapOrThrow("createElement", h)
		},
	}
	for name, fn := range methods {
		if err := d.Set(name, fn); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// wrapOrThrow wraps h, turning failures into script exceptions.
func (r *Realm) wrapOrThrow(op string, h dom.Handle) goja.Value {
	obj, err := r.Wrap(h)
	if err != nil {
		r.logger.Debug("Failed to wrap node", zap.String("op", op), zap.Error(err))
		r.throw("Document", op, err)
	}
	return obj
}

// wrapList wraps element handles into an array, skipping non-elements.
func (r *Realm) wrapList(op string, handles []dom.Handle) goja.Value {
	values := make([]interface{}, 0, len(handles))
	for _, h := range handles {
		obj, err := r.Wrap(h)
		if errors.Is(err, ErrNotElement) {
			continue
		}
		if err != nil {
			r.throw("Document", op, err)
		}
		values = append(values, obj)
	}
	return r.vm.NewArray(values...)
}

// appendChild is Node.appendChild: it moves the bound argument under the receiver.
func appendChild(c *Call, args []goja.Value) (goja.Value, error) {
	if len(args) == 0 {
		return nil, ErrNotBound
	}
	_, child, err := c.Realm.unwrap(args[0])
	if err != nil {
		return nil, ErrNotBound
	}
	if err := c.Realm.doc.AppendChild(c.Bundle.Node, child.Node); err != nil {
		return nil, err
	}
	return args[0], nil
}
