// internal/browser/jsbind/interfaces.go
package jsbind

import (
	"fmt"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
)

// Interface names of the DOM class taxonomy.
const (
	NodeInterface              = "Node"
	ElementInterface           = "Element"
	HTMLElementInterface       = "HTMLElement"
	HTMLDivElementInterface    = "HTMLDivElement"
	HTMLScriptElementInterface = "HTMLScriptElement"
	HTMLHeadElementInterface   = "HTMLHeadElement"
	HTMLImageElementInterface  = "HTMLImageElement"

	// DefaultInstanceClass is the instantiable class every element wrapper uses.
	DefaultInstanceClass = "GenericElementInstance"
)

// PropertySpec is one row of the descriptor table.
type PropertySpec struct {
	Name  string
	Get   Getter
	Set   Setter
	Flags PropertyFlags
}

// MethodSpec is a prototype function in the descriptor table.
type MethodSpec struct {
	Name string
	Fn   Method
}

// InterfaceSpec describes one interface. Parent must appear earlier in the table.
type InterfaceSpec struct {
	Name       string
	Parent     string
	Properties []PropertySpec
	Methods    []MethodSpec
}

// InstanceClassSpec describes an instantiable class and its finalize hook.
type InstanceClassSpec struct {
	Name     string
	Finalize FinalizeHook
}

// interfaceTable is the static descriptor table of the element hierarchy.
var interfaceTable = []InterfaceSpec{
	{
		Name: NodeInterface,
		Methods: []MethodSpec{
			{Name: "appendChild", Fn: appendChild},
		},
	},
	{
		Name:   ElementInterface,
		Parent: NodeInterface,
		Properties: []PropertySpec{
			{Name: "tagName", Get: getTagName, Flags: FlagEnumerable | FlagShared | FlagNativeAccessor},
		},
		Methods: []MethodSpec{
			{Name: "getAttribute", Fn: getAttribute},
			{Name: "setAttribute", Fn: setAttribute},
			{Name: "hasAttribute", Fn: hasAttribute},
			{Name: "removeAttribute", Fn: removeAttribute},
		},
	},
	{Name: HTMLElementInterface, Parent: ElementInterface},
	{Name: HTMLDivElementInterface, Parent: HTMLElementInterface},
	{Name: HTMLScriptElementInterface, Parent: HTMLElementInterface},
	{Name: HTMLHeadElementInterface, Parent: HTMLElementInterface},
	{
		Name:   HTMLImageElementInterface,
		Parent: HTMLElementInterface,
		Properties: []PropertySpec{
			{Name: "width", Get: getWidth, Set: setWidth, Flags: FlagEnumerable | FlagShared | FlagNativeAccessor},
		},
	},
}

// variantInterfaces maps element variants to the interface their wrappers use.
var variantInterfaces = map[dom.ElementKind]string{
	dom.GenericElement: HTMLElementInterface,
	dom.DivElement:     HTMLDivElementInterface,
	dom.ScriptElement:  HTMLScriptElementInterface,
	dom.HeadElement:    HTMLHeadElementInterface,
	dom.ImageElement:   HTMLImageElementInterface,
}

// InterfaceFor returns the interface name used for wrappers of kind.
func InterfaceFor(kind dom.ElementKind) string {
	if name, ok := variantInterfaces[kind]; ok {
		return name
	}
	return HTMLElementInterface
}

// BuildRegistry compiles a descriptor table into a registry. Parents must precede
// children and names must be unique; the first violation is returned.
func BuildRegistry(specs []InterfaceSpec, classes ...InstanceClassSpec) (*Registry, error) {
	r := NewRegistry()
	for _, spec := range specs {
		h, err := r.DefineInterface(spec.Name, spec.Parent)
		if err != nil {
			return nil, err
		}
		for _, p := range spec.Properties {
			if err := r.DefineAccessor(h, p.Name, p.Get, p.Set, p.Flags); err != nil {
				return nil, err
			}
		}
		for _, m := range spec.Methods {
			if err := r.DefineMethod(h, m.Name, m.Fn); err != nil {
				return nil, err
			}
		}
	}
	for _, c := range classes {
		if err := r.RegisterInstanceClass(c.Name, c.Finalize); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry builds the element hierarchy with the default instance class.
// hook may be nil.
func DefaultRegistry(hook FinalizeHook) (*Registry, error) {
	r, err := BuildRegistry(interfaceTable, InstanceClassSpec{Name: DefaultInstanceClass, Finalize: hook})
	if err != nil {
		return nil, fmt.Errorf("failed to build default registry: %w", err)
	}
	r.Freeze()
	return r, nil
}
