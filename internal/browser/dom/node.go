// internal/browser/dom/node.go
package dom

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeID indexes a node record in a Document arena. Zero is never assigned.
type NodeID uint32

// Handle is a non-owning reference to a node in a Document. It carries no access
// rights on its own; node data is reachable only through a Scope.
type Handle struct {
	ID NodeID
}

// IsZero reports whether the handle names no node.
func (h Handle) IsZero() bool {
	return h.ID == 0
}

// Kind is the node variant.
type Kind int

const (
	UnknownNode Kind = iota
	ElementNode
	TextNode
	CommentNode
	DocumentNode
	DoctypeNode
)

func (k Kind) String() string {
	switch k {
	case ElementNode:
		return "Element"
	case TextNode:
		return "Text"
	case CommentNode:
		return "Comment"
	case DocumentNode:
		return "Document"
	case DoctypeNode:
		return "DocumentType"
	default:
		return "Unknown"
	}
}

func kindOf(t html.NodeType) Kind {
	switch t {
	case html.ElementNode:
		return ElementNode
	case html.TextNode:
		return TextNode
	case html.CommentNode:
		return CommentNode
	case html.DocumentNode:
		return DocumentNode
	case html.DoctypeNode:
		return DoctypeNode
	default:
		return UnknownNode
	}
}

// ElementKind is the closed set of element variants the bindings distinguish.
type ElementKind int

const (
	GenericElement ElementKind = iota
	DivElement
	ScriptElement
	HeadElement
	ImageElement
)

func (k ElementKind) String() string {
	switch k {
	case DivElement:
		return "HTMLDivElement"
	case ScriptElement:
		return "HTMLScriptElement"
	case HeadElement:
		return "HTMLHeadElement"
	case ImageElement:
		return "HTMLImageElement"
	default:
		return "HTMLElement"
	}
}

func elementKindOf(n *html.Node) ElementKind {
	if n.Namespace != "" {
		return GenericElement
	}
	switch n.DataAtom {
	case atom.Div:
		return DivElement
	case atom.Script:
		return ScriptElement
	case atom.Head:
		return HeadElement
	case atom.Img:
		return ImageElement
	default:
		return GenericElement
	}
}

// Node is a view of a node record. It is only valid inside the Scope closure that
// produced it and must not be retained.
type Node struct {
	doc      *Document
	raw      *html.Node
	id       NodeID
	writable bool
}

// ID returns the arena ID of the node.
func (n Node) ID() NodeID { return n.id }

// Handle returns a handle naming this node.
func (n Node) Handle() Handle { return Handle{ID: n.id} }

// Kind returns the node variant.
func (n Node) Kind() Kind { return kindOf(n.raw.Type) }

// Element returns the element view, or false for non-element nodes.
func (n Node) Element() (Element, bool) {
	if n.raw.Type != html.ElementNode {
		return Element{}, false
	}
	return Element{n: n}, true
}

// Text returns the character data of text and comment nodes.
func (n Node) Text() string {
	switch n.raw.Type {
	case html.TextNode, html.CommentNode:
		return n.raw.Data
	}
	return ""
}

// Parent returns the parent view, or false for roots and detached nodes.
func (n Node) Parent() (Node, bool) {
	if n.raw.Parent == nil {
		return Node{}, false
	}
	return n.view(n.raw.Parent), true
}

// ChildNodes returns views of the children in document order.
func (n Node) ChildNodes() []Node {
	var children []Node
	for c := n.raw.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, n.view(c))
	}
	return children
}

func (n Node) view(raw *html.Node) Node {
	return Node{doc: n.doc, raw: raw, id: n.doc.ids[raw], writable: n.writable}
}

// Element is a view of an element node.
type Element struct {
	n Node
}

// Node returns the underlying node view.
func (e Element) Node() Node { return e.n }

// Kind returns the element variant.
func (e Element) Kind() ElementKind { return elementKindOf(e.n.raw) }

// LocalName returns the element's local name.
func (e Element) LocalName() string { return e.n.raw.Data }

// TagName returns the qualified name, uppercased for HTML elements.
func (e Element) TagName() string {
	if e.n.raw.Namespace == "" {
		return strings.ToUpper(e.n.raw.Data)
	}
	return e.n.raw.Data
}

// Attribute returns the attribute value and whether it is present.
func (e Element) Attribute(name string) (string, bool) {
	name = e.normalize(name)
	if !htmlquery.ExistsAttr(e.n.raw, name) {
		return "", false
	}
	return htmlquery.SelectAttr(e.n.raw, name), true
}

// SetAttribute sets or replaces an attribute. It requires a write scope.
func (e Element) SetAttribute(name, value string) error {
	if !e.n.writable {
		return ErrReadOnlyScope
	}
	if name == "" || strings.ContainsAny(name, " \t\n\f\r/>=\"'") {
		return ErrInvalidCharacter("invalid attribute name: " + name)
	}
	name = e.normalize(name)
	for i := range e.n.raw.Attr {
		if e.n.raw.Attr[i].Namespace == "" && e.n.raw.Attr[i].Key == name {
			e.n.raw.Attr[i].Val = value
			e.n.doc.bump()
			return nil
		}
	}
	e.n.raw.Attr = append(e.n.raw.Attr, html.Attribute{Key: name, Val: value})
	e.n.doc.bump()
	return nil
}

// RemoveAttribute removes an attribute if present. It requires a write scope.
func (e Element) RemoveAttribute(name string) error {
	if !e.n.writable {
		return ErrReadOnlyScope
	}
	name = e.normalize(name)
	attrs := e.n.raw.Attr[:0]
	removed := false
	for _, a := range e.n.raw.Attr {
		if a.Namespace == "" && a.Key == name {
			removed = true
			continue
		}
		attrs = append(attrs, a)
	}
	e.n.raw.Attr = attrs
	if removed {
		e.n.doc.bump()
	}
	return nil
}

// HTML attribute names are case-insensitive.
func (e Element) normalize(name string) string {
	if e.n.raw.Namespace == "" {
		return strings.ToLower(name)
	}
	return name
}
