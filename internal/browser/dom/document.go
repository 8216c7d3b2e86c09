// internal/browser/dom/document.go
package dom

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is an arena of node records backed by a parsed HTML tree. The tree is
// shared between the script thread and the layout task; all access goes through
// the document's Scope.
type Document struct {
	scope *Scope
	root  *html.Node
	// rootHandle is fixed at construction and safe to read without the scope.
	rootHandle Handle

	// nodes is indexed by NodeID; slot 0 is unused.
	nodes []*html.Node
	ids   map[*html.Node]NodeID

	// generation is bumped on every mutation so observers can detect stale state.
	generation atomic.Uint64
}

// Parse builds a Document from HTML markup.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return newDocument(root), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(markup string) (*Document, error) {
	return Parse(strings.NewReader(markup))
}

func newDocument(root *html.Node) *Document {
	d := &Document{
		root:  root,
		nodes: []*html.Node{nil},
		ids:   make(map[*html.Node]NodeID),
	}
	d.scope = &Scope{doc: d}
	d.register(root)
	d.rootHandle = d.handleOf(root)
	return d
}

// register assigns IDs to n and its descendants in document order.
func (d *Document) register(n *html.Node) {
	if _, ok := d.ids[n]; !ok {
		d.ids[n] = NodeID(len(d.nodes))
		d.nodes = append(d.nodes, n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.register(c)
	}
}

func (d *Document) lookup(h Handle) *html.Node {
	if h.ID == 0 || int(h.ID) >= len(d.nodes) {
		return nil
	}
	return d.nodes[h.ID]
}

func (d *Document) handleOf(n *html.Node) Handle {
	return Handle{ID: d.ids[n]}
}

func (d *Document) bump() {
	d.generation.Add(1)
}

// Scope returns the access scope guarding this document.
func (d *Document) Scope() *Scope {
	return d.scope
}

// Generation returns a counter that changes whenever the document is mutated.
func (d *Document) Generation() uint64 {
	return d.generation.Load()
}

// Root returns the handle of the document node.
func (d *Document) Root() Handle {
	return d.rootHandle
}

// DocumentElement returns the root element (normally <html>).
func (d *Document) DocumentElement() (Handle, bool) {
	d.scope.mu.RLock()
	defer d.scope.mu.RUnlock()

	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.handleOf(c), true
		}
	}
	return Handle{}, false
}

// Body returns the <body> element, if any.
func (d *Document) Body() (Handle, bool) {
	return d.childOfRootElement(atom.Body)
}

// Head returns the <head> element, if any.
func (d *Document) Head() (Handle, bool) {
	return d.childOfRootElement(atom.Head)
}

func (d *Document) childOfRootElement(a atom.Atom) (Handle, bool) {
	d.scope.mu.RLock()
	defer d.scope.mu.RUnlock()

	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			if gc.Type == html.ElementNode && gc.DataAtom == a {
				return d.handleOf(gc), true
			}
		}
	}
	return Handle{}, false
}

// ElementByID returns the first connected element, in document order, whose id
// attribute equals id.
func (d *Document) ElementByID(id string) (Handle, bool) {
	if id == "" {
		return Handle{}, false
	}

	d.scope.mu.RLock()
	defer d.scope.mu.RUnlock()

	var find func(n *html.Node) *html.Node
	find = func(n *html.Node) *html.Node {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && htmlquery.SelectAttr(c, "id") == id {
				return c
			}
			if found := find(c); found != nil {
				return found
			}
		}
		return nil
	}
	if n := find(d.root); n != nil {
		return d.handleOf(n), true
	}
	return Handle{}, false
}

// ElementsByTagName returns connected elements with the given local name in
// document order. "*" matches every element.
func (d *Document) ElementsByTagName(name string) []Handle {
	name = strings.ToLower(name)

	d.scope.mu.RLock()
	defer d.scope.mu.RUnlock()

	var out []Handle
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (name == "*" || strings.ToLower(c.Data) == name) {
				out = append(out, d.handleOf(c))
			}
			walk(c)
		}
	}
	walk(d.root)
	return out
}

// QueryXPath evaluates an XPath expression against the connected tree.
func (d *Document) QueryXPath(expr string) ([]Handle, error) {
	d.scope.mu.RLock()
	defer d.scope.mu.RUnlock()

	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, ErrSyntax(fmt.Sprintf("invalid xpath %q: %v", expr, err))
	}
	handles := make([]Handle, 0, len(nodes))
	for _, n := range nodes {
		if id, ok := d.ids[n]; ok {
			handles = append(handles, Handle{ID: id})
		}
	}
	return handles, nil
}

// CreateElement creates a detached element owned by this document.
func (d *Document) CreateElement(tag string) (Handle, error) {
	if tag == "" || strings.ContainsAny(tag, " \t\n\f\r/<>") {
		return Handle{}, ErrInvalidCharacter("invalid tag name: " + tag)
	}
	local := strings.ToLower(tag)

	d.scope.mu.Lock()
	defer d.scope.mu.Unlock()

	n := &html.Node{
		Type:     html.ElementNode,
		Data:     local,
		DataAtom: atom.Lookup([]byte(local)),
	}
	d.register(n)
	d.bump()
	return d.handleOf(n), nil
}

// AppendChild moves child to the end of parent's children.
func (d *Document) AppendChild(parent, child Handle) error {
	d.scope.mu.Lock()
	defer d.scope.mu.Unlock()

	p, c := d.lookup(parent), d.lookup(child)
	if p == nil || c == nil {
		return ErrStaleHandle
	}
	if p.Type != html.ElementNode && p.Type != html.DocumentNode {
		return ErrHierarchyRequest("parent cannot have children")
	}
	for a := p; a != nil; a = a.Parent {
		if a == c {
			return ErrHierarchyRequest("the new child is an ancestor of the parent")
		}
	}
	if c.Parent != nil {
		c.Parent.RemoveChild(c)
	}
	p.AppendChild(c)
	d.bump()
	return nil
}
