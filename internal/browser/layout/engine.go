// internal/browser/layout/engine.go
package layout

import (
	"math"
	"strconv"
	"strings"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/parser"
)

// -- Constants and Configuration --

const (
	BaseFontSize      = 16.0 // Default root font size.
	DefaultLineHeight = 1.2  // Default multiplier for 'line-height: normal'.
	BodyMargin        = 8.0  // User agent margin on <body>.
)

// Elements whose subtrees never generate boxes.
var nonRendered = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"title":    true,
	"meta":     true,
	"link":     true,
	"noscript": true,
}

// Engine computes block-flow boxes for a document. Every rendered element stacks
// vertically inside its parent's content box; images take their size from their
// width/height attributes. Inline style may hide an element with display:none or
// fix its width and height in pixels.
type Engine struct {
	ViewportWidth      float64
	ViewportHeight     float64
	DefaultImageWidth  float64
	DefaultImageHeight float64
}

// NewEngine creates an engine for the given viewport.
func NewEngine(viewportWidth, viewportHeight float64) *Engine {
	return &Engine{
		ViewportWidth:  viewportWidth,
		ViewportHeight: viewportHeight,
	}
}

// Compute lays out the connected tree under the document's read scope and returns
// the box of every rendered element, keyed by node ID. Detached nodes are absent.
func (e *Engine) Compute(doc *dom.Document) (map[dom.NodeID]Dimensions, error) {
	boxes := make(map[dom.NodeID]Dimensions)
	err := doc.Scope().Read(doc.Root(), func(root dom.Node) {
		html, ok := firstElement(root)
		if !ok {
			return
		}
		viewport := Rect{Width: e.ViewportWidth, Height: e.ViewportHeight}
		boxes[html.ID()] = Dimensions{Content: viewport}

		cursor := 0.0
		for _, c := range html.ChildNodes() {
			cursor += e.layoutNode(c, viewport.X, cursor, viewport.Width, boxes)
		}
	})
	if err != nil {
		return nil, err
	}
	return boxes, nil
}

// layoutNode places n at (x, y) with the given available width and returns the
// vertical space it consumes, margins included.
func (e *Engine) layoutNode(n dom.Node, x, y, width float64, boxes map[dom.NodeID]Dimensions) float64 {
	switch n.Kind() {
	case dom.TextNode:
		if strings.TrimSpace(n.Text()) == "" {
			return 0
		}
		return BaseFontSize * DefaultLineHeight
	case dom.ElementNode:
	default:
		return 0
	}

	el, _ := n.Element()
	if nonRendered[el.LocalName()] {
		return 0
	}
	if _, hidden := el.Attribute("hidden"); hidden {
		return 0
	}
	style := inlineStyle(el)
	if display, ok := style.Lookup("display"); ok && strings.EqualFold(strings.TrimSpace(string(display)), "none") {
		return 0
	}

	var dims Dimensions
	if el.LocalName() == "body" {
		dims.Margin = Edges{Top: BodyMargin, Right: BodyMargin, Bottom: BodyMargin, Left: BodyMargin}
	}
	dims.Content.X = x + dims.Margin.Left
	dims.Content.Y = y + dims.Margin.Top

	if el.Kind() == dom.ImageElement {
		dims.Content.Width = styledLength(style, "width", attrLength(el, "width", e.DefaultImageWidth))
		dims.Content.Height = styledLength(style, "height", attrLength(el, "height", e.DefaultImageHeight))
		boxes[n.ID()] = dims
		return dims.MarginBox().Height
	}

	dims.Content.Width = styledLength(style, "width", math.Max(0, width-dims.Margin.Left-dims.Margin.Right))

	cursor := dims.Content.Y
	for _, c := range n.ChildNodes() {
		cursor += e.layoutNode(c, dims.Content.X, cursor, dims.Content.Width, boxes)
	}
	dims.Content.Height = styledLength(style, "height", cursor-dims.Content.Y)
	boxes[n.ID()] = dims
	return dims.MarginBox().Height
}

// inlineStyle parses the element's style attribute.
func inlineStyle(el dom.Element) parser.Block {
	raw, ok := el.Attribute("style")
	if !ok {
		return nil
	}
	return parser.ParseInline(raw)
}

// styledLength returns the pixel value of prop in style, or def. Inline
// style takes precedence over presentational attributes.
func styledLength(style parser.Block, prop parser.Property, def float64) float64 {
	if v, ok := style.Pixels(prop); ok {
		return v
	}
	return def
}

func firstElement(n dom.Node) (dom.Node, bool) {
	for _, c := range n.ChildNodes() {
		if c.Kind() == dom.ElementNode {
			return c, true
		}
	}
	return dom.Node{}, false
}

// attrLength parses a dimension attribute such as "120" or "120px". Missing,
// malformed or negative values fall back to def.
func attrLength(el dom.Element, name string, def float64) float64 {
	raw, ok := el.Attribute(name)
	if !ok {
		return def
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "px")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return def
	}
	return v
}
