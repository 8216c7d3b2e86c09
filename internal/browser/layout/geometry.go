// internal/browser/layout/geometry.go
package layout

// Rect is a rectangle in layout units (CSS pixels).
type Rect struct {
	X, Y, Width, Height float64
}

// ExpandedBy returns a new rectangle expanded by the edge sizes.
func (r Rect) ExpandedBy(e Edges) Rect {
	return Rect{
		X:      r.X - e.Left,
		Y:      r.Y - e.Top,
		Width:  r.Width + e.Left + e.Right,
		Height: r.Height + e.Top + e.Bottom,
	}
}

// Edges holds per-side sizes for padding, border and margin.
type Edges struct {
	Top, Right, Bottom, Left float64
}

// Dimensions defines the geometry of a layout box.
type Dimensions struct {
	// Content area relative to the viewport.
	Content Rect

	Padding Edges
	Border  Edges
	Margin  Edges
}

// PaddingBox returns the rectangle enclosing the padding area.
func (d Dimensions) PaddingBox() Rect {
	return d.Content.ExpandedBy(d.Padding)
}

// BorderBox returns the rectangle enclosing the border area.
func (d Dimensions) BorderBox() Rect {
	return d.PaddingBox().ExpandedBy(d.Border)
}

// MarginBox returns the rectangle enclosing the margin area.
func (d Dimensions) MarginBox() Rect {
	return d.BorderBox().ExpandedBy(d.Margin)
}
