// Package canvas implements the client-side canvas engine: coordinate
// transforms, the viewport/drag/resize controllers, and the optimistic
// agent manager that reconciles local edits against the gateway.
package canvas

import (
	"math"

	"github.com/jhomra21/opencanvas/internal/domain"
)

// Point is a position in screen or content space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle in content space.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Intersects reports whether two rectangles overlap when each is grown by
// pad on every side.
func (r Rect) Intersects(other Rect, pad float64) bool {
	return r.X-pad < other.X+other.Width &&
		r.X+r.Width+pad > other.X &&
		r.Y-pad < other.Y+other.Height &&
		r.Y+r.Height+pad > other.Y
}

// Content is scaled about the container center, not the top-left, so the
// screen position of a content point depends on the container size:
//
//	screen = (content - center) * zoom + center + pan - scroll
//
// ContentToScreen and ScreenToContent are exact inverses for any zoom > 0.

// ContentToScreen maps a content-space point to screen space.
func ContentToScreen(p Point, container Size, vp domain.Viewport, scroll Point) Point {
	cx := container.Width / 2
	cy := container.Height / 2
	return Point{
		X: (p.X-cx)*vp.Zoom + cx + vp.TX - scroll.X,
		Y: (p.Y-cy)*vp.Zoom + cy + vp.TY - scroll.Y,
	}
}

// ScreenToContent maps a screen-space point to content space.
func ScreenToContent(p Point, container Size, vp domain.Viewport, scroll Point) Point {
	cx := container.Width / 2
	cy := container.Height / 2
	return Point{
		X: (p.X+scroll.X-vp.TX-cx)/vp.Zoom + cx,
		Y: (p.Y+scroll.Y-vp.TY-cy)/vp.Zoom + cy,
	}
}

// ContentBounds returns the content-space rectangle visible in the
// container at the given zoom, ignoring pan. Because scaling is
// center-based the origin can go negative when zoomed out.
func ContentBounds(container Size, zoom float64) Rect {
	cx := container.Width / 2
	cy := container.Height / 2
	return Rect{
		X:      cx - cx/zoom,
		Y:      cy - cy/zoom,
		Width:  container.Width / zoom,
		Height: container.Height / zoom,
	}
}

// ConstrainToCanvasBounds clamps a proposed content-space position so the
// element stays within the visible content bounds. Idempotent.
func ConstrainToCanvasBounds(pos Point, elem Size, container Size, zoom float64) Point {
	b := ContentBounds(container, zoom)

	maxX := b.X + b.Width - elem.Width
	maxY := b.Y + b.Height - elem.Height

	x := math.Max(b.X, math.Min(pos.X, maxX))
	y := math.Max(b.Y, math.Min(pos.Y, maxY))

	// Element larger than the visible area: pin to the near edge.
	if maxX < b.X {
		x = b.X
	}
	if maxY < b.Y {
		y = b.Y
	}
	return Point{X: x, Y: y}
}

// OverflowLapOffset is the pixel offset applied per overflow lap once the
// deterministic grid runs out of cells.
const OverflowLapOffset = 40.0

// CalculateGridPosition returns the row-major grid slot for the index-th
// element placed sequentially in a container. Once the grid capacity is
// exceeded, placement restarts from the first cell shifted down-right by
// one lap offset per overflow pass.
func CalculateGridPosition(index int, elem, container Size, padding float64) Point {
	cols := int((container.Width - padding) / (elem.Width + padding))
	if cols < 1 {
		cols = 1
	}
	rows := int((container.Height - padding) / (elem.Height + padding))
	if rows < 1 {
		rows = 1
	}

	capacity := cols * rows
	lap := index / capacity
	slot := index % capacity

	col := slot % cols
	row := slot / cols

	return Point{
		X: padding + float64(col)*(elem.Width+padding) + float64(lap)*OverflowLapOffset,
		Y: padding + float64(row)*(elem.Height+padding) + float64(lap)*OverflowLapOffset,
	}
}

// PlacementGridLimit bounds the free-cell scan in each axis.
const PlacementGridLimit = 100

// FindFreePosition scans a grid of candidate cells within the visible
// viewport for the first position whose bounding box does not overlap any
// existing agent rectangle (with padding). Falls back to centering the
// element in the viewport when every candidate collides.
func FindFreePosition(vp domain.Viewport, container Size, existing []Rect, elem Size, padding float64) Point {
	topLeft := ScreenToContent(Point{}, container, vp, Point{})
	bottomRight := ScreenToContent(Point{X: container.Width, Y: container.Height}, container, vp, Point{})

	stepX := elem.Width + padding
	stepY := elem.Height + padding

	// A row qualifies while its top edge is still visible; the last row may
	// extend past the bottom so a mostly-full viewport still gets a slot.
	for row := 0; row < PlacementGridLimit; row++ {
		y := topLeft.Y + padding + float64(row)*stepY
		if y > bottomRight.Y {
			break
		}
		for col := 0; col < PlacementGridLimit; col++ {
			x := topLeft.X + padding + float64(col)*stepX
			if x+elem.Width > bottomRight.X {
				break
			}
			candidate := Rect{X: x, Y: y, Width: elem.Width, Height: elem.Height}
			if !overlapsAny(candidate, existing, padding) {
				return Point{X: x, Y: y}
			}
		}
	}

	// Center of the visible viewport.
	return Point{
		X: topLeft.X + (bottomRight.X-topLeft.X-elem.Width)/2,
		Y: topLeft.Y + (bottomRight.Y-topLeft.Y-elem.Height)/2,
	}
}

func overlapsAny(candidate Rect, existing []Rect, pad float64) bool {
	for _, r := range existing {
		if candidate.Intersects(r, pad) {
			return true
		}
	}
	return false
}
