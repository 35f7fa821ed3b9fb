package canvas

import (
	"testing"

	"github.com/jhomra21/opencanvas/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContainer = Size{Width: 800, Height: 600}

func vp(tx, ty, zoom float64) domain.Viewport {
	return domain.Viewport{UserID: "u", CanvasID: "c", TX: tx, TY: ty, Zoom: zoom}
}

func TestTransformRoundTrip(t *testing.T) {
	points := []Point{
		{X: 0, Y: 0},
		{X: 400, Y: 300},
		{X: -150, Y: 900},
		{X: 123.456, Y: 789.012},
	}
	viewports := []domain.Viewport{
		vp(0, 0, 1.0),
		vp(50, -30, 0.5),
		vp(-200, 100, 2.0),
		vp(0, 0, 0.01),
	}

	for _, p := range points {
		for _, v := range viewports {
			screen := ContentToScreen(p, testContainer, v, Point{})
			back := ScreenToContent(screen, testContainer, v, Point{})
			assert.InDelta(t, p.X, back.X, 1e-9)
			assert.InDelta(t, p.Y, back.Y, 1e-9)
		}
	}
}

func TestTransformCenterInvariant(t *testing.T) {
	// With no pan, the container center maps to itself at any zoom.
	center := Point{X: 400, Y: 300}
	for _, zoom := range []float64{0.01, 0.5, 1.0, 2.0} {
		screen := ContentToScreen(center, testContainer, vp(0, 0, zoom), Point{})
		assert.InDelta(t, center.X, screen.X, 1e-9)
		assert.InDelta(t, center.Y, screen.Y, 1e-9)
	}
}

func TestContentBoundsNegativeWhenZoomedOut(t *testing.T) {
	b := ContentBounds(testContainer, 0.5)

	// Center-based scaling shifts the origin left/up past zero.
	assert.Equal(t, -400.0, b.X)
	assert.Equal(t, -300.0, b.Y)
	assert.Equal(t, 1600.0, b.Width)
	assert.Equal(t, 1200.0, b.Height)

	b = ContentBounds(testContainer, 1.0)
	assert.Equal(t, 0.0, b.X)
	assert.Equal(t, 800.0, b.Width)
}

func TestConstrainIdempotent(t *testing.T) {
	elem := Size{Width: 320, Height: 384}
	positions := []Point{
		{X: -5000, Y: -5000},
		{X: 5000, Y: 5000},
		{X: 100, Y: 100},
		{X: 0, Y: 0},
	}
	for _, zoom := range []float64{0.5, 1.0, 2.0} {
		for _, p := range positions {
			once := ConstrainToCanvasBounds(p, elem, testContainer, zoom)
			twice := ConstrainToCanvasBounds(once, elem, testContainer, zoom)
			assert.Equal(t, once, twice, "constrain not idempotent at zoom %v for %+v", zoom, p)
		}
	}
}

func TestConstrainKeepsElementInBounds(t *testing.T) {
	elem := Size{Width: 320, Height: 384}
	got := ConstrainToCanvasBounds(Point{X: 9999, Y: 9999}, elem, testContainer, 1.0)
	assert.Equal(t, Point{X: 480, Y: 216}, got)

	got = ConstrainToCanvasBounds(Point{X: -9999, Y: -9999}, elem, testContainer, 1.0)
	assert.Equal(t, Point{X: 0, Y: 0}, got)
}

func TestCalculateGridPositionNonOverlapping(t *testing.T) {
	elem := Size{Width: 320, Height: 384}
	const padding = 20.0

	// 800×600 fits 2 columns and 1 row: capacity 2.
	var rects []Rect
	for i := 0; i < 2; i++ {
		p := CalculateGridPosition(i, elem, testContainer, padding)
		r := Rect{X: p.X, Y: p.Y, Width: elem.Width, Height: elem.Height}
		for _, prev := range rects {
			assert.False(t, r.Intersects(prev, 0), "slot %d overlaps an earlier slot", i)
		}
		rects = append(rects, r)
	}
}

func TestCalculateGridPositionOverflowLaps(t *testing.T) {
	elem := Size{Width: 320, Height: 384}
	const padding = 20.0

	first := CalculateGridPosition(0, elem, testContainer, padding)
	// Capacity is 2, so indexes 2 and 4 are the first slot on laps 1 and 2.
	lap1 := CalculateGridPosition(2, elem, testContainer, padding)
	lap2 := CalculateGridPosition(4, elem, testContainer, padding)

	assert.Equal(t, first.X+OverflowLapOffset, lap1.X)
	assert.Equal(t, first.Y+OverflowLapOffset, lap1.Y)
	assert.Greater(t, lap2.X, lap1.X)
	assert.Greater(t, lap2.Y, lap1.Y)
}

// Three default-size agents in an 800×600 viewport at zoom 1: the first
// two fill row one, the third wraps to row two.
func TestFindFreePositionSequence(t *testing.T) {
	elem := Size{Width: 320, Height: 384}
	const padding = 20.0
	view := vp(0, 0, 1.0)

	var existing []Rect
	place := func() Point {
		p := FindFreePosition(view, testContainer, existing, elem, padding)
		existing = append(existing, Rect{X: p.X, Y: p.Y, Width: elem.Width, Height: elem.Height})
		return p
	}

	assert.Equal(t, Point{X: 20, Y: 20}, place())
	assert.Equal(t, Point{X: 360, Y: 20}, place())
	assert.Equal(t, Point{X: 20, Y: 424}, place())
}

func TestFindFreePositionCenterFallback(t *testing.T) {
	// Container too small for any grid cell: placement centers instead.
	small := Size{Width: 100, Height: 100}
	elem := Size{Width: 320, Height: 384}

	p := FindFreePosition(vp(0, 0, 1.0), small, nil, elem, 20)
	assert.InDelta(t, (100.0-320.0)/2, p.X, 1e-9)
	assert.InDelta(t, (100.0-384.0)/2, p.Y, 1e-9)
}

func TestRectIntersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}

	assert.True(t, a.Intersects(Rect{X: 50, Y: 50, Width: 100, Height: 100}, 0))
	assert.False(t, a.Intersects(Rect{X: 200, Y: 0, Width: 100, Height: 100}, 0))
	// Padding makes nearby rects collide.
	assert.True(t, a.Intersects(Rect{X: 110, Y: 0, Width: 100, Height: 100}, 20))

	// Touching edges do not intersect without padding.
	require.False(t, a.Intersects(Rect{X: 100, Y: 0, Width: 100, Height: 100}, 0))
}
