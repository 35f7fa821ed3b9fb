package canvas

import (
	"sync"

	"github.com/jhomra21/opencanvas/internal/domain"
)

// ResizeHandle identifies which corner of an agent is being dragged.
type ResizeHandle string

// Resize handles.
const (
	HandleNW ResizeHandle = "nw"
	HandleNE ResizeHandle = "ne"
	HandleSW ResizeHandle = "sw"
	HandleSE ResizeHandle = "se"
)

// Agent size limits in content-space pixels.
const (
	MinAgentWidth  = 160.0
	MinAgentHeight = 192.0
	MaxAgentWidth  = 960.0
	MaxAgentHeight = 1152.0
)

// ResizeController resizes one agent at a time from a corner handle.
// Dragging a top or left handle also moves the origin, since those edges
// shift when the size changes. The caller wires Move results into the
// debounced size persistence path.
type ResizeController struct {
	mu sync.Mutex

	resizing bool
	agentID  string
	handle   ResizeHandle
	start    Rect  // agent rect at pointer-down
	pointer  Point // pointer-down position, screen space
	current  Rect
}

// NewResizeController creates a resize controller.
func NewResizeController() *ResizeController {
	return &ResizeController{}
}

// Begin starts resizing an agent from the given handle.
func (r *ResizeController) Begin(agent domain.Agent, handle ResizeHandle, pointer Point) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resizing = true
	r.agentID = agent.ID
	r.handle = handle
	r.start = Rect{X: agent.X, Y: agent.Y, Width: agent.Width, Height: agent.Height}
	r.pointer = pointer
	r.current = r.start
}

// Move computes the new rect from the pointer position. The screen-space
// delta is converted to content space by the zoom factor. Returns the new
// rect and whether a resize is active.
func (r *ResizeController) Move(pointer Point, zoom float64) (Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.resizing {
		return Rect{}, false
	}

	dx := (pointer.X - r.pointer.X) / zoom
	dy := (pointer.Y - r.pointer.Y) / zoom

	rect := r.start
	switch r.handle {
	case HandleSE:
		rect.Width += dx
		rect.Height += dy
	case HandleSW:
		rect.Width -= dx
		rect.Height += dy
	case HandleNE:
		rect.Width += dx
		rect.Height -= dy
	case HandleNW:
		rect.Width -= dx
		rect.Height -= dy
	}

	rect.Width = clamp(rect.Width, MinAgentWidth, MaxAgentWidth)
	rect.Height = clamp(rect.Height, MinAgentHeight, MaxAgentHeight)

	// Left/top handles move the origin by however much the size actually
	// changed, keeping the opposite edge fixed.
	if r.handle == HandleSW || r.handle == HandleNW {
		rect.X = r.start.X + (r.start.Width - rect.Width)
	}
	if r.handle == HandleNE || r.handle == HandleNW {
		rect.Y = r.start.Y + (r.start.Height - rect.Height)
	}

	r.current = rect
	return rect, true
}

// End stops the resize. There is no separate commit step; the caller has
// been persisting Move results through the debounced update path.
func (r *ResizeController) End() (Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.resizing {
		return Rect{}, false
	}
	r.resizing = false
	r.agentID = ""
	return r.current, true
}

// Resizing reports whether a resize is active, and for which agent.
func (r *ResizeController) Resizing() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agentID, r.resizing
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
