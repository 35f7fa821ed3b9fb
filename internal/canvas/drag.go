package canvas

import (
	"sync"

	"github.com/jhomra21/opencanvas/internal/domain"
)

// DragController moves one agent at a time through a two-tier state
// model: every pointer move updates a transient visual position for
// immediate feedback, and only End commits the final position through the
// supplied callback. An interrupted drag (tab hidden, page unload) is
// force-terminated without committing.
type DragController struct {
	mu sync.Mutex

	dragging bool
	agentID  string
	offset   Point // pointer offset within the agent, screen space
	visual   Point // current content-space position
	elem     Size

	container Size
	commit    func(agentID string, pos Point)
}

// NewDragController creates a drag controller. commit is invoked once per
// completed drag with the final constrained content-space position.
func NewDragController(container Size, commit func(agentID string, pos Point)) *DragController {
	return &DragController{
		container: container,
		commit:    commit,
	}
}

// SetContainer updates the container size.
func (d *DragController) SetContainer(container Size) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.container = container
}

// Begin starts dragging an agent. pointer is the pointer-down position in
// screen space; the agent's current content position and size determine
// the grab offset so the agent does not jump under the cursor.
func (d *DragController) Begin(agent domain.Agent, pointer Point, vp domain.Viewport) {
	d.mu.Lock()
	defer d.mu.Unlock()

	screenPos := ContentToScreen(Point{X: agent.X, Y: agent.Y}, d.container, vp, Point{})

	d.dragging = true
	d.agentID = agent.ID
	d.offset = Point{X: pointer.X - screenPos.X, Y: pointer.Y - screenPos.Y}
	d.visual = Point{X: agent.X, Y: agent.Y}
	d.elem = Size{Width: agent.Width, Height: agent.Height}
}

// Move updates the transient visual position from a pointer move. The
// result is constrained to the canvas bounds. Returns the new visual
// position and whether a drag is active.
func (d *DragController) Move(pointer Point, vp domain.Viewport) (Point, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.dragging {
		return Point{}, false
	}

	topLeft := Point{X: pointer.X - d.offset.X, Y: pointer.Y - d.offset.Y}
	pos := ScreenToContent(topLeft, d.container, vp, Point{})
	d.visual = ConstrainToCanvasBounds(pos, d.elem, d.container, vp.Zoom)
	return d.visual, true
}

// End commits the final position and returns to idle. Returns the
// committed position and whether a drag was active.
func (d *DragController) End() (Point, bool) {
	d.mu.Lock()
	if !d.dragging {
		d.mu.Unlock()
		return Point{}, false
	}
	id := d.agentID
	pos := d.visual
	d.dragging = false
	d.agentID = ""
	d.mu.Unlock()

	if d.commit != nil {
		d.commit(id, pos)
	}
	return pos, true
}

// Terminate aborts an in-flight drag without committing, for visibility
// change or unload interruptions.
func (d *DragController) Terminate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dragging = false
	d.agentID = ""
}

// Dragging reports whether a drag is active, and for which agent.
func (d *DragController) Dragging() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.agentID, d.dragging
}

// Visual returns the current transient position of the dragged agent.
func (d *DragController) Visual() Point {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visual
}
