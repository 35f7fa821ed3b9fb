package canvas

import (
	"sync"

	"github.com/jhomra21/opencanvas/internal/domain"
)

// Workspace holds the canvas-selection state for one user session. It is
// an explicit value passed to whoever needs it, with its own lifecycle,
// rather than process-wide mutable state.
type Workspace struct {
	mu      sync.RWMutex
	userID  string
	current *domain.Canvas
}

// NewWorkspace creates a workspace for a user with no canvas selected.
func NewWorkspace(userID string) *Workspace {
	return &Workspace{userID: userID}
}

// UserID returns the owning user.
func (w *Workspace) UserID() string {
	return w.userID
}

// Select makes the given canvas active.
func (w *Workspace) Select(c *domain.Canvas) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = c
}

// Deselect clears the active canvas, e.g. after a canvas.deleted event.
func (w *Workspace) Deselect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = nil
}

// Current returns the active canvas, or nil.
func (w *Workspace) Current() *domain.Canvas {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ActiveCanvasID returns the active canvas ID, or "".
func (w *Workspace) ActiveCanvasID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return ""
	}
	return w.current.ID
}
