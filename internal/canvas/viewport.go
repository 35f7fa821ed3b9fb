package canvas

import (
	"math"
	"sync"
	"time"

	"github.com/jhomra21/opencanvas/internal/domain"
	"github.com/jhomra21/opencanvas/internal/logging"
)

// Viewport controller timings.
const (
	ZoomButtonStep        = 1.1
	ZoomAnimationDuration = 150 * time.Millisecond
	ViewportSaveDelay     = 500 * time.Millisecond
)

// Wheel zoom factor bounds per event, so a single large delta cannot jump
// across the whole zoom range.
const (
	wheelFactorMin = 0.85
	wheelFactorMax = 1.15
)

// ViewportSaver persists a settled viewport remotely.
type ViewportSaver interface {
	SaveViewport(vp domain.Viewport) error
}

// ViewportCache is the local latency-hiding viewport store.
type ViewportCache interface {
	Put(vp domain.Viewport) error
	Get(userID, canvasID string) (*domain.Viewport, error)
}

// zoomAnimation interpolates zoom about a fixed content-space pivot.
type zoomAnimation struct {
	startAt      time.Time
	duration     time.Duration
	fromZoom     float64
	toZoom       float64
	pivot        Point // screen space
	pivotContent Point
}

// ViewportController is the pan/zoom state machine for one user's view of
// one canvas. Pointer events record intent; Step applies it once per
// animation frame so update cost is decoupled from raw event frequency.
type ViewportController struct {
	mu        sync.Mutex
	vp        domain.Viewport
	container Size

	saver ViewportSaver
	cache ViewportCache
	log   *logging.Logger

	saveDeb *Debouncer
	anim    *zoomAnimation

	panning   bool
	panStart  Point
	panOrigin Point // tx/ty at pan start
	pointer   Point // latest pointer position while panning

	now func() time.Time
}

// NewViewportController creates a controller starting at the default
// viewport. saver and cache may be nil; saving is then skipped.
func NewViewportController(userID, canvasID string, container Size, saver ViewportSaver, cache ViewportCache, log *logging.Logger) *ViewportController {
	return &ViewportController{
		vp:        domain.DefaultViewport(userID, canvasID),
		container: container,
		saver:     saver,
		cache:     cache,
		log:       log,
		saveDeb:   NewDebouncer(ViewportSaveDelay),
		now:       time.Now,
	}
}

// Viewport returns the current viewport state.
func (c *ViewportController) Viewport() domain.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vp
}

// SetContainer updates the container size (window resize).
func (c *ViewportController) SetContainer(container Size) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.container = container
}

// Restore resolves the initial viewport for a canvas load. A locally
// cached viewport wins if it differs meaningfully from the default;
// otherwise the remote-persisted viewport is used, then the default.
func (c *ViewportController) Restore(remote *domain.Viewport) domain.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()

	def := domain.DefaultViewport(c.vp.UserID, c.vp.CanvasID)

	if c.cache != nil {
		if local, err := c.cache.Get(c.vp.UserID, c.vp.CanvasID); err == nil && !local.Equals(def) {
			c.vp.TX, c.vp.TY, c.vp.Zoom = local.TX, local.TY, local.Zoom
			return c.vp
		}
	}
	if remote != nil {
		c.vp.TX, c.vp.TY, c.vp.Zoom = remote.TX, remote.TY, domain.ClampZoom(remote.Zoom)
		return c.vp
	}
	c.vp.TX, c.vp.TY, c.vp.Zoom = def.TX, def.TY, def.Zoom
	return c.vp
}

// ZoomIn zooms by one button step about the container center.
func (c *ViewportController) ZoomIn() {
	c.zoomBy(ZoomButtonStep, c.center())
}

// ZoomOut zooms out by one button step about the container center.
func (c *ViewportController) ZoomOut() {
	c.zoomBy(1/ZoomButtonStep, c.center())
}

// WheelZoom zooms about the cursor. The modifier key is required; the
// factor is derived from the wheel delta magnitude and clamped per event.
func (c *ViewportController) WheelZoom(delta float64, pivot Point, modifier bool) {
	if !modifier {
		return
	}
	factor := math.Exp(-delta * 0.002)
	factor = math.Max(wheelFactorMin, math.Min(factor, wheelFactorMax))
	c.zoomBy(factor, pivot)
}

func (c *ViewportController) center() Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Point{X: c.container.Width / 2, Y: c.container.Height / 2}
}

// zoomBy starts an animated zoom toward zoom*factor about the given
// screen-space pivot. A concurrent pan snaps the zoom immediately instead
// of animating; a running animation is cancelled and replaced.
func (c *ViewportController) zoomBy(factor float64, pivot Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	target := domain.ClampZoom(c.vp.Zoom * factor)
	if target == c.vp.Zoom {
		return
	}

	pivotContent := ScreenToContent(pivot, c.container, c.vp, Point{})

	if c.panning {
		c.applyZoomLocked(target, pivot, pivotContent)
		c.anim = nil
		c.scheduleSaveLocked()
		return
	}

	c.anim = &zoomAnimation{
		startAt:      c.now(),
		duration:     ZoomAnimationDuration,
		fromZoom:     c.vp.Zoom,
		toZoom:       target,
		pivot:        pivot,
		pivotContent: pivotContent,
	}
}

// applyZoomLocked sets the zoom while keeping the pivot's content point
// under the same screen position.
func (c *ViewportController) applyZoomLocked(zoom float64, pivot, pivotContent Point) {
	cx := c.container.Width / 2
	cy := c.container.Height / 2
	c.vp.Zoom = zoom
	c.vp.TX = pivot.X - cx - (pivotContent.X-cx)*zoom
	c.vp.TY = pivot.Y - cy - (pivotContent.Y-cy)*zoom
}

// BeginPan starts a pan drag at the given pointer position.
func (c *ViewportController) BeginPan(pointer Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panning = true
	c.panStart = pointer
	c.pointer = pointer
	c.panOrigin = Point{X: c.vp.TX, Y: c.vp.TY}
}

// PanMove records the latest pointer position. The move is applied on the
// next Step, not per event.
func (c *ViewportController) PanMove(pointer Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.panning {
		return
	}
	c.pointer = pointer
}

// EndPan finalizes the pan and schedules persistence.
func (c *ViewportController) EndPan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.panning {
		return
	}
	c.applyPanLocked()
	c.panning = false
	c.scheduleSaveLocked()
}

// Panning reports whether a pan drag is active.
func (c *ViewportController) Panning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.panning
}

func (c *ViewportController) applyPanLocked() {
	c.vp.TX = c.panOrigin.X + (c.pointer.X - c.panStart.X)
	c.vp.TY = c.panOrigin.Y + (c.pointer.Y - c.panStart.Y)
}

// Step advances the controller by one animation frame at the given time,
// applying any pending pan movement and progressing the zoom animation.
// Returns the resulting viewport.
func (c *ViewportController) Step(now time.Time) domain.Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.panning {
		c.applyPanLocked()
	}

	if a := c.anim; a != nil {
		t := float64(now.Sub(a.startAt)) / float64(a.duration)
		if t >= 1 {
			c.applyZoomLocked(a.toZoom, a.pivot, a.pivotContent)
			c.anim = nil
			c.scheduleSaveLocked()
		} else if t > 0 {
			zoom := a.fromZoom + (a.toZoom-a.fromZoom)*easeOutCubic(t)
			c.applyZoomLocked(zoom, a.pivot, a.pivotContent)
		}
	}

	return c.vp
}

// Animating reports whether a zoom animation is in flight.
func (c *ViewportController) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.anim != nil
}

// scheduleSaveLocked debounce-saves the settled viewport to the remote
// layer and the local cache. A no-op without user/canvas context.
func (c *ViewportController) scheduleSaveLocked() {
	if c.vp.UserID == "" || c.vp.CanvasID == "" {
		return
	}
	vp := c.vp
	c.saveDeb.Trigger("viewport", func() { c.persist(vp) })
}

func (c *ViewportController) persist(vp domain.Viewport) {
	if c.cache != nil {
		if err := c.cache.Put(vp); err != nil && c.log != nil {
			c.log.Warn().Err(err).Msg("viewport cache write failed")
		}
	}
	if c.saver != nil {
		if err := c.saver.SaveViewport(vp); err != nil && c.log != nil {
			c.log.Warn().Err(err).Msg("viewport save failed")
		}
	}
}

// Close flushes any pending save.
func (c *ViewportController) Close() {
	c.saveDeb.Close()
}

// easeOutCubic maps linear progress to a fast-start, slow-finish curve.
func easeOutCubic(t float64) float64 {
	inv := 1 - t
	return 1 - inv*inv*inv
}
