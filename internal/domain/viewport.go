package domain

import (
	"math"
	"time"
)

// Zoom bounds for any viewport. A small epsilon absorbs floating-point
// drift at the boundary so repeated zoom steps settle exactly on the limit.
const (
	MinZoom     = 0.01
	MaxZoom     = 2.0
	ZoomEpsilon = 1e-9
)

// ViewportThreshold is the minimum per-component difference for two
// viewports to be considered distinct (used by the restore resolution rule).
const ViewportThreshold = 0.001

// Viewport is the pan/zoom transform one user applies to one canvas.
type Viewport struct {
	UserID    string    `json:"userId"`
	CanvasID  string    `json:"canvasId"`
	TX        float64   `json:"tx"`
	TY        float64   `json:"ty"`
	Zoom      float64   `json:"zoom"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DefaultViewport returns the hardcoded initial viewport for a canvas.
func DefaultViewport(userID, canvasID string) Viewport {
	return Viewport{UserID: userID, CanvasID: canvasID, Zoom: 1.0}
}

// ClampZoom bounds z to [MinZoom, MaxZoom], snapping values within
// ZoomEpsilon of a bound onto the bound itself.
func ClampZoom(z float64) float64 {
	if z <= MinZoom+ZoomEpsilon {
		return MinZoom
	}
	if z >= MaxZoom-ZoomEpsilon {
		return MaxZoom
	}
	return z
}

// Equals reports whether two viewports are the same transform within
// ViewportThreshold on every component.
func (v Viewport) Equals(o Viewport) bool {
	return math.Abs(v.TX-o.TX) < ViewportThreshold &&
		math.Abs(v.TY-o.TY) < ViewportThreshold &&
		math.Abs(v.Zoom-o.Zoom) < ViewportThreshold
}
