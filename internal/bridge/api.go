package bridge

import (
	"context"

	"github.com/jhomra21/opencanvas/internal/domain"
)

// API wraps the raw RPC surface in typed, per-entity methods. It
// satisfies the canvas package's AgentService and ViewportSaver
// interfaces, so the optimistic controllers run unchanged over a live
// gateway connection.
type API struct {
	c *Client
}

// NewAPI creates the typed API over a connected client.
func NewAPI(c *Client) *API {
	return &API{c: c}
}

// CreateAgent creates an agent on its canvas and returns the
// authoritative record.
func (a *API) CreateAgent(ctx context.Context, agent domain.Agent) (*domain.Agent, error) {
	var created domain.Agent
	err := a.c.Call(ctx, "agents.create", map[string]any{
		"canvasId": agent.CanvasID,
		"type":     agent.Type,
		"prompt":   agent.Prompt,
		"x":        agent.X,
		"y":        agent.Y,
		"width":    agent.Width,
		"height":   agent.Height,
		"model":    agent.Model,
	}, &created)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListAgents fetches the agents on a canvas.
func (a *API) ListAgents(ctx context.Context, canvasID string) ([]domain.Agent, error) {
	var agents []domain.Agent
	err := a.c.Call(ctx, "agents.list", map[string]any{"canvasId": canvasID}, &agents)
	return agents, err
}

// DeleteAgent removes an agent.
func (a *API) DeleteAgent(ctx context.Context, id string) error {
	return a.c.Call(ctx, "agents.delete", map[string]any{"id": id}, nil)
}

// MoveAgent commits an agent position.
func (a *API) MoveAgent(ctx context.Context, id string, x, y float64) error {
	return a.c.Call(ctx, "agents.move", map[string]any{"id": id, "x": x, "y": y}, nil)
}

// ResizeAgent commits an agent rect.
func (a *API) ResizeAgent(ctx context.Context, id string, x, y, width, height float64) error {
	return a.c.Call(ctx, "agents.resize", map[string]any{
		"id": id, "x": x, "y": y, "width": width, "height": height,
	}, nil)
}

// UpdateAgentPrompt writes an agent's prompt text.
func (a *API) UpdateAgentPrompt(ctx context.Context, id, prompt string) error {
	return a.c.Call(ctx, "agents.update", map[string]any{"id": id, "prompt": prompt}, nil)
}

// UpdateAgentStatus advances an agent's generation lifecycle, optionally
// attaching the generated media URL.
func (a *API) UpdateAgentStatus(ctx context.Context, id string, status domain.AgentStatus, generatedURL string) error {
	params := map[string]any{"id": id, "status": status}
	if generatedURL != "" {
		params["generatedUrl"] = generatedURL
	}
	return a.c.Call(ctx, "agents.update", params, nil)
}

// UpdateAgentModel switches an agent's model tier.
func (a *API) UpdateAgentModel(ctx context.Context, id string, model domain.ModelTier) error {
	return a.c.Call(ctx, "agents.update", map[string]any{"id": id, "model": model}, nil)
}

// ConnectAgents pairs two agents symmetrically.
func (a *API) ConnectAgents(ctx context.Context, sourceID, targetID string) error {
	return a.c.Call(ctx, "agents.connect", map[string]any{
		"sourceId": sourceID, "targetId": targetID,
	}, nil)
}

// DisconnectAgent clears a pairing from either endpoint.
func (a *API) DisconnectAgent(ctx context.Context, id string) error {
	return a.c.Call(ctx, "agents.disconnect", map[string]any{"id": id}, nil)
}

// EnsureDefaultCanvas returns the user's default canvas, creating it on
// first use.
func (a *API) EnsureDefaultCanvas(ctx context.Context) (*domain.Canvas, error) {
	var canvas domain.Canvas
	if err := a.c.Call(ctx, "canvas.ensureDefault", nil, &canvas); err != nil {
		return nil, err
	}
	return &canvas, nil
}

// ListCanvases returns every canvas the user owns or has joined.
func (a *API) ListCanvases(ctx context.Context) ([]domain.Canvas, error) {
	var canvases []domain.Canvas
	err := a.c.Call(ctx, "canvas.list", nil, &canvases)
	return canvases, err
}

// CreateCanvas creates a named canvas.
func (a *API) CreateCanvas(ctx context.Context, name string) (*domain.Canvas, error) {
	var canvas domain.Canvas
	if err := a.c.Call(ctx, "canvas.create", map[string]any{"name": name}, &canvas); err != nil {
		return nil, err
	}
	return &canvas, nil
}

// RenameCanvas renames an owned canvas.
func (a *API) RenameCanvas(ctx context.Context, canvasID, name string) error {
	return a.c.Call(ctx, "canvas.rename", map[string]any{"canvasId": canvasID, "name": name}, nil)
}

// SetCanvasShareable toggles sharing and returns the canvas with its
// share ID.
func (a *API) SetCanvasShareable(ctx context.Context, canvasID string, shareable bool) (*domain.Canvas, error) {
	var canvas domain.Canvas
	err := a.c.Call(ctx, "canvas.setShareable", map[string]any{
		"canvasId": canvasID, "shareable": shareable,
	}, &canvas)
	if err != nil {
		return nil, err
	}
	return &canvas, nil
}

// DeleteCanvas removes an owned canvas and everything on it.
func (a *API) DeleteCanvas(ctx context.Context, canvasID string) error {
	return a.c.Call(ctx, "canvas.delete", map[string]any{"canvasId": canvasID}, nil)
}

// JoinCanvas joins a shareable canvas by its share ID.
func (a *API) JoinCanvas(ctx context.Context, shareID, recipientName string) (*domain.Canvas, error) {
	var result struct {
		Canvas domain.Canvas `json:"canvas"`
	}
	err := a.c.Call(ctx, "canvas.join", map[string]any{
		"shareId": shareID, "recipientName": recipientName,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result.Canvas, nil
}

// GetViewport fetches the user's viewport for a canvas, defaulted
// server-side when never saved.
func (a *API) GetViewport(ctx context.Context, canvasID string) (*domain.Viewport, error) {
	var vp domain.Viewport
	if err := a.c.Call(ctx, "viewport.get", map[string]any{"canvasId": canvasID}, &vp); err != nil {
		return nil, err
	}
	return &vp, nil
}

// SaveViewport persists a settled viewport.
func (a *API) SaveViewport(vp domain.Viewport) error {
	return a.c.Call(context.Background(), "viewport.save", map[string]any{
		"canvasId": vp.CanvasID,
		"tx":       vp.TX,
		"ty":       vp.TY,
		"zoom":     vp.Zoom,
	}, nil)
}

// ListShares returns the active sharing records for a canvas.
func (a *API) ListShares(ctx context.Context, canvasID string) ([]domain.SharedCanvas, error) {
	var shares []domain.SharedCanvas
	err := a.c.Call(ctx, "shares.list", map[string]any{"canvasId": canvasID}, &shares)
	return shares, err
}

// RemoveShare revokes a recipient's access.
func (a *API) RemoveShare(ctx context.Context, shareID, canvasID string) error {
	return a.c.Call(ctx, "shares.remove", map[string]any{"id": shareID, "canvasId": canvasID}, nil)
}
