package gateway

import (
	"errors"
	"fmt"

	"github.com/jhomra21/opencanvas/internal/domain"
	"github.com/jhomra21/opencanvas/internal/store"
)

// Live query names clients may subscribe to.
const (
	QueryAgentsList  = "agents.list"
	QueryCanvasList  = "canvas.list"
	QueryViewportGet = "viewport.get"
	QuerySharesList  = "shares.list"
)

// change describes a mutation that may invalidate live queries.
// Entity selects which query families re-run; CanvasID and UserID
// narrow the affected subscriptions.
type change struct {
	Entity   string // "agents" | "canvases" | "viewports" | "shares"
	CanvasID string
	UserID   string // viewports only: the user whose viewport changed
}

func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("subscribe", s.rpcSubscribe)
	s.Handle("unsubscribe", s.rpcUnsubscribe)

	s.Handle("agents.list", s.rpcAgentsList)
	s.Handle("agents.create", s.rpcAgentsCreate)
	s.Handle("agents.update", s.rpcAgentsUpdate)
	s.Handle("agents.move", s.rpcAgentsMove)
	s.Handle("agents.resize", s.rpcAgentsResize)
	s.Handle("agents.connect", s.rpcAgentsConnect)
	s.Handle("agents.disconnect", s.rpcAgentsDisconnect)
	s.Handle("agents.delete", s.rpcAgentsDelete)

	s.Handle("canvas.ensureDefault", s.rpcCanvasEnsureDefault)
	s.Handle("canvas.list", s.rpcCanvasList)
	s.Handle("canvas.create", s.rpcCanvasCreate)
	s.Handle("canvas.rename", s.rpcCanvasRename)
	s.Handle("canvas.setShareable", s.rpcCanvasSetShareable)
	s.Handle("canvas.delete", s.rpcCanvasDelete)
	s.Handle("canvas.join", s.rpcCanvasJoin)

	s.Handle("viewport.get", s.rpcViewportGet)
	s.Handle("viewport.save", s.rpcViewportSave)

	s.Handle("shares.list", s.rpcSharesList)
	s.Handle("shares.remove", s.rpcSharesRemove)
}

// runQuery executes a live query on behalf of a user and returns the result.
func (s *Server) runQuery(userID string, sub Subscription) (any, error) {
	switch sub.Query {
	case QueryAgentsList:
		return s.stores.Agents.ListByCanvas(sub.Arg("canvasId"))
	case QueryCanvasList:
		return s.stores.Canvases.ListAccessible(userID)
	case QueryViewportGet:
		vp, err := s.stores.Viewports.Get(userID, sub.Arg("canvasId"))
		if errors.Is(err, store.ErrNotFound) {
			def := domain.DefaultViewport(userID, sub.Arg("canvasId"))
			return &def, nil
		}
		return vp, err
	case QuerySharesList:
		return s.stores.Shares.ListByCanvas(sub.Arg("canvasId"))
	default:
		return nil, fmt.Errorf("unknown query %q", sub.Query)
	}
}

// matches reports whether a client's subscription is affected by a change.
func matches(client *Client, sub Subscription, ch change) bool {
	switch ch.Entity {
	case "agents":
		return sub.Query == QueryAgentsList && sub.Arg("canvasId") == ch.CanvasID
	case "canvases":
		// Canvas membership can shift for any user, so every canvas list re-runs.
		return sub.Query == QueryCanvasList
	case "viewports":
		return sub.Query == QueryViewportGet &&
			sub.Arg("canvasId") == ch.CanvasID &&
			client.Info.UserID == ch.UserID
	case "shares":
		return sub.Query == QuerySharesList && sub.Arg("canvasId") == ch.CanvasID
	}
	return false
}

// publish re-runs every subscription affected by the change and pushes the
// fresh result to its client as a "query.update" event. This is the reactive
// half of the gateway: clients mutate via RPC and receive state via events.
func (s *Server) publish(ch change) {
	for _, client := range s.clients.All() {
		for _, sub := range client.Subscriptions() {
			if !matches(client, sub, ch) {
				continue
			}
			result, err := s.runQuery(client.Info.UserID, sub)
			if err != nil {
				s.log.Warn().Err(err).
					Str("query", sub.Query).
					Str("connId", client.ConnID).
					Msg("live query re-run failed")
				continue
			}
			update, err := NewEvent("query.update", map[string]any{
				"query":   sub.Query,
				"args":    sub.Args,
				"payload": result,
			}, s.eventSeq.Add(1))
			if err != nil {
				continue
			}
			if err := client.Send(update); err != nil && !errors.Is(err, ErrClientClosed) {
				s.log.Warn().Err(err).Str("connId", client.ConnID).Msg("query.update send failed")
			}
		}
	}
}

// canAccess reports whether a user may read or mutate a canvas: its owner,
// or an active sharing recipient.
func (s *Server) canAccess(userID string, canvas *domain.Canvas) bool {
	if canvas.OwnerID == userID {
		return true
	}
	shares, err := s.stores.Shares.ListByCanvas(canvas.ID)
	if err != nil {
		return false
	}
	for _, sh := range shares {
		if sh.RecipientID == userID {
			return true
		}
	}
	return false
}

// requireCanvas loads a canvas and checks access, responding with an error
// frame on failure. Returns nil if the handler should stop.
func (s *Server) requireCanvas(rc *RequestContext, canvasID string) *domain.Canvas {
	if canvasID == "" {
		rc.RespondError("invalid_params", "canvasId is required")
		return nil
	}
	canvas, err := s.stores.Canvases.Get(canvasID)
	if errors.Is(err, store.ErrNotFound) {
		rc.RespondError("not_found", "canvas not found")
		return nil
	}
	if err != nil {
		rc.RespondError("internal", err.Error())
		return nil
	}
	if !s.canAccess(rc.UserID(), canvas) {
		rc.RespondError("forbidden", "no access to this canvas")
		return nil
	}
	return canvas
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(HealthResponse{
		Status:  "ok",
		Version: s.version,
		Clients: s.clients.Count(),
	})
}

// rpcSubscribe registers a live query and responds with its current result,
// so the client has an initial snapshot without a separate fetch.
func (s *Server) rpcSubscribe(rc *RequestContext) {
	var sub Subscription
	if err := rc.Params(&sub); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	switch sub.Query {
	case QueryAgentsList, QueryViewportGet, QuerySharesList:
		if s.requireCanvas(rc, sub.Arg("canvasId")) == nil {
			return
		}
	case QueryCanvasList:
	default:
		rc.RespondError("invalid_params", "unknown query: "+sub.Query)
		return
	}

	result, err := s.runQuery(rc.UserID(), sub)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Client.Subscribe(sub)
	rc.Respond(map[string]any{
		"key":     sub.Key(),
		"payload": result,
	})
}

func (s *Server) rpcUnsubscribe(rc *RequestContext) {
	var sub Subscription
	if err := rc.Params(&sub); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	removed := rc.Client.Unsubscribe(sub)
	rc.Respond(map[string]any{"removed": removed})
}

type canvasIDParams struct {
	CanvasID string `json:"canvasId"`
}

func (s *Server) rpcAgentsList(rc *RequestContext) {
	var p canvasIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if s.requireCanvas(rc, p.CanvasID) == nil {
		return
	}
	agents, err := s.stores.Agents.ListByCanvas(p.CanvasID)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(agents)
}

type agentCreateParams struct {
	CanvasID string           `json:"canvasId"`
	Type     domain.AgentType `json:"type"`
	Prompt   string           `json:"prompt"`
	X        float64          `json:"x"`
	Y        float64          `json:"y"`
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
	Model    domain.ModelTier `json:"model"`
}

func (s *Server) rpcAgentsCreate(rc *RequestContext) {
	var p agentCreateParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if s.requireCanvas(rc, p.CanvasID) == nil {
		return
	}
	agent, err := s.stores.Agents.Create(domain.Agent{
		CanvasID: p.CanvasID,
		UserID:   rc.UserID(),
		Type:     p.Type,
		Prompt:   p.Prompt,
		X:        p.X,
		Y:        p.Y,
		Width:    p.Width,
		Height:   p.Height,
		Model:    p.Model,
	})
	if err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	rc.Respond(agent)
	s.publish(change{Entity: "agents", CanvasID: p.CanvasID})
}

type agentUpdateParams struct {
	ID           string             `json:"id"`
	Prompt       *string            `json:"prompt,omitempty"`
	Status       domain.AgentStatus `json:"status,omitempty"`
	GeneratedURL string             `json:"generatedUrl,omitempty"`
	Model        domain.ModelTier   `json:"model,omitempty"`
}

// requireAgent loads an agent and checks canvas access.
func (s *Server) requireAgent(rc *RequestContext, id string) *domain.Agent {
	if id == "" {
		rc.RespondError("invalid_params", "id is required")
		return nil
	}
	agent, err := s.stores.Agents.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		rc.RespondError("not_found", "agent not found")
		return nil
	}
	if err != nil {
		rc.RespondError("internal", err.Error())
		return nil
	}
	if s.requireCanvas(rc, agent.CanvasID) == nil {
		return nil
	}
	return agent
}

func (s *Server) rpcAgentsUpdate(rc *RequestContext) {
	var p agentUpdateParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	agent := s.requireAgent(rc, p.ID)
	if agent == nil {
		return
	}

	if p.Prompt != nil {
		if err := s.stores.Agents.UpdatePrompt(p.ID, *p.Prompt); err != nil {
			rc.RespondError("internal", err.Error())
			return
		}
	}
	if p.Status != "" {
		if !domain.ValidStatus(p.Status) {
			rc.RespondError("invalid_params", "unknown status: "+string(p.Status))
			return
		}
		if err := s.stores.Agents.UpdateStatus(p.ID, p.Status, p.GeneratedURL); err != nil {
			rc.RespondError("internal", err.Error())
			return
		}
	}
	if p.Model != "" {
		if err := s.stores.Agents.UpdateModel(p.ID, p.Model); err != nil {
			rc.RespondError("invalid_params", err.Error())
			return
		}
	}

	updated, err := s.stores.Agents.Get(p.ID)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(updated)
	s.publish(change{Entity: "agents", CanvasID: agent.CanvasID})
}

type agentMoveParams struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (s *Server) rpcAgentsMove(rc *RequestContext) {
	var p agentMoveParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	agent := s.requireAgent(rc, p.ID)
	if agent == nil {
		return
	}
	if err := s.stores.Agents.Move(p.ID, p.X, p.Y); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"id": p.ID, "x": p.X, "y": p.Y})
	s.publish(change{Entity: "agents", CanvasID: agent.CanvasID})
}

type agentResizeParams struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) rpcAgentsResize(rc *RequestContext) {
	var p agentResizeParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	agent := s.requireAgent(rc, p.ID)
	if agent == nil {
		return
	}
	if err := s.stores.Agents.Resize(p.ID, p.X, p.Y, p.Width, p.Height); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	rc.Respond(map[string]any{"id": p.ID})
	s.publish(change{Entity: "agents", CanvasID: agent.CanvasID})
}

type agentConnectParams struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

func (s *Server) rpcAgentsConnect(rc *RequestContext) {
	var p agentConnectParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	source := s.requireAgent(rc, p.SourceID)
	if source == nil {
		return
	}
	if err := s.stores.Agents.Connect(p.SourceID, p.TargetID); err != nil {
		rc.RespondError("invalid_connection", err.Error())
		return
	}
	rc.Respond(map[string]any{"sourceId": p.SourceID, "targetId": p.TargetID})
	s.publish(change{Entity: "agents", CanvasID: source.CanvasID})
}

type agentIDParams struct {
	ID string `json:"id"`
}

func (s *Server) rpcAgentsDisconnect(rc *RequestContext) {
	var p agentIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	agent := s.requireAgent(rc, p.ID)
	if agent == nil {
		return
	}
	if err := s.stores.Agents.Disconnect(p.ID); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"id": p.ID})
	s.publish(change{Entity: "agents", CanvasID: agent.CanvasID})
}

func (s *Server) rpcAgentsDelete(rc *RequestContext) {
	var p agentIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	agent := s.requireAgent(rc, p.ID)
	if agent == nil {
		return
	}
	if err := s.stores.Agents.Delete(p.ID); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"id": p.ID, "deleted": true})
	s.publish(change{Entity: "agents", CanvasID: agent.CanvasID})
}

func (s *Server) rpcCanvasEnsureDefault(rc *RequestContext) {
	canvas, err := s.stores.Canvases.EnsureDefault(rc.UserID(), s.cfg.Canvas.DefaultName)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(canvas)
}

func (s *Server) rpcCanvasList(rc *RequestContext) {
	canvases, err := s.stores.Canvases.ListAccessible(rc.UserID())
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(canvases)
}

type canvasCreateParams struct {
	Name string `json:"name"`
}

func (s *Server) rpcCanvasCreate(rc *RequestContext) {
	var p canvasCreateParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Name == "" {
		rc.RespondError("invalid_params", "name is required")
		return
	}
	canvas, err := s.stores.Canvases.Create(rc.UserID(), p.Name)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(canvas)
	s.publish(change{Entity: "canvases"})
}

type canvasRenameParams struct {
	CanvasID string `json:"canvasId"`
	Name     string `json:"name"`
}

// requireOwnedCanvas is requireCanvas plus an ownership check for
// operations only the owner may perform.
func (s *Server) requireOwnedCanvas(rc *RequestContext, canvasID string) *domain.Canvas {
	canvas := s.requireCanvas(rc, canvasID)
	if canvas == nil {
		return nil
	}
	if canvas.OwnerID != rc.UserID() {
		rc.RespondError("forbidden", "only the canvas owner may do this")
		return nil
	}
	return canvas
}

func (s *Server) rpcCanvasRename(rc *RequestContext) {
	var p canvasRenameParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.Name == "" {
		rc.RespondError("invalid_params", "name is required")
		return
	}
	if s.requireOwnedCanvas(rc, p.CanvasID) == nil {
		return
	}
	if err := s.stores.Canvases.Rename(p.CanvasID, p.Name); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	canvas, err := s.stores.Canvases.Get(p.CanvasID)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(canvas)
	s.publish(change{Entity: "canvases"})
}

type canvasSetShareableParams struct {
	CanvasID  string `json:"canvasId"`
	Shareable bool   `json:"shareable"`
}

func (s *Server) rpcCanvasSetShareable(rc *RequestContext) {
	var p canvasSetShareableParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if s.requireOwnedCanvas(rc, p.CanvasID) == nil {
		return
	}
	canvas, err := s.stores.Canvases.SetShareable(p.CanvasID, p.Shareable)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(canvas)
	s.publish(change{Entity: "canvases"})
}

func (s *Server) rpcCanvasDelete(rc *RequestContext) {
	var p canvasIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if s.requireOwnedCanvas(rc, p.CanvasID) == nil {
		return
	}
	if err := s.stores.Canvases.Delete(p.CanvasID); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"canvasId": p.CanvasID, "deleted": true})

	// Anyone viewing the canvas needs to leave it, not just refresh lists.
	s.clients.Broadcast("canvas.deleted", map[string]any{"canvasId": p.CanvasID}, s.eventSeq.Add(1))
	s.publish(change{Entity: "canvases"})
	s.publish(change{Entity: "shares", CanvasID: p.CanvasID})
}

type canvasJoinParams struct {
	ShareID       string `json:"shareId"`
	RecipientName string `json:"recipientName,omitempty"`
}

// rpcCanvasJoin grants the calling user access to a shareable canvas by
// its share ID. Rejoining after removal reactivates the old record.
func (s *Server) rpcCanvasJoin(rc *RequestContext) {
	var p canvasJoinParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.ShareID == "" {
		rc.RespondError("invalid_params", "shareId is required")
		return
	}
	canvas, err := s.stores.Canvases.GetByShareID(p.ShareID)
	if errors.Is(err, store.ErrNotFound) {
		rc.RespondError("not_found", "no shareable canvas with that share id")
		return
	}
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	if canvas.OwnerID == rc.UserID() {
		rc.RespondError("invalid_params", "cannot join your own canvas")
		return
	}
	name := p.RecipientName
	if name == "" {
		name = rc.Client.Info.DisplayName
	}
	share, err := s.stores.Shares.Join(canvas.ID, canvas.OwnerID, rc.UserID(), name)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"canvas": canvas, "share": share})
	s.publish(change{Entity: "canvases"})
	s.publish(change{Entity: "shares", CanvasID: canvas.ID})
}

func (s *Server) rpcViewportGet(rc *RequestContext) {
	var p canvasIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if s.requireCanvas(rc, p.CanvasID) == nil {
		return
	}
	vp, err := s.stores.Viewports.Get(rc.UserID(), p.CanvasID)
	if errors.Is(err, store.ErrNotFound) {
		def := domain.DefaultViewport(rc.UserID(), p.CanvasID)
		rc.Respond(&def)
		return
	}
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(vp)
}

type viewportSaveParams struct {
	CanvasID string  `json:"canvasId"`
	TX       float64 `json:"tx"`
	TY       float64 `json:"ty"`
	Zoom     float64 `json:"zoom"`
}

func (s *Server) rpcViewportSave(rc *RequestContext) {
	var p viewportSaveParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if s.requireCanvas(rc, p.CanvasID) == nil {
		return
	}
	vp := domain.Viewport{
		UserID:   rc.UserID(),
		CanvasID: p.CanvasID,
		TX:       p.TX,
		TY:       p.TY,
		Zoom:     p.Zoom,
	}
	if err := s.stores.Viewports.Save(vp); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	saved, err := s.stores.Viewports.Get(rc.UserID(), p.CanvasID)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(saved)
	s.publish(change{Entity: "viewports", CanvasID: p.CanvasID, UserID: rc.UserID()})
}

func (s *Server) rpcSharesList(rc *RequestContext) {
	var p canvasIDParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if s.requireCanvas(rc, p.CanvasID) == nil {
		return
	}
	shares, err := s.stores.Shares.ListByCanvas(p.CanvasID)
	if err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(shares)
}

type shareRemoveParams struct {
	ID       string `json:"id"`
	CanvasID string `json:"canvasId"`
}

func (s *Server) rpcSharesRemove(rc *RequestContext) {
	var p shareRemoveParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError("invalid_params", err.Error())
		return
	}
	if p.ID == "" {
		rc.RespondError("invalid_params", "id is required")
		return
	}
	if s.requireOwnedCanvas(rc, p.CanvasID) == nil {
		return
	}
	if err := s.stores.Shares.Remove(p.ID); err != nil {
		rc.RespondError("internal", err.Error())
		return
	}
	rc.Respond(map[string]any{"id": p.ID, "removed": true})
	s.publish(change{Entity: "canvases"})
	s.publish(change{Entity: "shares", CanvasID: p.CanvasID})
}
