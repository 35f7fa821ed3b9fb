package bridge

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jhomra21/opencanvas/internal/canvas"
	"github.com/jhomra21/opencanvas/internal/config"
	"github.com/jhomra21/opencanvas/internal/domain"
	"github.com/jhomra21/opencanvas/internal/gateway"
	"github.com/jhomra21/opencanvas/internal/logging"
	"github.com/jhomra21/opencanvas/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGateway(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Defaults()
	cfg.Gateway.Auth.Token = "bridge-test-token"

	log := logging.New(nil, "silent")
	db, err := store.Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srv := gateway.New(cfg, gateway.NewStores(db), log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func testClient(t *testing.T, ts *httptest.Server, userID string, opts ...func(*Options)) *Client {
	t.Helper()
	o := Options{
		URL:    wsURL(ts),
		UserID: userID,
		Token:  "bridge-test-token",
	}
	for _, f := range opts {
		f(&o)
	}
	c, err := Dial(context.Background(), o)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestDialHandshake(t *testing.T) {
	ts := testGateway(t)
	c := testClient(t, ts, "user-1")

	hello := c.Hello()
	assert.Equal(t, gateway.ProtocolVersion, hello.Protocol)
	assert.NotEmpty(t, hello.Server.ConnID)
	assert.Contains(t, hello.Features.Methods, "canvas.ensureDefault")
}

func TestDialRejectsBadToken(t *testing.T) {
	ts := testGateway(t)

	_, err := Dial(context.Background(), Options{
		URL:    wsURL(ts),
		UserID: "user-1",
		Token:  "wrong",
	})
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "unauthorized", rpcErr.Code)
}

func TestCallErrorSurfacesRPCError(t *testing.T) {
	ts := testGateway(t)
	c := testClient(t, ts, "user-1")

	err := c.Call(context.Background(), "agents.list", map[string]any{"canvasId": "nope"}, nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "not_found", rpcErr.Code)
}

func TestConcurrentCallsCorrelate(t *testing.T) {
	ts := testGateway(t)
	c := testClient(t, ts, "user-1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var health gateway.HealthResponse
			err := c.Call(context.Background(), "health", nil, &health)
			assert.NoError(t, err)
			assert.Equal(t, "ok", health.Status)
		}()
	}
	wg.Wait()
}

func TestAPIAgentFlow(t *testing.T) {
	ts := testGateway(t)
	api := NewAPI(testClient(t, ts, "user-1"))
	ctx := context.Background()

	cv, err := api.EnsureDefaultCanvas(ctx)
	require.NoError(t, err)
	assert.Equal(t, "My Canvas", cv.Name)

	agent, err := api.CreateAgent(ctx, domain.Agent{
		CanvasID: cv.ID,
		Type:     domain.AgentImageGenerate,
		X:        20, Y: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIdle, agent.Status)

	require.NoError(t, api.UpdateAgentPrompt(ctx, agent.ID, "a lighthouse in fog"))
	require.NoError(t, api.UpdateAgentStatus(ctx, agent.ID, domain.StatusSuccess, "https://cdn.example/img.png"))
	require.NoError(t, api.MoveAgent(ctx, agent.ID, 100, 120))

	agents, err := api.ListAgents(ctx, cv.ID)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "a lighthouse in fog", agents[0].Prompt)
	assert.Equal(t, domain.StatusSuccess, agents[0].Status)
	assert.Equal(t, "https://cdn.example/img.png", agents[0].GeneratedURL)
	assert.Equal(t, 100.0, agents[0].X)

	require.NoError(t, api.DeleteAgent(ctx, agent.ID))
	agents, err = api.ListAgents(ctx, cv.ID)
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestAPIViewportRoundTrip(t *testing.T) {
	ts := testGateway(t)
	api := NewAPI(testClient(t, ts, "user-1"))
	ctx := context.Background()

	cv, err := api.EnsureDefaultCanvas(ctx)
	require.NoError(t, err)

	require.NoError(t, api.SaveViewport(domain.Viewport{
		UserID: "user-1", CanvasID: cv.ID, TX: 12, TY: -7, Zoom: 1.4,
	}))

	vp, err := api.GetViewport(ctx, cv.ID)
	require.NoError(t, err)
	assert.Equal(t, 12.0, vp.TX)
	assert.Equal(t, 1.4, vp.Zoom)
}

func TestSubscribeDeliversSnapshotAndPushes(t *testing.T) {
	ts := testGateway(t)
	c := testClient(t, ts, "user-1")
	api := NewAPI(c)
	ctx := context.Background()

	cv, err := api.EnsureDefaultCanvas(ctx)
	require.NoError(t, err)

	watch, err := c.Subscribe(ctx, "agents.list", map[string]any{"canvasId": cv.ID})
	require.NoError(t, err)

	// Initial snapshot.
	var agents []domain.Agent
	select {
	case data := <-watch.C():
		require.NoError(t, json.Unmarshal(data, &agents))
		assert.Empty(t, agents)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial snapshot")
	}

	// A mutation pushes a fresh result through the subscription.
	_, err = api.CreateAgent(ctx, domain.Agent{CanvasID: cv.ID, Type: domain.AgentVideoGenerate})
	require.NoError(t, err)

	select {
	case data := <-watch.C():
		require.NoError(t, json.Unmarshal(data, &agents))
		require.Len(t, agents, 1)
		assert.Equal(t, domain.AgentVideoGenerate, agents[0].Type)
		assert.Equal(t, domain.StatusProcessing, agents[0].Status)
	case <-time.After(5 * time.Second):
		t.Fatal("no pushed update")
	}

	require.NoError(t, c.Unsubscribe(ctx, watch))
}

func TestCanvasDeletedCallback(t *testing.T) {
	ts := testGateway(t)

	deleted := make(chan string, 1)
	c := testClient(t, ts, "user-1", func(o *Options) {
		o.OnCanvasDeleted = func(id string) { deleted <- id }
	})
	api := NewAPI(c)
	ctx := context.Background()

	cv, err := api.EnsureDefaultCanvas(ctx)
	require.NoError(t, err)
	require.NoError(t, api.DeleteCanvas(ctx, cv.ID))

	select {
	case id := <-deleted:
		assert.Equal(t, cv.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("canvas.deleted callback not invoked")
	}
}

func TestShareFlowAcrossClients(t *testing.T) {
	ts := testGateway(t)
	owner := NewAPI(testClient(t, ts, "owner"))
	friend := NewAPI(testClient(t, ts, "friend"))
	ctx := context.Background()

	cv, err := owner.EnsureDefaultCanvas(ctx)
	require.NoError(t, err)

	shared, err := owner.SetCanvasShareable(ctx, cv.ID, true)
	require.NoError(t, err)
	require.NotEmpty(t, shared.ShareID)

	joined, err := friend.JoinCanvas(ctx, shared.ShareID, "Friend")
	require.NoError(t, err)
	assert.Equal(t, cv.ID, joined.ID)

	canvases, err := friend.ListCanvases(ctx)
	require.NoError(t, err)
	require.Len(t, canvases, 1)

	shares, err := owner.ListShares(ctx, cv.ID)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.Equal(t, "friend", shares[0].RecipientID)

	require.NoError(t, owner.RemoveShare(ctx, shares[0].ID, cv.ID))
	_, err = friend.ListAgents(ctx, cv.ID)
	require.Error(t, err)
}

// The optimistic manager runs end-to-end over a live bridge: local edits
// are visible immediately and converge to server state.
func TestManagerOverBridge(t *testing.T) {
	ts := testGateway(t)
	c := testClient(t, ts, "user-1")
	api := NewAPI(c)
	ctx := context.Background()

	cv, err := api.EnsureDefaultCanvas(ctx)
	require.NoError(t, err)

	m := canvas.NewManager(api, logging.New(nil, "silent"), nil)
	m.SetDeleteDelay(0)
	defer m.Close()

	created, err := m.Create(ctx, domain.Agent{
		CanvasID: cv.ID,
		UserID:   "user-1",
		Type:     domain.AgentImageGenerate,
		X:        20, Y: 20,
	})
	require.NoError(t, err)

	agents, err := api.ListAgents(ctx, cv.ID)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, created.ID, agents[0].ID)

	require.NoError(t, m.Delete(ctx, created.ID))
	agents, err = api.ListAgents(ctx, cv.ID)
	require.NoError(t, err)
	assert.Empty(t, agents)
}

func TestRefreshReplacesCachedValue(t *testing.T) {
	ts := testGateway(t)
	c := testClient(t, ts, "user-1")
	api := NewAPI(c)
	ctx := context.Background()

	cv, err := api.EnsureDefaultCanvas(ctx)
	require.NoError(t, err)

	args := map[string]any{"canvasId": cv.ID}
	watch, err := c.Subscribe(ctx, "agents.list", args)
	require.NoError(t, err)
	<-watch.C()

	// Stomp the cached value, then refresh from the gateway.
	c.Cache().Patch(watch.Key(), json.RawMessage(`[{"id":"temp-x"}]`))
	require.NoError(t, c.Refresh(ctx, "agents.list", args))

	data, ok := c.Cache().Get(watch.Key())
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(data))
}

func TestCallAfterClose(t *testing.T) {
	ts := testGateway(t)
	c := testClient(t, ts, "user-1")

	require.NoError(t, c.Close())
	err := c.Call(context.Background(), "health", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
}
