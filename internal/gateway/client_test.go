package gateway

import (
	"testing"

	"github.com/jhomra21/opencanvas/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionKeyCanonical(t *testing.T) {
	a := Subscription{Query: "agents.list", Args: map[string]any{"canvasId": "c1", "limit": 10}}
	b := Subscription{Query: "agents.list", Args: map[string]any{"limit": 10, "canvasId": "c1"}}

	// Arg insertion order must not matter
	assert.Equal(t, a.Key(), b.Key())
}

func TestSubscriptionKeyDistinguishesArgs(t *testing.T) {
	a := Subscription{Query: "agents.list", Args: map[string]any{"canvasId": "c1"}}
	b := Subscription{Query: "agents.list", Args: map[string]any{"canvasId": "c2"}}
	c := Subscription{Query: "shares.list", Args: map[string]any{"canvasId": "c1"}}

	assert.NotEqual(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestSubscriptionArg(t *testing.T) {
	sub := Subscription{Query: "viewport.get", Args: map[string]any{"canvasId": "c1", "n": 3}}

	assert.Equal(t, "c1", sub.Arg("canvasId"))
	assert.Equal(t, "", sub.Arg("missing"))
	// Non-string args read as empty rather than panicking
	assert.Equal(t, "", sub.Arg("n"))
}

func testClient(t *testing.T, userID string) *Client {
	t.Helper()
	log := logging.New(nil, "silent")
	return NewClient(nil, ClientInfo{UserID: userID, Version: "test"}, AuthResult{OK: true}, log)
}

func TestClientSubscriptions(t *testing.T) {
	c := testClient(t, "user-1")
	sub := Subscription{Query: "agents.list", Args: map[string]any{"canvasId": "c1"}}

	assert.Empty(t, c.Subscriptions())

	c.Subscribe(sub)
	c.Subscribe(sub) // duplicate collapses onto the same key
	require.Len(t, c.Subscriptions(), 1)

	assert.True(t, c.Unsubscribe(sub))
	assert.False(t, c.Unsubscribe(sub))
	assert.Empty(t, c.Subscriptions())
}

func TestClientRegistry(t *testing.T) {
	log := logging.New(nil, "silent")
	reg := NewClientRegistry(log)

	c1 := testClient(t, "user-1")
	c2 := testClient(t, "user-2")

	reg.Add(c1)
	reg.Add(c2)
	assert.Equal(t, 2, reg.Count())

	got, ok := reg.Get(c1.ConnID)
	require.True(t, ok)
	assert.Equal(t, "user-1", got.Info.UserID)

	reg.Remove(c1.ConnID)
	assert.Equal(t, 1, reg.Count())
	_, ok = reg.Get(c1.ConnID)
	assert.False(t, ok)

	all := reg.All()
	require.Len(t, all, 1)
	assert.Equal(t, c2.ConnID, all[0].ConnID)
}
