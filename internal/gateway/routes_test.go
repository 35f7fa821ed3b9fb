package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	client := testClient(t, "user-1")

	tests := []struct {
		name string
		sub  Subscription
		ch   change
		want bool
	}{
		{
			"agents list same canvas",
			Subscription{Query: QueryAgentsList, Args: map[string]any{"canvasId": "c1"}},
			change{Entity: "agents", CanvasID: "c1"},
			true,
		},
		{
			"agents list other canvas",
			Subscription{Query: QueryAgentsList, Args: map[string]any{"canvasId": "c2"}},
			change{Entity: "agents", CanvasID: "c1"},
			false,
		},
		{
			"canvas list matches any canvas change",
			Subscription{Query: QueryCanvasList},
			change{Entity: "canvases"},
			true,
		},
		{
			"viewport same user and canvas",
			Subscription{Query: QueryViewportGet, Args: map[string]any{"canvasId": "c1"}},
			change{Entity: "viewports", CanvasID: "c1", UserID: "user-1"},
			true,
		},
		{
			"viewport other user",
			Subscription{Query: QueryViewportGet, Args: map[string]any{"canvasId": "c1"}},
			change{Entity: "viewports", CanvasID: "c1", UserID: "user-2"},
			false,
		},
		{
			"shares list same canvas",
			Subscription{Query: QuerySharesList, Args: map[string]any{"canvasId": "c1"}},
			change{Entity: "shares", CanvasID: "c1"},
			true,
		},
		{
			"entity mismatch",
			Subscription{Query: QueryAgentsList, Args: map[string]any{"canvasId": "c1"}},
			change{Entity: "shares", CanvasID: "c1"},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(client, tt.sub, tt.ch))
		})
	}
}
