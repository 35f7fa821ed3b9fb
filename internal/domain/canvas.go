package domain

import "time"

// DefaultCanvasName is the name given to a user's idempotently created
// default canvas.
const DefaultCanvasName = "My Canvas"

// Canvas is a workspace owning a set of agents and per-user viewports.
type Canvas struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	Name        string    `json:"name"`
	ShareID     string    `json:"shareId,omitempty"`
	IsShareable bool      `json:"isShareable"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SharedCanvas grants a non-owner user access to a canvas.
type SharedCanvas struct {
	ID            string    `json:"id"`
	CanvasID      string    `json:"canvasId"`
	SharerID      string    `json:"sharerId"`
	RecipientID   string    `json:"recipientId"`
	RecipientName string    `json:"recipientName,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
	Active        bool      `json:"active"`
}
