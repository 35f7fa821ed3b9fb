// Package domain defines the canvas entities and their validation rules.
package domain

import (
	"fmt"
	"time"
)

// AgentType identifies the kind of generation an agent performs.
type AgentType string

// Known agent types.
const (
	AgentImageGenerate AgentType = "image-generate"
	AgentImageEdit     AgentType = "image-edit"
	AgentVoiceGenerate AgentType = "voice-generate"
	AgentVideoGenerate AgentType = "video-generate"
)

// AgentStatus is the lifecycle state of an agent's generation task.
type AgentStatus string

// Known agent statuses.
const (
	StatusIdle       AgentStatus = "idle"
	StatusProcessing AgentStatus = "processing"
	StatusSuccess    AgentStatus = "success"
	StatusFailed     AgentStatus = "failed"
	StatusDeleting   AgentStatus = "deleting"
)

// ModelTier selects the generation model quality.
type ModelTier string

// Known model tiers.
const (
	ModelNormal ModelTier = "normal"
	ModelPro    ModelTier = "pro"
)

// Default agent dimensions in content-space pixels.
const (
	DefaultAgentWidth  = 320.0
	DefaultAgentHeight = 384.0
)

// Agent is a user-placed generation node on a canvas.
type Agent struct {
	ID               string      `json:"id"`
	CanvasID         string      `json:"canvasId"`
	UserID           string      `json:"userId"`
	Prompt           string      `json:"prompt"`
	X                float64     `json:"x"`
	Y                float64     `json:"y"`
	Width            float64     `json:"width"`
	Height           float64     `json:"height"`
	Type             AgentType   `json:"type"`
	Status           AgentStatus `json:"status"`
	Model            ModelTier   `json:"model"`
	GeneratedURL     string      `json:"generatedUrl,omitempty"`
	ConnectedAgentID string      `json:"connectedAgentId,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// ValidType reports whether t is a known agent type.
func ValidType(t AgentType) bool {
	switch t {
	case AgentImageGenerate, AgentImageEdit, AgentVoiceGenerate, AgentVideoGenerate:
		return true
	}
	return false
}

// ValidStatus reports whether s is a known agent status.
func ValidStatus(s AgentStatus) bool {
	switch s {
	case StatusIdle, StatusProcessing, StatusSuccess, StatusFailed, StatusDeleting:
		return true
	}
	return false
}

// ValidModel reports whether m is a known model tier.
func ValidModel(m ModelTier) bool {
	switch m {
	case ModelNormal, ModelPro:
		return true
	}
	return false
}

// MediaType reports whether the agent type produces time-based media.
// Media-type agents start in the processing state when created.
func MediaType(t AgentType) bool {
	return t == AgentVoiceGenerate || t == AgentVideoGenerate
}

// InitialStatus returns the status a freshly created agent of type t starts in.
func InitialStatus(t AgentType) AgentStatus {
	if MediaType(t) {
		return StatusProcessing
	}
	return StatusIdle
}

// Valid reports whether the agent record is complete enough to expose to
// callers. Malformed rows from a stale subscription are filtered, not fatal.
func (a Agent) Valid() bool {
	return a.ID != "" &&
		a.CanvasID != "" &&
		ValidType(a.Type) &&
		ValidStatus(a.Status) &&
		ValidModel(a.Model) &&
		a.Width > 0 && a.Height > 0
}

// producesImage reports whether the agent type emits an image that another
// agent can consume.
func producesImage(t AgentType) bool {
	return t == AgentImageGenerate || t == AgentImageEdit
}

// consumesImage reports whether the agent type accepts an upstream image.
func consumesImage(t AgentType) bool {
	return t == AgentImageEdit || t == AgentVideoGenerate
}

// ValidateConnection checks that source can feed target. The pairing is
// stored symmetrically on both agents; direction matters only for type
// compatibility.
func ValidateConnection(source, target Agent) error {
	if source.ID == target.ID {
		return fmt.Errorf("agent %s cannot connect to itself", source.ID)
	}
	if !producesImage(source.Type) {
		return fmt.Errorf("agent type %q does not produce an image output", source.Type)
	}
	if !consumesImage(target.Type) {
		return fmt.Errorf("agent type %q does not accept an image input", target.Type)
	}
	if source.ConnectedAgentID != "" && source.ConnectedAgentID != target.ID {
		return fmt.Errorf("agent %s is already connected to %s", source.ID, source.ConnectedAgentID)
	}
	if target.ConnectedAgentID != "" && target.ConnectedAgentID != source.ID {
		return fmt.Errorf("agent %s is already connected to %s", target.ID, target.ConnectedAgentID)
	}
	return nil
}
