package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhomra21/opencanvas/internal/domain"
)

// AgentStore manages agent records, including the symmetric connection
// pairing between two agents.
type AgentStore struct {
	db *DB
}

// NewAgentStore creates an agent store using the given database.
func NewAgentStore(db *DB) *AgentStore {
	return &AgentStore{db: db}
}

// Create inserts a new agent. ID, status, and dimensions are filled with
// defaults when zero. The initial status depends on the agent type.
func (s *AgentStore) Create(a domain.Agent) (*domain.Agent, error) {
	if !domain.ValidType(a.Type) {
		return nil, fmt.Errorf("unknown agent type %q", a.Type)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Status == "" {
		a.Status = domain.InitialStatus(a.Type)
	}
	if a.Model == "" {
		a.Model = domain.ModelNormal
	}
	if a.Width == 0 {
		a.Width = domain.DefaultAgentWidth
	}
	if a.Height == 0 {
		a.Height = domain.DefaultAgentHeight
	}

	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.sql.Exec(
		`INSERT INTO agents (id, canvas_id, user_id, prompt, x, y, width, height,
		                     type, status, model, generated_url, connected_agent_id,
		                     created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.CanvasID, a.UserID, a.Prompt, a.X, a.Y, a.Width, a.Height,
		a.Type, a.Status, a.Model, nullable(a.GeneratedURL), nullable(a.ConnectedAgentID),
		now.Format(time.DateTime), now.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	return &a, nil
}

// Get returns an agent by ID.
func (s *AgentStore) Get(id string) (*domain.Agent, error) {
	row := s.db.sql.QueryRow(selectAgents+` WHERE id = ?`, id)
	return scanAgent(row)
}

// ListByCanvas returns all agents on a canvas in creation order.
func (s *AgentStore) ListByCanvas(canvasID string) ([]domain.Agent, error) {
	rows, err := s.db.sql.Query(selectAgents+` WHERE canvas_id = ? ORDER BY created_at, id`, canvasID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			continue
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// UpdatePrompt sets an agent's prompt text.
func (s *AgentStore) UpdatePrompt(id, prompt string) error {
	return s.update(id, `UPDATE agents SET prompt = ?, updated_at = ? WHERE id = ?`, prompt)
}

// UpdateStatus transitions an agent's status and optionally records the
// generated media URL alongside a success.
func (s *AgentStore) UpdateStatus(id string, status domain.AgentStatus, generatedURL string) error {
	if !domain.ValidStatus(status) {
		return fmt.Errorf("unknown agent status %q", status)
	}
	if generatedURL != "" {
		return s.update(id,
			`UPDATE agents SET status = ?, generated_url = ?, updated_at = ? WHERE id = ?`,
			status, generatedURL)
	}
	return s.update(id, `UPDATE agents SET status = ?, updated_at = ? WHERE id = ?`, status)
}

// UpdateModel sets the model tier.
func (s *AgentStore) UpdateModel(id string, model domain.ModelTier) error {
	if !domain.ValidModel(model) {
		return fmt.Errorf("unknown model tier %q", model)
	}
	return s.update(id, `UPDATE agents SET model = ?, updated_at = ? WHERE id = ?`, model)
}

// Move commits an agent's content-space position.
func (s *AgentStore) Move(id string, x, y float64) error {
	return s.update(id, `UPDATE agents SET x = ?, y = ?, updated_at = ? WHERE id = ?`, x, y)
}

// Resize commits an agent's size and position together; resizing from a
// top/left handle shifts the origin as well.
func (s *AgentStore) Resize(id string, x, y, width, height float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("size must be positive, got %gx%g", width, height)
	}
	return s.update(id,
		`UPDATE agents SET x = ?, y = ?, width = ?, height = ?, updated_at = ? WHERE id = ?`,
		x, y, width, height)
}

// Connect pairs two agents bidirectionally after validating type
// compatibility. Both pointers are written in one transaction so the
// symmetric-pairing invariant holds.
func (s *AgentStore) Connect(sourceID, targetID string) error {
	source, err := s.Get(sourceID)
	if err != nil {
		return fmt.Errorf("loading source agent: %w", err)
	}
	target, err := s.Get(targetID)
	if err != nil {
		return fmt.Errorf("loading target agent: %w", err)
	}
	if err := domain.ValidateConnection(*source, *target); err != nil {
		return err
	}

	return s.pair(sourceID, targetID)
}

// Disconnect clears the pairing starting from either endpoint.
func (s *AgentStore) Disconnect(id string) error {
	a, err := s.Get(id)
	if err != nil {
		return err
	}
	if a.ConnectedAgentID == "" {
		return nil
	}

	tx, err := s.db.sql.Begin()
	if err != nil {
		return err
	}
	now := time.Now().Format(time.DateTime)
	for _, agentID := range []string{id, a.ConnectedAgentID} {
		if _, err := tx.Exec(
			`UPDATE agents SET connected_agent_id = NULL, updated_at = ? WHERE id = ?`,
			now, agentID,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("disconnecting agent %s: %w", agentID, err)
		}
	}
	return tx.Commit()
}

// Delete removes an agent. A connected peer is disconnected first so no
// dangling pointer survives.
func (s *AgentStore) Delete(id string) error {
	if err := s.Disconnect(id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	res, err := s.db.sql.Exec(`DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AgentStore) pair(sourceID, targetID string) error {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return err
	}
	now := time.Now().Format(time.DateTime)
	writes := []struct{ id, peer string }{
		{sourceID, targetID},
		{targetID, sourceID},
	}
	for _, w := range writes {
		if _, err := tx.Exec(
			`UPDATE agents SET connected_agent_id = ?, updated_at = ? WHERE id = ?`,
			w.peer, now, w.id,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("connecting agent %s: %w", w.id, err)
		}
	}
	return tx.Commit()
}

func (s *AgentStore) update(id, query string, args ...any) error {
	args = append(args, time.Now().Format(time.DateTime), id)
	res, err := s.db.sql.Exec(query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectAgents = `SELECT id, canvas_id, user_id, prompt, x, y, width, height,
       type, status, model, generated_url, connected_agent_id, created_at, updated_at
  FROM agents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	var generatedURL, connectedID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &a.CanvasID, &a.UserID, &a.Prompt, &a.X, &a.Y, &a.Width, &a.Height,
		&a.Type, &a.Status, &a.Model, &generatedURL, &connectedID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.GeneratedURL = generatedURL.String
	a.ConnectedAgentID = connectedID.String
	a.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	a.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &a, nil
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
