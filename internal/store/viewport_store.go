package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jhomra21/opencanvas/internal/domain"
)

// ViewportStore persists one pan/zoom transform per (user, canvas).
type ViewportStore struct {
	db *DB
}

// NewViewportStore creates a viewport store using the given database.
func NewViewportStore(db *DB) *ViewportStore {
	return &ViewportStore{db: db}
}

// Get returns the saved viewport for a user on a canvas.
func (s *ViewportStore) Get(userID, canvasID string) (*domain.Viewport, error) {
	var v domain.Viewport
	var updatedAt string

	err := s.db.sql.QueryRow(
		`SELECT user_id, canvas_id, tx, ty, zoom, updated_at
		 FROM viewports WHERE user_id = ? AND canvas_id = ?`, userID, canvasID,
	).Scan(&v.UserID, &v.CanvasID, &v.TX, &v.TY, &v.Zoom, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	v.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &v, nil
}

// Save upserts the viewport, clamping zoom to the allowed range.
func (s *ViewportStore) Save(v domain.Viewport) error {
	v.Zoom = domain.ClampZoom(v.Zoom)
	now := time.Now().Format(time.DateTime)

	_, err := s.db.sql.Exec(
		`INSERT INTO viewports (user_id, canvas_id, tx, ty, zoom, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, canvas_id) DO UPDATE SET
		   tx = excluded.tx,
		   ty = excluded.ty,
		   zoom = excluded.zoom,
		   updated_at = excluded.updated_at`,
		v.UserID, v.CanvasID, v.TX, v.TY, v.Zoom, now,
	)
	return err
}
