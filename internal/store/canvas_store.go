package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhomra21/opencanvas/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// CanvasStore manages canvas records.
type CanvasStore struct {
	db *DB
}

// NewCanvasStore creates a canvas store using the given database.
func NewCanvasStore(db *DB) *CanvasStore {
	return &CanvasStore{db: db}
}

// Create inserts a new canvas owned by ownerID.
func (s *CanvasStore) Create(ownerID, name string) (*domain.Canvas, error) {
	return s.create(ownerID, name, false)
}

func (s *CanvasStore) create(ownerID, name string, isDefault bool) (*domain.Canvas, error) {
	now := time.Now()
	c := domain.Canvas{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO canvases (id, owner_id, name, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, ownerID, name, boolInt(isDefault),
		now.Format(time.DateTime), now.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("creating canvas: %w", err)
	}
	return &c, nil
}

// EnsureDefault returns the owner's default canvas, creating it if missing.
// Safe to call on every load.
func (s *CanvasStore) EnsureDefault(ownerID, name string) (*domain.Canvas, error) {
	c, err := s.scanOne(
		`SELECT id, owner_id, name, share_id, is_shareable, created_at, updated_at
		 FROM canvases WHERE owner_id = ? AND is_default = 1`, ownerID,
	)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if name == "" {
		name = domain.DefaultCanvasName
	}
	return s.create(ownerID, name, true)
}

// Get returns a canvas by ID.
func (s *CanvasStore) Get(id string) (*domain.Canvas, error) {
	return s.scanOne(
		`SELECT id, owner_id, name, share_id, is_shareable, created_at, updated_at
		 FROM canvases WHERE id = ?`, id,
	)
}

// GetByShareID returns a shareable canvas by its share identifier.
func (s *CanvasStore) GetByShareID(shareID string) (*domain.Canvas, error) {
	return s.scanOne(
		`SELECT id, owner_id, name, share_id, is_shareable, created_at, updated_at
		 FROM canvases WHERE share_id = ? AND is_shareable = 1`, shareID,
	)
}

// ListByOwner returns all canvases owned by a user, most recent first.
func (s *CanvasStore) ListByOwner(ownerID string) ([]domain.Canvas, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, owner_id, name, share_id, is_shareable, created_at, updated_at
		 FROM canvases WHERE owner_id = ? ORDER BY updated_at DESC`, ownerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCanvases(rows)
}

// ListAccessible returns canvases the user owns plus ones actively shared
// with them.
func (s *CanvasStore) ListAccessible(userID string) ([]domain.Canvas, error) {
	rows, err := s.db.sql.Query(
		`SELECT c.id, c.owner_id, c.name, c.share_id, c.is_shareable, c.created_at, c.updated_at
		 FROM canvases c
		 LEFT JOIN shared_canvases sc
		   ON sc.canvas_id = c.id AND sc.recipient_id = ? AND sc.active = 1
		 WHERE c.owner_id = ? OR sc.id IS NOT NULL
		 ORDER BY c.updated_at DESC`, userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCanvases(rows)
}

// Rename updates a canvas's display name.
func (s *CanvasStore) Rename(id, name string) error {
	return s.touch(id, `UPDATE canvases SET name = ?, updated_at = ? WHERE id = ?`, name)
}

// SetShareable toggles sharing. Enabling generates a share identifier if
// the canvas has none; disabling keeps it so re-enabling preserves links.
func (s *CanvasStore) SetShareable(id string, shareable bool) (*domain.Canvas, error) {
	c, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if shareable && c.ShareID == "" {
		c.ShareID = newShareID()
	}
	c.IsShareable = shareable
	c.UpdatedAt = time.Now()

	var shareID sql.NullString
	if c.ShareID != "" {
		shareID = sql.NullString{String: c.ShareID, Valid: true}
	}
	_, err = s.db.sql.Exec(
		`UPDATE canvases SET share_id = ?, is_shareable = ?, updated_at = ? WHERE id = ?`,
		shareID, boolInt(shareable), c.UpdatedAt.Format(time.DateTime), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating share state: %w", err)
	}
	return c, nil
}

// Delete removes a canvas. Agents, viewports, and sharing records cascade.
func (s *CanvasStore) Delete(id string) error {
	res, err := s.db.sql.Exec(`DELETE FROM canvases WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *CanvasStore) touch(id, query string, args ...any) error {
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

func (s *CanvasStore) scanOne(query string, args ...any) (*domain.Canvas, error) {
	var c domain.Canvas
	var shareID sql.NullString
	var shareable int
	var createdAt, updatedAt string

	err := s.db.sql.QueryRow(query, args...).Scan(
		&c.ID, &c.OwnerID, &c.Name, &shareID, &shareable, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.ShareID = shareID.String
	c.IsShareable = shareable != 0
	c.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	c.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return &c, nil
}

func scanCanvases(rows *sql.Rows) ([]domain.Canvas, error) {
	var out []domain.Canvas
	for rows.Next() {
		var c domain.Canvas
		var shareID sql.NullString
		var shareable int
		var createdAt, updatedAt string

		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &shareID, &shareable, &createdAt, &updatedAt); err != nil {
			continue
		}
		c.ShareID = shareID.String
		c.IsShareable = shareable != 0
		c.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
		c.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// newShareID returns a short URL-safe share identifier.
func newShareID() string {
	var buf [8]byte
	rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
