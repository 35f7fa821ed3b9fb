package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhomra21/opencanvas/internal/domain"
)

// ShareStore manages sharing join records. Removal is a soft delete so a
// rejoin reactivates the original record.
type ShareStore struct {
	db *DB
}

// NewShareStore creates a share store using the given database.
func NewShareStore(db *DB) *ShareStore {
	return &ShareStore{db: db}
}

// Join grants recipientID access to a canvas. An inactive prior record is
// reactivated instead of duplicated.
func (s *ShareStore) Join(canvasID, sharerID, recipientID, recipientName string) (*domain.SharedCanvas, error) {
	now := time.Now()
	sc := domain.SharedCanvas{
		ID:            uuid.New().String(),
		CanvasID:      canvasID,
		SharerID:      sharerID,
		RecipientID:   recipientID,
		RecipientName: recipientName,
		JoinedAt:      now,
		Active:        true,
	}

	_, err := s.db.sql.Exec(
		`INSERT INTO shared_canvases (id, canvas_id, sharer_id, recipient_id, recipient_name, joined_at, active)
		 VALUES (?, ?, ?, ?, ?, ?, 1)
		 ON CONFLICT(canvas_id, recipient_id) DO UPDATE SET
		   recipient_name = excluded.recipient_name,
		   joined_at = excluded.joined_at,
		   active = 1`,
		sc.ID, canvasID, sharerID, recipientID, recipientName, now.Format(time.DateTime),
	)
	if err != nil {
		return nil, fmt.Errorf("joining canvas: %w", err)
	}

	// The upsert may have kept the original row id.
	return s.get(canvasID, recipientID)
}

// ListByCanvas returns active sharing records for a canvas.
func (s *ShareStore) ListByCanvas(canvasID string) ([]domain.SharedCanvas, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, canvas_id, sharer_id, recipient_id, recipient_name, joined_at, active
		 FROM shared_canvases WHERE canvas_id = ? AND active = 1 ORDER BY joined_at`, canvasID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShares(rows)
}

// ListForRecipient returns active sharing records granting userID access.
func (s *ShareStore) ListForRecipient(userID string) ([]domain.SharedCanvas, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, canvas_id, sharer_id, recipient_id, recipient_name, joined_at, active
		 FROM shared_canvases WHERE recipient_id = ? AND active = 1 ORDER BY joined_at`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanShares(rows)
}

// Remove deactivates a sharing record (soft delete).
func (s *ShareStore) Remove(id string) error {
	res, err := s.db.sql.Exec(`UPDATE shared_canvases SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Purge hard-deletes inactive records older than the given cutoff.
func (s *ShareStore) Purge(before time.Time) (int64, error) {
	res, err := s.db.sql.Exec(
		`DELETE FROM shared_canvases WHERE active = 0 AND joined_at < ?`,
		before.Format(time.DateTime),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ShareStore) get(canvasID, recipientID string) (*domain.SharedCanvas, error) {
	var sc domain.SharedCanvas
	var joinedAt string
	var active int

	err := s.db.sql.QueryRow(
		`SELECT id, canvas_id, sharer_id, recipient_id, recipient_name, joined_at, active
		 FROM shared_canvases WHERE canvas_id = ? AND recipient_id = ?`, canvasID, recipientID,
	).Scan(&sc.ID, &sc.CanvasID, &sc.SharerID, &sc.RecipientID, &sc.RecipientName, &joinedAt, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sc.JoinedAt, _ = time.Parse(time.DateTime, joinedAt)
	sc.Active = active != 0
	return &sc, nil
}

func scanShares(rows *sql.Rows) ([]domain.SharedCanvas, error) {
	var out []domain.SharedCanvas
	for rows.Next() {
		var sc domain.SharedCanvas
		var joinedAt string
		var active int

		if err := rows.Scan(&sc.ID, &sc.CanvasID, &sc.SharerID, &sc.RecipientID,
			&sc.RecipientName, &joinedAt, &active); err != nil {
			continue
		}
		sc.JoinedAt, _ = time.Parse(time.DateTime, joinedAt)
		sc.Active = active != 0
		out = append(out, sc)
	}
	return out, rows.Err()
}
