package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jhomra21/opencanvas/internal/domain"
	"github.com/jhomra21/opencanvas/internal/logging"
)

// ViewportCache is a local, latency-hiding mirror of saved viewports. Each
// entry lives in its own JSON file named viewport_<userId>_<canvasId>.json
// under the cache directory. Entries are advisory: the persisted store
// remains authoritative.
type ViewportCache struct {
	dir string
	log *logging.Logger
}

// cachedViewport is the on-disk entry format.
type cachedViewport struct {
	TX          float64   `json:"tx"`
	TY          float64   `json:"ty"`
	Zoom        float64   `json:"zoom"`
	LastUpdated time.Time `json:"lastUpdated"`
	CanvasID    string    `json:"canvasId"`
	UserID      string    `json:"userId"`
}

// NewViewportCache creates a cache rooted at dir, creating it if needed.
func NewViewportCache(dir string, log *logging.Logger) (*ViewportCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating viewport cache dir: %w", err)
	}
	return &ViewportCache{dir: dir, log: log.Sub("viewport-cache")}, nil
}

// Put writes the viewport for its (user, canvas) key.
func (c *ViewportCache) Put(v domain.Viewport) error {
	entry := cachedViewport{
		TX:          v.TX,
		TY:          v.TY,
		Zoom:        domain.ClampZoom(v.Zoom),
		LastUpdated: time.Now(),
		CanvasID:    v.CanvasID,
		UserID:      v.UserID,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(v.UserID, v.CanvasID), data, 0o600)
}

// Get returns the cached viewport, or ErrNotFound if absent or unreadable.
func (c *ViewportCache) Get(userID, canvasID string) (*domain.Viewport, error) {
	data, err := os.ReadFile(c.path(userID, canvasID))
	if err != nil {
		return nil, ErrNotFound
	}

	var entry cachedViewport
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt entry is treated as missing, not fatal.
		c.log.Warn().Err(err).Str("user", userID).Str("canvas", canvasID).Msg("discarding corrupt viewport cache entry")
		return nil, ErrNotFound
	}

	return &domain.Viewport{
		UserID:    entry.UserID,
		CanvasID:  entry.CanvasID,
		TX:        entry.TX,
		TY:        entry.TY,
		Zoom:      domain.ClampZoom(entry.Zoom),
		UpdatedAt: entry.LastUpdated,
	}, nil
}

// Remove deletes the entry for (user, canvas). Missing entries are fine.
func (c *ViewportCache) Remove(userID, canvasID string) {
	os.Remove(c.path(userID, canvasID))
}

// Purge deletes entries whose lastUpdated is older than maxAge. Returns the
// number of entries removed.
func (c *ViewportCache) Purge(maxAge time.Duration) int {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "viewport_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		full := filepath.Join(c.dir, name)

		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		var entry cachedViewport
		stale := json.Unmarshal(data, &entry) != nil || entry.LastUpdated.Before(cutoff)
		if stale {
			if os.Remove(full) == nil {
				removed++
			}
		}
	}

	if removed > 0 {
		c.log.Info().Int("removed", removed).Msg("purged stale viewport cache entries")
	}
	return removed
}

func (c *ViewportCache) path(userID, canvasID string) string {
	return filepath.Join(c.dir, fmt.Sprintf("viewport_%s_%s.json", sanitize(userID), sanitize(canvasID)))
}

// sanitize keeps cache keys filesystem-safe.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}
