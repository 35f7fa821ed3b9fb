package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create canvases and agents",
		SQL: `
			CREATE TABLE canvases (
				id            TEXT PRIMARY KEY,
				owner_id      TEXT NOT NULL,
				name          TEXT NOT NULL,
				share_id      TEXT,
				is_shareable  INTEGER NOT NULL DEFAULT 0,
				is_default    INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_canvases_owner ON canvases (owner_id);
			CREATE UNIQUE INDEX idx_canvases_share ON canvases (share_id) WHERE share_id IS NOT NULL;

			CREATE TABLE agents (
				id                  TEXT PRIMARY KEY,
				canvas_id           TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
				user_id             TEXT NOT NULL,
				prompt              TEXT NOT NULL DEFAULT '',
				x                   REAL NOT NULL DEFAULT 0,
				y                   REAL NOT NULL DEFAULT 0,
				width               REAL NOT NULL,
				height              REAL NOT NULL,
				type                TEXT NOT NULL,
				status              TEXT NOT NULL,
				model               TEXT NOT NULL DEFAULT 'normal',
				generated_url       TEXT,
				connected_agent_id  TEXT,
				created_at          TEXT NOT NULL DEFAULT (datetime('now')),
				updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_agents_canvas ON agents (canvas_id);
			CREATE INDEX idx_agents_user ON agents (user_id);
		`,
	},
	{
		Version: 2,
		Name:    "create viewports and shared canvases",
		SQL: `
			CREATE TABLE viewports (
				user_id    TEXT NOT NULL,
				canvas_id  TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
				tx         REAL NOT NULL DEFAULT 0,
				ty         REAL NOT NULL DEFAULT 0,
				zoom       REAL NOT NULL DEFAULT 1,
				updated_at TEXT NOT NULL DEFAULT (datetime('now')),
				PRIMARY KEY (user_id, canvas_id)
			);

			CREATE TABLE shared_canvases (
				id              TEXT PRIMARY KEY,
				canvas_id       TEXT NOT NULL REFERENCES canvases(id) ON DELETE CASCADE,
				sharer_id       TEXT NOT NULL,
				recipient_id    TEXT NOT NULL,
				recipient_name  TEXT NOT NULL DEFAULT '',
				joined_at       TEXT NOT NULL DEFAULT (datetime('now')),
				active          INTEGER NOT NULL DEFAULT 1,
				UNIQUE (canvas_id, recipient_id)
			);

			CREATE INDEX idx_shares_recipient ON shared_canvases (recipient_id, active);
		`,
	},
}
