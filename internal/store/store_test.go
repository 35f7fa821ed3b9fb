package store

import (
	"testing"
	"time"

	"github.com/jhomra21/opencanvas/internal/domain"
	"github.com/jhomra21/opencanvas/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCanvas(t *testing.T, db *DB, owner string) *domain.Canvas {
	t.Helper()
	c, err := NewCanvasStore(db).Create(owner, "test canvas")
	require.NoError(t, err)
	return c
}

func testAgent(t *testing.T, db *DB, canvasID string, typ domain.AgentType) *domain.Agent {
	t.Helper()
	a, err := NewAgentStore(db).Create(domain.Agent{
		CanvasID: canvasID,
		UserID:   "user-1",
		Type:     typ,
	})
	require.NoError(t, err)
	return a
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db)
	assert.NotNil(t, db.SQL())
}

func TestMigrations_Applied(t *testing.T) {
	db := testDB(t)

	var count int
	err := db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)

	err := db.migrate()
	require.NoError(t, err)

	var count int
	err = db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"canvases", "agents", "viewports", "shared_canvases"}
	for _, table := range tables {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

// --- Canvas store tests ---

func TestCanvasStore_CreateAndGet(t *testing.T) {
	db := testDB(t)
	cs := NewCanvasStore(db)

	c, err := cs.Create("alice", "sketches")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)

	got, err := cs.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "sketches", got.Name)
	assert.False(t, got.IsShareable)
}

func TestCanvasStore_Get_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := NewCanvasStore(db).Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanvasStore_EnsureDefault_Idempotent(t *testing.T) {
	db := testDB(t)
	cs := NewCanvasStore(db)

	first, err := cs.EnsureDefault("alice", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultCanvasName, first.Name)

	second, err := cs.EnsureDefault("alice", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := cs.EnsureDefault("bob", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCanvasStore_Rename(t *testing.T) {
	db := testDB(t)
	cs := NewCanvasStore(db)
	c := testCanvas(t, db, "alice")

	require.NoError(t, cs.Rename(c.ID, "renamed"))
	got, err := cs.Get(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)

	assert.ErrorIs(t, cs.Rename("nope", "x"), ErrNotFound)
}

func TestCanvasStore_SetShareable(t *testing.T) {
	db := testDB(t)
	cs := NewCanvasStore(db)
	c := testCanvas(t, db, "alice")

	shared, err := cs.SetShareable(c.ID, true)
	require.NoError(t, err)
	assert.True(t, shared.IsShareable)
	require.NotEmpty(t, shared.ShareID)

	byShare, err := cs.GetByShareID(shared.ShareID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byShare.ID)

	// disabling keeps the share id but hides the canvas from lookup
	unshared, err := cs.SetShareable(c.ID, false)
	require.NoError(t, err)
	assert.Equal(t, shared.ShareID, unshared.ShareID)
	_, err = cs.GetByShareID(shared.ShareID)
	assert.ErrorIs(t, err, ErrNotFound)

	// re-enabling preserves the original link
	reshared, err := cs.SetShareable(c.ID, true)
	require.NoError(t, err)
	assert.Equal(t, shared.ShareID, reshared.ShareID)
}

func TestCanvasStore_DeleteCascades(t *testing.T) {
	db := testDB(t)
	cs := NewCanvasStore(db)
	c := testCanvas(t, db, "alice")
	a := testAgent(t, db, c.ID, domain.AgentImageGenerate)

	vs := NewViewportStore(db)
	require.NoError(t, vs.Save(domain.Viewport{UserID: "alice", CanvasID: c.ID, Zoom: 1}))
	_, err := NewShareStore(db).Join(c.ID, "alice", "bob", "Bob")
	require.NoError(t, err)

	require.NoError(t, cs.Delete(c.ID))

	_, err = NewAgentStore(db).Get(a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = vs.Get("alice", c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	shares, err := NewShareStore(db).ListByCanvas(c.ID)
	require.NoError(t, err)
	assert.Empty(t, shares)
}

func TestCanvasStore_ListAccessible(t *testing.T) {
	db := testDB(t)
	cs := NewCanvasStore(db)

	mine := testCanvas(t, db, "alice")
	theirs := testCanvas(t, db, "bob")
	_, err := NewShareStore(db).Join(theirs.ID, "bob", "alice", "Alice")
	require.NoError(t, err)
	testCanvas(t, db, "carol") // not accessible

	list, err := cs.ListAccessible("alice")
	require.NoError(t, err)
	require.Len(t, list, 2)

	ids := []string{list[0].ID, list[1].ID}
	assert.Contains(t, ids, mine.ID)
	assert.Contains(t, ids, theirs.ID)
}

// --- Agent store tests ---

func TestAgentStore_Create_Defaults(t *testing.T) {
	db := testDB(t)
	c := testCanvas(t, db, "alice")

	a := testAgent(t, db, c.ID, domain.AgentImageGenerate)
	assert.Equal(t, domain.StatusIdle, a.Status)
	assert.Equal(t, domain.ModelNormal, a.Model)
	assert.Equal(t, domain.DefaultAgentWidth, a.Width)
	assert.Equal(t, domain.DefaultAgentHeight, a.Height)

	media := testAgent(t, db, c.ID, domain.AgentVideoGenerate)
	assert.Equal(t, domain.StatusProcessing, media.Status)
}

func TestAgentStore_Create_RejectsUnknownType(t *testing.T) {
	db := testDB(t)
	c := testCanvas(t, db, "alice")

	_, err := NewAgentStore(db).Create(domain.Agent{CanvasID: c.ID, Type: "music-generate"})
	assert.Error(t, err)
}

func TestAgentStore_UpdatePromptAndStatus(t *testing.T) {
	db := testDB(t)
	as := NewAgentStore(db)
	c := testCanvas(t, db, "alice")
	a := testAgent(t, db, c.ID, domain.AgentImageGenerate)

	require.NoError(t, as.UpdatePrompt(a.ID, "a red fox"))
	require.NoError(t, as.UpdateStatus(a.ID, domain.StatusSuccess, "https://cdn.example/fox.png"))

	got, err := as.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "a red fox", got.Prompt)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	assert.Equal(t, "https://cdn.example/fox.png", got.GeneratedURL)
}

func TestAgentStore_MoveAndResize(t *testing.T) {
	db := testDB(t)
	as := NewAgentStore(db)
	c := testCanvas(t, db, "alice")
	a := testAgent(t, db, c.ID, domain.AgentImageGenerate)

	require.NoError(t, as.Move(a.ID, 120, -40))
	require.NoError(t, as.Resize(a.ID, 100, -60, 400, 300))

	got, err := as.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got.X)
	assert.Equal(t, -60.0, got.Y)
	assert.Equal(t, 400.0, got.Width)
	assert.Equal(t, 300.0, got.Height)

	assert.Error(t, as.Resize(a.ID, 0, 0, 0, 100))
}

func TestAgentStore_ConnectSymmetric(t *testing.T) {
	db := testDB(t)
	as := NewAgentStore(db)
	c := testCanvas(t, db, "alice")
	gen := testAgent(t, db, c.ID, domain.AgentImageGenerate)
	edit := testAgent(t, db, c.ID, domain.AgentImageEdit)

	require.NoError(t, as.Connect(gen.ID, edit.ID))

	gotGen, err := as.Get(gen.ID)
	require.NoError(t, err)
	gotEdit, err := as.Get(edit.ID)
	require.NoError(t, err)
	assert.Equal(t, edit.ID, gotGen.ConnectedAgentID)
	assert.Equal(t, gen.ID, gotEdit.ConnectedAgentID)
}

func TestAgentStore_ConnectRejectsIncompatible(t *testing.T) {
	db := testDB(t)
	as := NewAgentStore(db)
	c := testCanvas(t, db, "alice")
	gen := testAgent(t, db, c.ID, domain.AgentImageGenerate)
	edit := testAgent(t, db, c.ID, domain.AgentImageEdit)

	err := as.Connect(edit.ID, gen.ID)
	require.Error(t, err)

	// neither side was mutated
	gotGen, _ := as.Get(gen.ID)
	gotEdit, _ := as.Get(edit.ID)
	assert.Empty(t, gotGen.ConnectedAgentID)
	assert.Empty(t, gotEdit.ConnectedAgentID)
}

func TestAgentStore_DisconnectFromEitherEnd(t *testing.T) {
	db := testDB(t)
	as := NewAgentStore(db)
	c := testCanvas(t, db, "alice")
	gen := testAgent(t, db, c.ID, domain.AgentImageGenerate)
	edit := testAgent(t, db, c.ID, domain.AgentImageEdit)

	require.NoError(t, as.Connect(gen.ID, edit.ID))
	require.NoError(t, as.Disconnect(edit.ID))

	gotGen, _ := as.Get(gen.ID)
	gotEdit, _ := as.Get(edit.ID)
	assert.Empty(t, gotGen.ConnectedAgentID)
	assert.Empty(t, gotEdit.ConnectedAgentID)

	// disconnecting an unconnected agent is a no-op
	assert.NoError(t, as.Disconnect(gen.ID))
}

func TestAgentStore_DeleteClearsPeerPointer(t *testing.T) {
	db := testDB(t)
	as := NewAgentStore(db)
	c := testCanvas(t, db, "alice")
	gen := testAgent(t, db, c.ID, domain.AgentImageGenerate)
	edit := testAgent(t, db, c.ID, domain.AgentImageEdit)

	require.NoError(t, as.Connect(gen.ID, edit.ID))
	require.NoError(t, as.Delete(gen.ID))

	gotEdit, err := as.Get(edit.ID)
	require.NoError(t, err)
	assert.Empty(t, gotEdit.ConnectedAgentID)

	assert.ErrorIs(t, as.Delete(gen.ID), ErrNotFound)
}

func TestAgentStore_ListByCanvas(t *testing.T) {
	db := testDB(t)
	as := NewAgentStore(db)
	c := testCanvas(t, db, "alice")
	other := testCanvas(t, db, "alice")

	testAgent(t, db, c.ID, domain.AgentImageGenerate)
	testAgent(t, db, c.ID, domain.AgentVoiceGenerate)
	testAgent(t, db, other.ID, domain.AgentImageEdit)

	list, err := as.ListByCanvas(c.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// --- Viewport store tests ---

func TestViewportStore_SaveAndGet(t *testing.T) {
	db := testDB(t)
	vs := NewViewportStore(db)
	c := testCanvas(t, db, "alice")

	v := domain.Viewport{UserID: "alice", CanvasID: c.ID, TX: 50, TY: -10, Zoom: 1.5}
	require.NoError(t, vs.Save(v))

	got, err := vs.Get("alice", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.TX)
	assert.Equal(t, 1.5, got.Zoom)

	// upsert replaces
	v.Zoom = 0.5
	require.NoError(t, vs.Save(v))
	got, err = vs.Get("alice", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Zoom)
}

func TestViewportStore_SaveClampsZoom(t *testing.T) {
	db := testDB(t)
	vs := NewViewportStore(db)
	c := testCanvas(t, db, "alice")

	require.NoError(t, vs.Save(domain.Viewport{UserID: "alice", CanvasID: c.ID, Zoom: 99}))
	got, err := vs.Get("alice", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxZoom, got.Zoom)
}

// --- Share store tests ---

func TestShareStore_JoinRemoveRejoin(t *testing.T) {
	db := testDB(t)
	ss := NewShareStore(db)
	c := testCanvas(t, db, "alice")

	sc, err := ss.Join(c.ID, "alice", "bob", "Bob")
	require.NoError(t, err)
	assert.True(t, sc.Active)

	require.NoError(t, ss.Remove(sc.ID))
	list, err := ss.ListForRecipient("bob")
	require.NoError(t, err)
	assert.Empty(t, list)

	rejoined, err := ss.Join(c.ID, "alice", "bob", "Bobby")
	require.NoError(t, err)
	assert.Equal(t, sc.ID, rejoined.ID)
	assert.Equal(t, "Bobby", rejoined.RecipientName)
	assert.True(t, rejoined.Active)
}

func TestShareStore_Purge(t *testing.T) {
	db := testDB(t)
	ss := NewShareStore(db)
	c := testCanvas(t, db, "alice")

	sc, err := ss.Join(c.ID, "alice", "bob", "Bob")
	require.NoError(t, err)
	require.NoError(t, ss.Remove(sc.ID))

	// active records are never purged
	n, err := ss.Purge(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
