package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	// Use in-memory SQLite database for testing
	store, err := NewSQLiteStore(logger, ":memory:")
	if err != nil {
		t.Fatal(err)
	}

	cleanup := func() {
		store.Close()
	}

	return store, cleanup
}

func TestNewSQLiteStore(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NotNil(t, store)
	assert.NotNil(t, store.db)
}

func TestInit(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	err := store.Init()
	assert.NoError(t, err)

	tables := []string{"forges", "forge_members", "contributions", "ai_prompts", "briefings", "forge_state"}

	for _, table := range tables {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "Table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestInitIdempotent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, store.Init())
	assert.NoError(t, store.Init())
}

func TestPersistenceAcrossReopen(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dbPath := filepath.Join(t.TempDir(), "forge.db")

	store, err := NewSQLiteStore(logger, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	assert.NoError(t, store.Init())

	forge := Forge{
		ID:        "f0000000-0000-0000-0000-000000000001",
		Goal:      "Survive a restart",
		Status:    ForgeStatusActive,
		CreatedAt: time.Now(),
	}
	assert.NoError(t, store.CreateForge(context.Background(), forge))

	// Close checkpoints the WAL, so a fresh open must see the row
	assert.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(logger, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	assert.NoError(t, reopened.Init())

	got, err := reopened.GetForge(context.Background(), forge.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Survive a restart", got.Goal)
}

func TestCheckpoint(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	dbPath := filepath.Join(t.TempDir(), "forge.db")

	store, err := NewSQLiteStore(logger, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	assert.NoError(t, store.Init())

	result, err := store.Checkpoint()
	assert.NoError(t, err)
	assert.Zero(t, result.Busy)
	assert.Equal(t, result.Log, result.Checkpointed)
}
