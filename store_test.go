package session_test

import (
	"context"
	"path/filepath"
	"testing"

	session "github.com/goliatone/go-session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.True(t, session.IsRecordNotFound(err))

	require.NoError(t, store.Set(ctx, "token", "abc"))

	value, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	require.NoError(t, store.Delete(ctx, "token"))
	_, err = store.Get(ctx, "token")
	assert.True(t, session.IsRecordNotFound(err))

	// deleting a missing key is a no-op
	assert.NoError(t, store.Delete(ctx, "token"))
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")

	store := session.NewFileStore(path)
	require.NoError(t, store.Set(ctx, "token", "abc"))
	require.NoError(t, store.Set(ctx, "user", `{"id":"u1"}`))

	// a fresh store over the same path sees the same records
	reopened := session.NewFileStore(path)

	value, err := reopened.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)

	require.NoError(t, reopened.Delete(ctx, "token"))

	_, err = reopened.Get(ctx, "token")
	assert.True(t, session.IsRecordNotFound(err))

	value, err = reopened.Get(ctx, "user")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u1"}`, value)
}

func TestFileStoreMissingFile(t *testing.T) {
	ctx := context.Background()
	store := session.NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))

	_, err := store.Get(ctx, "token")
	assert.True(t, session.IsRecordNotFound(err), "a missing file reads as empty")

	require.NoError(t, store.Set(ctx, "token", "abc"))

	value, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", value)
}
