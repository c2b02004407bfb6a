package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/storyblok-devtools/internal/storage/sqlite"
)

func seedDB(t *testing.T, value string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devtools.db")
	store, err := sqlite.NewStore(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "relations", []byte(value)))
	require.NoError(t, store.Close())
	return path
}

func readKey(t *testing.T, path string) string {
	t.Helper()
	store, err := sqlite.NewStore(path, nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	v, err := store.Get(context.Background(), "relations")
	require.NoError(t, err)
	return string(v)
}

func TestSnapshotAndRestore(t *testing.T) {
	dbPath := seedDB(t, `{"v":1}`)
	dir := filepath.Join(t.TempDir(), "snapshots")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	info, err := Snapshot(dbPath, dir, now)
	require.NoError(t, err)
	assert.True(t, info.Verified)
	assert.Equal(t, filepath.Join(dir, "devtools-20260301T120000Z.db"), info.Path)
	assert.Positive(t, info.Size)

	store, err := sqlite.NewStore(dbPath, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "relations", []byte(`{"v":2}`)))
	require.NoError(t, store.Close())

	require.NoError(t, Restore(info.Path, dbPath))
	assert.JSONEq(t, `{"v":1}`, readKey(t, dbPath))
}

func TestSnapshot_MissingSource(t *testing.T) {
	_, err := Snapshot(filepath.Join(t.TempDir(), "nope.db"), t.TempDir(), time.Now())
	assert.ErrorIs(t, err, ErrSourceMissing)
}

func TestVerify_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devtools-20260101T000000Z.db")
	require.NoError(t, os.WriteFile(path, []byte("not a database"), 0o600))
	assert.Error(t, Verify(path))
	assert.Error(t, Restore(path, filepath.Join(t.TempDir(), "target.db")))
}

func TestListAndPrune(t *testing.T) {
	dbPath := seedDB(t, `{}`)
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		_, err := Snapshot(dbPath, dir, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	snapshots, err := List(dir)
	require.NoError(t, err)
	require.Len(t, snapshots, 4)
	assert.Equal(t, base.Add(3*time.Hour), snapshots[0].Timestamp)

	removed, err := Prune(dir, 2)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	snapshots, err = List(dir)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, base.Add(2*time.Hour), snapshots[1].Timestamp)
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestList_MissingDir(t *testing.T) {
	snapshots, err := List(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}
