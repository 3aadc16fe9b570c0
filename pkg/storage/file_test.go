package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestFile_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	backend, err := NewFile(t.TempDir(), false, nil)
	require.NoError(t, err)
	defer backend.Close()

	_, ok, err := backend.Get(ctx, "session:abc:token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, backend.Set(ctx, "session:abc:token", `"tok"`))
	v, ok, err := backend.Get(ctx, "session:abc:token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"tok"`, v)

	require.NoError(t, backend.Delete(ctx, "session:abc:token"))
	require.NoError(t, backend.Delete(ctx, "session:abc:token"))
	_, ok, err = backend.Get(ctx, "session:abc:token")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFile_KeysWithSlashesStayInDir(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFile(dir, false, nil)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Set(context.Background(), "../escape/attempt", "1"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	key, ok := keyFromPath(entries[0].Name())
	require.True(t, ok)
	assert.Equal(t, "../escape/attempt", key)
}

func TestFile_WatchReportsOtherProcessWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	ctx := context.Background()

	// two backends over one directory stand in for two gateway processes
	writer, err := NewFile(dir, false, nil)
	require.NoError(t, err)
	reader, err := NewFile(dir, true, nil)
	require.NoError(t, err)

	cell := NewCell(reader, "prefs:s1:sidebarOpen", true, nil)
	require.True(t, cell.Load(ctx))

	require.NoError(t, writer.Set(ctx, "prefs:s1:sidebarOpen", "false"))
	require.Eventually(t, func() bool { return !cell.Get() }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, writer.Delete(ctx, "prefs:s1:sidebarOpen"))
	require.Eventually(t, func() bool { return cell.Get() && !cell.Present() }, 2*time.Second, 10*time.Millisecond)

	cell.Close()
	require.NoError(t, reader.Close())
	require.NoError(t, writer.Close())
}

func TestFile_IgnoresTempAndForeignFiles(t *testing.T) {
	for _, name := range []string{".tmp-123", "notes.txt", filepath.Join("x", ".tmp-a.json")} {
		if _, ok := keyFromPath(name); ok {
			t.Fatalf("expected %q to be ignored", name)
		}
	}
}

func TestFile_ClosedBackendRejectsWrites(t *testing.T) {
	backend, err := NewFile(t.TempDir(), true, nil)
	require.NoError(t, err)
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())

	assert.ErrorIs(t, backend.Set(context.Background(), "k", "v"), ErrClosed)
	assert.ErrorIs(t, backend.Ping(context.Background()), ErrClosed)
}
