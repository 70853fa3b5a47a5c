package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCreatesBaseDir(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "archive")
	_, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	info, err := os.Stat(base)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewRejectsEmptyBaseDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestPutObjectWritesFileAndReturnsURI(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	store, err := New(Config{BaseDir: base})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "get_artist/artists/a-1.json", "application/json", []byte(`{"id":"a-1"}`))
	require.NoError(t, err)
	require.Equal(t, "file://"+filepath.Join(base, "get_artist/artists/a-1.json"), uri)

	data, err := os.ReadFile(filepath.Join(base, "get_artist", "artists", "a-1.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"a-1"}`, string(data))
}

func TestPutObjectRejectsEscapingPath(t *testing.T) {
	t.Parallel()

	store, err := New(Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../outside.json", "", []byte("x"))
	require.Error(t, err)
}
