package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpenRoundtrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name := filepath.Join("patient-1", "report.pdf")
	saved, err := store.SaveStream(name, strings.NewReader("%PDF-1.4 fixture"))
	require.NoError(t, err)
	assert.Equal(t, name, saved)

	file, err := store.Open(name)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fixture", string(content))
}

func TestLocalStorageDeleteMissingFileIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(filepath.Join("patient-1", "gone.pdf")))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	baseDir := t.TempDir()
	store, err := NewLocalStorage(baseDir)
	require.NoError(t, err)

	secret := filepath.Join(filepath.Dir(baseDir), "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("outside"), 0o600))

	_, err = store.Open(filepath.Join("..", filepath.Base(secret)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes storage directory")

	err = store.Delete(filepath.Join("..", filepath.Base(secret)))
	require.Error(t, err)
	_, statErr := os.Stat(secret)
	assert.NoError(t, statErr, "file outside the base directory must be untouched")

	_, err = store.SaveStream("nested/../../escape.txt", strings.NewReader("x"))
	require.Error(t, err)
}

func TestLocalStorageRejectsAbsolutePaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "abs.txt")
	_, err = store.SaveStream(target, strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be relative")

	_, err = store.Open(target)
	assert.Error(t, err)
}
