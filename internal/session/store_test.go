package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func testSecretStore(t *testing.T, s SecretStore) {
	t.Helper()

	_, err := s.Get("missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	require.NoError(t, s.Set("a", "1"))
	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "3"))

	v, err := s.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"))
	_, err = s.Get("a")
	assert.ErrorIs(t, err, ErrSecretNotFound)

	v, err = s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secrets.json")
	s := NewFileStore(path)
	testSecretStore(t, s)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Get("a")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	testSecretStore(t, NewKeyringStore("caja-test"))
}

func TestNewSecretStore(t *testing.T) {
	file := filepath.Join(t.TempDir(), "s.json")

	s, err := NewSecretStore(StoreFile, "caja", file, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	keyring.MockInit()
	s, err = NewSecretStore(StoreKeyring, "caja", file, nil)
	require.NoError(t, err)
	assert.IsType(t, &KeyringStore{}, s)

	_, err = NewSecretStore("vault", "caja", "", nil)
	assert.Error(t, err)
}

func TestNewSecretStoreFallsBackWithoutKeyring(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)

	file := filepath.Join(t.TempDir(), "s.json")
	s, err := NewSecretStore(StoreKeyring, "caja", file, nil)
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)
	assert.Equal(t, file, s.(*FileStore).Path())

	testSecretStore(t, s)
}
