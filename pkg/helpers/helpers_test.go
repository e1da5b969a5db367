package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeLastN(t *testing.T) {
	s := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{4, 5}, SafeLastN(s, 2))
	assert.Equal(t, s, SafeLastN(s, 10))
	assert.Empty(t, SafeLastN(s, 0))
	assert.Empty(t, SafeLastN(s, -1))
	assert.Empty(t, SafeLastN([]int(nil), 3))
}

func TestLoadEnvFile_ExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.env")
	require.NoError(t, os.WriteFile(path, []byte("VAULT_TEST_EXPLICIT=from-file\n"), 0o600))

	t.Setenv("ENV_FILE", path)
	t.Setenv("VAULT_TEST_EXPLICIT", "")
	require.NoError(t, os.Unsetenv("VAULT_TEST_EXPLICIT"))

	require.NoError(t, LoadEnvFile(1))
	assert.Equal(t, "from-file", os.Getenv("VAULT_TEST_EXPLICIT"))
}

func TestLoadEnvFile_ParentDirectory(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte("VAULT_TEST_PARENT=found\nVAULT_TEST_KEEP=file\n"), 0o600))

	t.Chdir(nested)
	t.Setenv("ENV_FILE", "")
	t.Setenv("VAULT_TEST_KEEP", "process")
	t.Setenv("VAULT_TEST_PARENT", "")
	require.NoError(t, os.Unsetenv("VAULT_TEST_PARENT"))

	require.NoError(t, LoadEnvFile(2))
	assert.Equal(t, "found", os.Getenv("VAULT_TEST_PARENT"))
	assert.Equal(t, "process", os.Getenv("VAULT_TEST_KEEP"))
}

func TestLoadEnvFile_NotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV_FILE", "")

	err := LoadEnvFile(1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not find .env file")
}
