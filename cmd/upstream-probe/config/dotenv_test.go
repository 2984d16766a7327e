package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDotEnv_SetsVariables(t *testing.T) {
	path := writeEnvFile(t, `
# probe settings
UPSTREAM_TOKENS_PER_SECOND=2
export PROBE_TEST_KEY="secret value"
PROBE_TEST_SINGLE='quoted'
`)
	t.Setenv("UPSTREAM_TOKENS_PER_SECOND", "")
	t.Setenv("PROBE_TEST_KEY", "")
	t.Setenv("PROBE_TEST_SINGLE", "")
	os.Unsetenv("UPSTREAM_TOKENS_PER_SECOND")
	os.Unsetenv("PROBE_TEST_KEY")
	os.Unsetenv("PROBE_TEST_SINGLE")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "2", os.Getenv("UPSTREAM_TOKENS_PER_SECOND"))
	assert.Equal(t, "secret value", os.Getenv("PROBE_TEST_KEY"))
	assert.Equal(t, "quoted", os.Getenv("PROBE_TEST_SINGLE"))
}

func TestLoadDotEnv_EnvironmentWins(t *testing.T) {
	path := writeEnvFile(t, "PROBE_TEST_PRESET=from-file\n")
	t.Setenv("PROBE_TEST_PRESET", "from-env")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv("PROBE_TEST_PRESET"))
}

func TestLoadDotEnv_MalformedLineErrors(t *testing.T) {
	path := writeEnvFile(t, "JUST_A_WORD\n")

	err := LoadDotEnv(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected KEY=VALUE")
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
	assert.True(t, os.IsNotExist(err))
}
