package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memtensor/openmem-mcp/internal/config"
)

// clearMemosEnv unsets every MEMOS_* variable the loader reads so tests see a
// clean environment regardless of the host shell.
func clearMemosEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"MEMOS_API_KEY", "MEMOS_USER_ID", "MEMOS_BASE_URL", "MEMOS_CHANNEL"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearMemosEnv(t)

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "DEFAULT", cfg.Channel)
	assert.Empty(t, cfg.APIKey)
	assert.Empty(t, cfg.UserID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearMemosEnv(t)
	t.Setenv("MEMOS_API_KEY", "sk-test")
	t.Setenv("MEMOS_USER_ID", "alice")
	t.Setenv("MEMOS_BASE_URL", "http://localhost:8093/api/openmem/v1/")
	t.Setenv("MEMOS_CHANNEL", "cursor")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, "http://localhost:8093/api/openmem/v1", cfg.BaseURL,
		"trailing slash must be trimmed so path joining stays predictable")
	assert.Equal(t, "CURSOR", cfg.Channel,
		"channel must be normalized to upper-case at load time")
}

// TestLoad_FileThenEnv verifies the precedence chain: defaults < file < env.
func TestLoad_FileThenEnv(t *testing.T) {
	clearMemosEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"api_key: file-key\nuser_id: file-user\nchannel: cline\n"), 0o600))

	t.Setenv("MEMOS_USER_ID", "env-user")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.APIKey, "file value must apply when env is unset")
	assert.Equal(t, "env-user", cfg.UserID, "env must take precedence over the file")
	assert.Equal(t, "CLINE", cfg.Channel)
	assert.Equal(t, config.DefaultBaseURL, cfg.BaseURL, "unset fields keep their defaults")
}

// TestLoad_MissingFileIsNotAnError verifies env-only operation, the common
// case when an MCP client launches the binary with a bare environment.
func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	clearMemosEnv(t)
	t.Setenv("MEMOS_API_KEY", "sk-env")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.APIKey)
}

func TestLoad_MalformedFile(t *testing.T) {
	clearMemosEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: [unclosed\n"), 0o600))

	_, err := config.Load(path)
	require.Error(t, err)

	var cfgErr *config.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

// TestLoad_ExpandsAPIKeyReference verifies ${VAR} expansion so the secret can
// live in the environment while the file only references it.
func TestLoad_ExpandsAPIKeyReference(t *testing.T) {
	clearMemosEnv(t)
	t.Setenv("MY_SECRET", "sk-expanded")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: ${MY_SECRET}\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-expanded", cfg.APIKey)
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &config.Config{UserID: "alice", Channel: "DEFAULT"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMOS_API_KEY",
		"the error must name the variable the user has to set")

	var cfgErr *config.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestValidate_MissingUserID(t *testing.T) {
	cfg := &config.Config{APIKey: "sk-test", Channel: "DEFAULT"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MEMOS_USER_ID")
}

func TestValidate_UnknownChannel(t *testing.T) {
	cfg := &config.Config{APIKey: "sk-test", UserID: "alice", Channel: "SLACK"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown channel")
	assert.Contains(t, err.Error(), "SLACK")
}

func TestValidate_OK(t *testing.T) {
	cfg := &config.Config{APIKey: "sk-test", UserID: "alice", Channel: "CURSOR"}
	assert.NoError(t, cfg.Validate())
}
