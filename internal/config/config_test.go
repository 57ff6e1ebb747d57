package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"destiny-server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, dir, name, value string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o600))
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "db_password", "s3cret")
	writeSecret(t, dir, "ai_api_key", "sk-test")
	t.Setenv("SECRETS_DIR", dir)

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.DBPassword)
	assert.Equal(t, "sk-test", cfg.AIAPIKey)
	assert.Empty(t, cfg.JWTSecret)
	assert.Empty(t, cfg.InterServiceSecret)
	assert.Equal(t, 1800, cfg.PreviewThreshold)
	assert.Equal(t, 3000, cfg.FlushSizeThreshold)
	assert.Equal(t, 30*time.Second, cfg.FlushTimeThreshold)
	assert.Equal(t, 10*time.Minute, cfg.ProgressTTL)
	assert.Equal(t, 60*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.GenerationDrain)
	assert.Equal(t, "memory", cfg.ProgressStore)
	assert.NotContains(t, cfg.GetMaskedDSN(), "s3cret")
	assert.Contains(t, cfg.GetDSN(), "s3cret")
}

func TestLoadConfig_MissingDBPassword(t *testing.T) {
	t.Setenv("SECRETS_DIR", t.TempDir())
	_, err := config.LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_EnvFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "db_password", "pw")
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("AI_CLIENT_TYPE=ollama\nPREVIEW_THRESHOLD=500\n"), 0o600))
	t.Setenv("SECRETS_DIR", dir)
	t.Setenv("PROGRESS_STORE", "redis")
	t.Setenv("AI_CLIENT_TYPE", "")
	os.Unsetenv("AI_CLIENT_TYPE")
	t.Setenv("PREVIEW_THRESHOLD", "")
	os.Unsetenv("PREVIEW_THRESHOLD")

	cfg, err := config.LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.AIClientType)
	assert.Equal(t, 500, cfg.PreviewThreshold)
	assert.Equal(t, "redis", cfg.ProgressStore)
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{AIClientType: "openai", ProgressStore: "disk", PreviewThreshold: -1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROGRESS_STORE")
	assert.Contains(t, err.Error(), "PREVIEW_THRESHOLD")
	assert.Contains(t, err.Error(), "ai_api_key")
	assert.Contains(t, err.Error(), "FLUSH_SIZE_THRESHOLD")
}

func TestGetAllowedOrigins(t *testing.T) {
	cfg := &config.Config{CORSAllowedOrigins: "http://a.com, http://b.com"}
	assert.Equal(t, []string{"http://a.com", "http://b.com"}, cfg.GetAllowedOrigins())
}
