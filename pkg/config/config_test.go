package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.EqualValues(t, DefaultMaxPasteSize, cfg.MaxPasteSize)
	assert.Equal(t, DefaultAutoSaveInterval, cfg.AutoSaveInterval)
	assert.False(t, cfg.AutoBackup)
	assert.False(t, cfg.AllowPublicAccess)
	assert.Contains(t, cfg.DBPath, "localpaste")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/custom-db")
	t.Setenv("PORT", "8090")
	t.Setenv("MAX_PASTE_SIZE", "1048576")
	t.Setenv("AUTO_SAVE_INTERVAL", "500")
	t.Setenv("AUTO_BACKUP", "true")
	t.Setenv("ALLOW_PUBLIC_ACCESS", "")
	t.Setenv("LOCALPASTE_REINDEX", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom-db", cfg.DBPath)
	assert.Equal(t, 8090, cfg.Port)
	assert.EqualValues(t, 1048576, cfg.MaxPasteSize)
	assert.Equal(t, 500*time.Millisecond, cfg.AutoSaveInterval)
	assert.True(t, cfg.AutoBackup)
	assert.True(t, cfg.AllowPublicAccess, "presence alone toggles public access")
	assert.True(t, cfg.ForceReindex)
}

func TestHumanReadableSize(t *testing.T) {
	t.Setenv("MAX_PASTE_SIZE", "10MB")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.EqualValues(t, 10<<20, cfg.MaxPasteSize)
}

func TestInvalidValuesAreRejected(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load("")
	assert.Error(t, err)

	os.Unsetenv("PORT")
	t.Setenv("MAX_PASTE_SIZE", "-5")
	_, err = Load("")
	assert.Error(t, err)
}

func TestYAMLFileWithEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 4000\ndb_path: /from/file\n"), 0o600))

	t.Setenv("PORT", "5000")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Port, "environment beats the file")
	assert.Equal(t, "/from/file", cfg.DBPath)
}

func TestMissingConfigFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
