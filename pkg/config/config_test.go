package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUserConfigDefaults(t *testing.T) {
	userConfig, err := loadUserConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 15, userConfig.SyncIntervalMinutes)
	assert.True(t, userConfig.SyncOnStartup)
	assert.True(t, userConfig.DownloadPDFs)
}

func TestLoadUserConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("sync_interval_minutes: 5\ndownload_pdfs: false\n"), 0644)
	require.NoError(t, err)

	userConfig, err := loadUserConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5, userConfig.SyncIntervalMinutes)
	assert.False(t, userConfig.DownloadPDFs)
	// Unset keys keep their defaults.
	assert.True(t, userConfig.SyncOnStartup)
}

func TestLoadUserConfigEnvOverride(t *testing.T) {
	t.Setenv("TSUNDOKU_SYNC_INTERVAL_MINUTES", "45")

	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("sync_interval_minutes: 5\n"), 0644)
	require.NoError(t, err)

	userConfig, err := loadUserConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 45, userConfig.SyncIntervalMinutes)
}

func TestUpdateUserConfigPersists(t *testing.T) {
	cfg := NewForTest()
	cfg.UserConfigFilePath = filepath.Join(t.TempDir(), "config.yaml")
	svc := NewService(cfg)

	updated := &UserConfig{SyncIntervalMinutes: 5, SyncOnStartup: false, DownloadPDFs: false}
	require.NoError(t, svc.UpdateUserConfig(updated))

	// The running daemon sees the change immediately.
	current, err := svc.RetrieveUserConfig()
	require.NoError(t, err)
	assert.Equal(t, updated, current)

	// And it survives a reload from disk.
	loaded, err := loadUserConfig(cfg.UserConfigFilePath)
	require.NoError(t, err)
	assert.Equal(t, updated, loaded)
}

func TestSaveUserConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	saved := &UserConfig{SyncIntervalMinutes: 30, SyncOnStartup: false, DownloadPDFs: true}
	require.NoError(t, saveUserConfigFile(saved, path))

	loaded, err := loadUserConfig(path)
	require.NoError(t, err)

	assert.Equal(t, saved, loaded)
}
