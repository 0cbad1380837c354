package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// UserConfig holds the settings a user can change at runtime, as opposed to
// the deployment-level settings in Config. It's persisted as a yaml file so
// it survives restarts.
type UserConfig struct {
	SyncIntervalMinutes int  `koanf:"sync_interval_minutes" json:"sync_interval_minutes"`
	SyncOnStartup       bool `koanf:"sync_on_startup" json:"sync_on_startup"`
	DownloadPDFs        bool `koanf:"download_pdfs" json:"download_pdfs"`
}

const envPrefix = "TSUNDOKU_"

func loadUserConfig(configFilePath string) (*UserConfig, error) {
	k := koanf.New(".")

	userConfig := loadDefaultUserConfig()

	if _, err := os.Stat(configFilePath); err == nil {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, errors.WithStack(err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.WithStack(err)
	}

	// Environment variables override the file, e.g.
	// TSUNDOKU_SYNC_INTERVAL_MINUTES=15.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", userConfig); err != nil {
		return nil, errors.WithStack(err)
	}

	return userConfig, nil
}

func loadDefaultUserConfig() *UserConfig {
	return &UserConfig{
		SyncIntervalMinutes: 15,
		SyncOnStartup:       true,
		DownloadPDFs:        true,
	}
}

func saveUserConfigFile(userConfig *UserConfig, userConfigFilePath string) error {
	// Ensure config directory exists.
	if err := os.MkdirAll(filepath.Dir(userConfigFilePath), 0755); err != nil {
		return errors.WithStack(err)
	}

	data, err := yaml.Parser().Marshal(map[string]interface{}{
		"sync_interval_minutes": userConfig.SyncIntervalMinutes,
		"sync_on_startup":       userConfig.SyncOnStartup,
		"download_pdfs":         userConfig.DownloadPDFs,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.WriteFile(userConfigFilePath, data, 0644); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
