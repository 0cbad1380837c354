package config

import (
	"github.com/pkg/errors"
)

// Service mediates access to the runtime-changeable user settings. The
// deployment-level Config fields never change after startup; UserConfig does,
// and every accepted change is written back to the yaml file so the sync
// interval and download preferences survive a daemon restart.
type Service struct {
	config *Config
}

func NewService(cfg *Config) *Service {
	return &Service{config: cfg}
}

func (s *Service) RetrieveUserConfig() (*UserConfig, error) {
	return s.config.UserConfig, nil
}

// UpdateUserConfig applies the new settings in memory and persists them.
// The in-memory swap happens even if the file write fails, so the running
// daemon honors the change either way.
func (s *Service) UpdateUserConfig(userConfig *UserConfig) error {
	s.config.UserConfig = userConfig

	if err := saveUserConfigFile(userConfig, s.config.UserConfigFilePath); err != nil {
		return errors.WithStack(err)
	}

	return nil
}
