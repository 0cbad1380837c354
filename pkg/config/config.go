package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

type Config struct {
	BackfillBaseDelay         time.Duration
	BackfillMaxDelay          time.Duration
	BackfillMaxRetries        int
	BackfillWorkers           int
	CacheDir                  string
	DatabaseBusyTimeout       time.Duration
	DatabaseConnectRetryCount int
	DatabaseConnectRetryDelay time.Duration
	DatabaseDebug             bool
	DatabaseFilePath          string
	DatabaseMaxRetries        int
	Hostname                  string
	MutationDrainInterval     time.Duration
	RemoteAuthToken           string
	RemoteBaseURL             string
	RemoteTimeout             time.Duration
	RemoteUserID              string
	RemoteUsername            string
	ServerHost                string
	ServerPort                int
	SyncPageSize              int

	UserConfig         *UserConfig
	UserConfigFilePath string
}

const environmentENV = "ENVIRONMENT"

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		BackfillBaseDelay:         2 * time.Second,
		BackfillMaxDelay:          2 * time.Minute,
		BackfillMaxRetries:        6,
		BackfillWorkers:           4,
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		Hostname:                  hostname,
		MutationDrainInterval:     30 * time.Second,
		RemoteTimeout:             30 * time.Second,
		ServerPort:                4249,
		SyncPageSize:              20,
	}

	switch os.Getenv(environmentENV) {
	case "development", "":
		loadDevelopmentConfig(cfg)
	case "test":
		loadTestConfig(cfg)
	case "production":
		loadProductionConfig(cfg)
	}

	userConfig, err := loadUserConfig(cfg.UserConfigFilePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	cfg.UserConfig = userConfig

	return cfg, nil
}

// NewForTest returns a config with test defaults and no user config file.
func NewForTest() *Config {
	cfg := &Config{
		BackfillMaxRetries:        6,
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 1,
		DatabaseConnectRetryDelay: time.Millisecond,
		DatabaseMaxRetries:        5,
		MutationDrainInterval:     time.Hour,
		RemoteTimeout:             time.Second,
		SyncPageSize:              20,
		UserConfig:                loadDefaultUserConfig(),
	}
	loadTestConfig(cfg)
	return cfg
}
