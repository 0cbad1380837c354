package config

import (
	"os"
	"path/filepath"
	"strconv"
)

func loadProductionConfig(cfg *Config) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil {
		cfg.ServerPort = port
	}

	dataDir := os.Getenv("DATA_DIRECTORY")
	if dataDir == "" {
		dataDir = "/data"
	}

	cfg.CacheDir = filepath.Join(dataDir, "cache")
	cfg.DatabaseFilePath = filepath.Join(dataDir, "library.sqlite")
	cfg.RemoteAuthToken = os.Getenv("AUTH_TOKEN")
	cfg.RemoteBaseURL = os.Getenv("REMOTE_BASE_URL")
	cfg.RemoteUserID = os.Getenv("USER_ID")
	cfg.RemoteUsername = os.Getenv("USERNAME")
	cfg.ServerHost = "127.0.0.1"
	cfg.UserConfigFilePath = filepath.Join(dataDir, "config.yaml")
}
