package config

import (
	"os"
	"strconv"
)

func loadDevelopmentConfig(cfg *Config) {
	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err == nil {
		cfg.ServerPort = port
	}

	cfg.CacheDir = "./tmp/cache"
	cfg.DatabaseDebug = true
	cfg.DatabaseFilePath = "./tmp/library.sqlite"
	cfg.RemoteAuthToken = os.Getenv("AUTH_TOKEN")
	cfg.RemoteBaseURL = envOrDefault("REMOTE_BASE_URL", "http://localhost:4000")
	cfg.RemoteUserID = os.Getenv("USER_ID")
	cfg.RemoteUsername = os.Getenv("USERNAME")
	cfg.ServerHost = "127.0.0.1"
	cfg.UserConfigFilePath = "./tmp/config.yaml"
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
