package config

import "time"

func loadTestConfig(cfg *Config) {
	cfg.BackfillBaseDelay = 10 * time.Millisecond
	cfg.BackfillMaxDelay = 100 * time.Millisecond
	cfg.BackfillWorkers = 1
	cfg.CacheDir = "./tmp/test-cache"
	cfg.DatabaseFilePath = ":memory:"
	cfg.RemoteBaseURL = "http://localhost:4000"
	cfg.ServerHost = "127.0.0.1"
	cfg.ServerPort = 0
	cfg.UserConfigFilePath = "./tmp/test-config.yaml"
}
