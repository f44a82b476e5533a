// Package config loads the daemon configuration from a YAML file with
// optional .env overrides.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	DataDir       string  `yaml:"dataDir"`
	BundleDir     string  `yaml:"bundleDir"`
	RemoteURL     string  `yaml:"remoteUrl"`
	QuotaFraction float64 `yaml:"quotaFraction"`
	WarnFraction  float64 `yaml:"warnFraction"`
	SyncInterval  string  `yaml:"syncInterval"`
}

// Load reads the YAML file at path, then applies environment overrides. A
// .env file next to the working directory is loaded first if present.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	var config Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if v := os.Getenv("OFFLINE_DATA_DIR"); v != "" {
		config.DataDir = v
	}
	if v := os.Getenv("OFFLINE_BUNDLE_DIR"); v != "" {
		config.BundleDir = v
	}
	if v := os.Getenv("OFFLINE_REMOTE_URL"); v != "" {
		config.RemoteURL = v
	}

	if config.DataDir == "" {
		config.DataDir = "data"
	}
	if config.BundleDir == "" {
		config.BundleDir = "bundles"
	}
	if config.SyncInterval == "" {
		config.SyncInterval = "15m"
	}
	return config, nil
}
