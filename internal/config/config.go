package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Backend     BackendConfig             `json:"backend"`
	Viewer      ViewerConfig              `json:"viewer"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// BackendConfig points at the AI tutoring endpoint. The bearer credential is
// read from EXAMV2_BACKEND_TOKEN rather than stored in the file.
type BackendConfig struct {
	URL      string `json:"url"`
	Provider string `json:"provider"`
}

// ViewerMethod is one rendering strategy. URLTemplate must contain %s, which
// receives the url-escaped document location (e.g. ".../viewer?file=%s").
type ViewerMethod struct {
	Name        string `json:"name"`
	URLTemplate string `json:"url_template"`
}

type ViewerConfig struct {
	Methods               []ViewerMethod `json:"methods"`
	AttemptTimeoutSeconds int            `json:"attempt_timeout_seconds"`
	MaxAttempts           int            `json:"max_attempts"`
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if len(cfg.Databases) == 0 {
		return nil, fmt.Errorf("databases must be configured")
	}
	if cfg.Backend.URL == "" {
		return nil, fmt.Errorf("backend url must be configured")
	}

	// resolve relative sqlite paths against the config file location
	for name, dbCfg := range cfg.Databases {
		if dbCfg.DSN != "" && dbCfg.DSN != ":memory:" && !filepath.IsAbs(dbCfg.DSN) {
			dbCfg.DSN = filepath.Join(filepath.Dir(absPath), dbCfg.DSN)
			cfg.Databases[name] = dbCfg
		}
	}

	return &cfg, nil
}
