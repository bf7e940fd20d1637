package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds all loom server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr        string `json:"listen_addr"`
	DBPath            string `json:"db_path"`
	LogLevel          string `json:"log_level"`
	DefaultMaxIters   int    `json:"default_max_iterations"`
	SchedulerEnabled  bool   `json:"scheduler_enabled"`
	SeedBuiltinGraphs bool   `json:"seed_builtin_graphs"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:        ":4200",
		DBPath:            filepath.Join(loomDir(), "loom.db"),
		LogLevel:          "info",
		DefaultMaxIters:   15,
		SchedulerEnabled:  true,
		SeedBuiltinGraphs: true,
	}
}

func loomDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".loom"
	}
	return filepath.Join(home, ".loom")
}

func settingsPath() string {
	return filepath.Join(loomDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("LOOM_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LOOM_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LOOM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOOM_DEFAULT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultMaxIters = n
		}
	}
	if v := os.Getenv("LOOM_SCHEDULER_ENABLED"); v != "" {
		cfg.SchedulerEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LOOM_SEED_BUILTIN_GRAPHS"); v != "" {
		cfg.SeedBuiltinGraphs = v == "true" || v == "1"
	}

	// The loop bound must stay in [1, 100]; out-of-range values fall back
	// to the default rather than failing startup.
	if cfg.DefaultMaxIters < 1 || cfg.DefaultMaxIters > 100 {
		cfg.DefaultMaxIters = defaultConfig().DefaultMaxIters
	}

	return cfg
}
