package config

import (
	"os"
	"path/filepath"
	"time"
)

// SetDefaults sets default values for all configuration fields
func SetDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5 * time.Minute
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 256 << 20 // 256 MiB
	}
	if cfg.Server.PIDFile == "" {
		cfg.Server.PIDFile = filepath.Join(os.TempDir(), "noos-server.pid")
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "noos"
	}
	if cfg.Database.Name == "" {
		cfg.Database.Name = "noos"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Pool.MaxOpen == 0 {
		cfg.Database.Pool.MaxOpen = 25
	}
	if cfg.Database.Pool.MaxIdle == 0 {
		cfg.Database.Pool.MaxIdle = 5
	}
	if cfg.Database.Pool.MaxLifetime == 0 {
		cfg.Database.Pool.MaxLifetime = 5 * time.Minute
	}

	// Worker pool defaults
	if cfg.Workers.File.Workers == 0 {
		cfg.Workers.File.Workers = 2
	}
	if cfg.Workers.File.Queue == 0 {
		cfg.Workers.File.Queue = 4
	}
	if cfg.Workers.Noos.Workers == 0 {
		cfg.Workers.Noos.Workers = 1
	}
	if cfg.Workers.Noos.Queue == 0 {
		cfg.Workers.Noos.Queue = 2
	}
	if cfg.Workers.Default.Workers == 0 {
		cfg.Workers.Default.Workers = 1
	}
	if cfg.Workers.Default.Queue == 0 {
		cfg.Workers.Default.Queue = 2
	}
	if cfg.Workers.ShutdownTimeout == 0 {
		cfg.Workers.ShutdownTimeout = 30 * time.Second
	}

	// File storage defaults
	if cfg.Files.Dir == "" {
		cfg.Files.Dir = filepath.Join(os.TempDir(), "noos")
	}
	if cfg.Files.MaxUploadRows == 0 {
		cfg.Files.MaxUploadRows = 500000
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
