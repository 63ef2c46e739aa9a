package config

import "time"

// WorkersConfig holds the worker pool sizing. Each pool has a fixed
// number of long-lived workers and a bounded FIFO queue; a full queue
// rejects submissions instead of blocking.
type WorkersConfig struct {
	// File pool: uploads and downloads
	File PoolSizeConfig `mapstructure:"file"`

	// Noos pool: algorithm runs
	Noos PoolSizeConfig `mapstructure:"noos"`

	// Default pool: anything not routed explicitly
	Default PoolSizeConfig `mapstructure:"default"`

	// Graceful shutdown timeout shared by all pools
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// PoolSizeConfig holds one pool's parallelism and queue capacity
type PoolSizeConfig struct {
	// Number of worker goroutines
	Workers int `mapstructure:"workers" validate:"min=1"`

	// Queue capacity; 0 means submissions only succeed when a worker is idle
	Queue int `mapstructure:"queue" validate:"min=0"`
}
