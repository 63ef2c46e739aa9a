package config

import "time"

// ServerConfig holds the HTTP API server configuration
type ServerConfig struct {
	// Listen address (host:port)
	Address string `mapstructure:"address" validate:"required"`

	// Read timeout for incoming requests. Uploads are bounded by
	// MaxUploadBytes, not time, so this stays generous.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// Write timeout for responses; result downloads stream within it
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Maximum accepted multipart upload size in bytes
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"min=1"`

	// PID file guarding against concurrent server instances
	PIDFile string `mapstructure:"pid_file"`
}
