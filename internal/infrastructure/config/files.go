package config

// FilesConfig holds temp storage and upload limits for the ingestion
// and download paths
type FilesConfig struct {
	// Directory for error artifacts and download results. Created at
	// startup when missing. Cleanup is left to an external janitor.
	Dir string `mapstructure:"dir"`

	// Hard cap on data rows per uploaded TSV
	MaxUploadRows int `mapstructure:"max_upload_rows" validate:"min=1"`
}
