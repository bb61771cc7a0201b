package config

import (
	"reflect"
	"strings"

	"hpl3-export/core/logger"
	"hpl3-export/core/paths"
	"hpl3-export/core/server"
	"hpl3-export/core/storage"
	"hpl3-export/core/transform"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Server holds configuration for the HTTP server.
	Server server.Config `mapstructure:"server"`
	// Storage holds configuration for the object storage (e.g., S3, Minio).
	Storage storage.Config `mapstructure:"storage"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
	// Export holds configuration for the export pass.
	Export ExportConfig `mapstructure:"export"`
	// Transform holds configuration for coordinate conversion.
	Transform transform.Config `mapstructure:"transform"`
}

// ExportConfig holds configuration for the export pass itself: where the
// map lives, where exported assets land and which external tools run.
type ExportConfig struct {
	// MapPath is the path of the target .hpm map file. The per-kind
	// documents derive from it by suffix.
	MapPath string `mapstructure:"map_path" default:""`
	// AssetDir is the directory, relative to the project root, where
	// exported geometry and textures are written.
	AssetDir string `mapstructure:"asset_dir" default:"static_objects"`
	// Marker is the directory name identifying the project root.
	Marker string `mapstructure:"marker" default:"SOMA"`
	// ExporterPath is the external geometry exporter executable.
	ExporterPath string `mapstructure:"exporter_path" default:""`
	// ConverterPath is the external image converter executable.
	ConverterPath string `mapstructure:"converter_path" default:""`
	// TimeoutSeconds bounds each external tool invocation.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"120"`
	// SyncDeletions removes orphaned map entries at the end of a pass.
	SyncDeletions bool `mapstructure:"sync_deletions" default:"false"`
}

// MarkerOrDefault returns the configured project-root marker, falling back to the
// engine default when unset.
func (c ExportConfig) MarkerOrDefault() string {
	if c.Marker == "" {
		return paths.DefaultMarker
	}
	return c.Marker
}

// LoadConfig loads configuration from environment variables and .env file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env file if it exists
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist (e.g. production)
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	// Map environment variables to nested keys (e.g. EXPORT_MAP_PATH -> export.map_path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}
