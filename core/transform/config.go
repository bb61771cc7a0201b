package transform

// Config holds configuration for coordinate conversion.
type Config struct {
	// Variant selects the conversion pipeline: canonical or rig-legacy.
	Variant string `mapstructure:"variant" default:"canonical"`
}
