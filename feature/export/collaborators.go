package export

import "context"

// GeometryArtifacts describes what a geometry export produced beyond the
// interchange file itself.
type GeometryArtifacts struct {
	// Textures lists the source images referenced by the exported
	// geometry, as absolute paths. Each is converted to an engine texture.
	Textures []string
}

// GeometryExporter writes the interchange geometry for a scene object.
type GeometryExporter interface {
	ExportGeometry(ctx context.Context, obj SceneObject, target string) (*GeometryArtifacts, error)
}

// TextureBaker renders baked texture images for a scene object into dir
// and returns the written files.
type TextureBaker interface {
	Bake(ctx context.Context, obj SceneObject, dir string) ([]string, error)
}

// ImageConverter writes the engine texture for a source image at target.
type ImageConverter interface {
	Convert(ctx context.Context, source, target string) error
}

// Collaborators bundles the external tool adapters an export pass drives.
// Exporter is required. Baker and Converter may be nil, which skips the
// respective stage.
type Collaborators struct {
	Exporter  GeometryExporter
	Baker     TextureBaker
	Converter ImageConverter
}
