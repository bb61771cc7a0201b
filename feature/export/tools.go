package export

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"hpl3-export/core/config"
)

// ExternalToolError wraps a failed external tool invocation with its
// captured output.
type ExternalToolError struct {
	Tool   string
	Output string
	Err    error
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("external tool %s: %v", e.Tool, e.Err)
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// Runner executes external tools with a bounded runtime.
type Runner struct {
	// Timeout bounds each invocation. Zero means two minutes.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Run invokes the tool and waits for it to finish. The combined output is
// kept on the error for diagnosis; successful runs discard it.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if r.Logger != nil {
		r.Logger.Debug("Ran external tool",
			zap.String("tool", name), zap.Strings("args", args), zap.Error(err))
	}
	if err != nil {
		return &ExternalToolError{Tool: name, Output: string(out), Err: err}
	}
	return nil
}

// CommandConverter converts images by invoking the configured converter
// executable with source and target arguments.
type CommandConverter struct {
	Path   string
	Runner *Runner
}

func (c *CommandConverter) Convert(ctx context.Context, source, target string) error {
	return c.Runner.Run(ctx, c.Path, source, target)
}

// imageExtensions are the source texture formats picked up next to an
// exported geometry file.
var imageExtensions = map[string]bool{
	".png": true, ".tga": true, ".jpg": true, ".jpeg": true, ".bmp": true,
}

// CommandExporter shells out to an external geometry exporter, passing
// the object name, mesh identifier and target path. Source images the
// tool writes next to the geometry are reported as artifacts.
type CommandExporter struct {
	Path   string
	Runner *Runner
}

func (e *CommandExporter) ExportGeometry(ctx context.Context, obj SceneObject, target string) (*GeometryArtifacts, error) {
	if err := e.Runner.Run(ctx, e.Path, obj.Name, obj.Mesh, target); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Dir(target))
	if err != nil {
		return nil, err
	}
	art := &GeometryArtifacts{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			art.Textures = append(art.Textures, filepath.Join(filepath.Dir(target), entry.Name()))
		}
	}
	return art, nil
}

// ToolCollaborators builds the collaborator set from the configured
// external tool paths. Unset paths leave the respective stage nil.
func ToolCollaborators(cfg config.ExportConfig, logger *zap.Logger) Collaborators {
	runner := &Runner{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		Logger:  logger,
	}
	collab := Collaborators{}
	if cfg.ExporterPath != "" {
		collab.Exporter = &CommandExporter{Path: cfg.ExporterPath, Runner: runner}
	}
	if cfg.ConverterPath != "" {
		collab.Converter = &CommandConverter{Path: cfg.ConverterPath, Runner: runner}
	}
	return collab
}
