package paths

import (
	"path"
	"regexp"
	"strings"
)

// DefaultMarker is the project-root marker segment used by the HPL3 game
// directory layout. Everything before (and including) this segment is
// stripped when computing short paths.
const DefaultMarker = "SOMA"

var nonAlnum = regexp.MustCompile(`[^0-9a-zA-Z]+`)

// Canonical normalizes a file path to forward slashes and collapses
// redundant separators and dot segments. Trailing slashes are removed.
func Canonical(p string) string {
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, `\`, "/")
	return path.Clean(p)
}

// Short canonicalizes p and strips everything up to and including the last
// "/<marker>/" segment. If the marker is absent the canonical path is
// returned unchanged, so paths that are already project-relative pass
// through.
func Short(p, marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}
	c := Canonical(p)
	needle := "/" + marker + "/"
	if i := strings.LastIndex(c, needle); i >= 0 {
		return c[i+len(needle):]
	}
	return c
}

// ProjectRoot recovers the absolute prefix of dir ending in the marker
// segment, so short paths can be resolved back to absolute ones for
// deletion. Returns "" when dir is not under a marker directory, in which
// case short paths are treated as relative to the working directory.
func ProjectRoot(dir, marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}
	c := Canonical(dir)
	needle := "/" + marker + "/"
	if i := strings.LastIndex(c, needle); i >= 0 {
		return c[:i+len(needle)]
	}
	if strings.HasSuffix(c, "/"+marker) {
		return c + "/"
	}
	return ""
}

// Sanitize replaces every run of non-alphanumeric characters in a name
// with a single underscore. The result is what the authoring tool uses as
// a filesystem- and document-safe identifier; Sanitize is idempotent.
func Sanitize(name string) string {
	return nonAlnum.ReplaceAllString(name, "_")
}
