package paths

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"backslashes", `C:\games\SOMA\entities\lamp.dae`, "C:/games/SOMA/entities/lamp.dae"},
		{"double separators", "a//b///c", "a/b/c"},
		{"dot segments", "a/./b/../c", "a/c"},
		{"trailing slash", "a/b/", "a/b"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		marker string
		want   string
	}{
		{"strips through marker", "D:/steam/SOMA/entities/lamp/lamp.dae", "", "entities/lamp/lamp.dae"},
		{"backslash input", `D:\steam\SOMA\entities\lamp\lamp.dae`, "", "entities/lamp/lamp.dae"},
		{"last marker wins", "/data/SOMA/mods/SOMA/chair.dae", "", "chair.dae"},
		{"no marker passes through", "entities/lamp/lamp.dae", "", "entities/lamp/lamp.dae"},
		{"custom marker", "/srv/Project/assets/a.dae", "Project", "assets/a.dae"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Short(tt.in, tt.marker))
		})
	}
}

func TestProjectRoot(t *testing.T) {
	assert.Equal(t, "D:/steam/SOMA/", ProjectRoot(`D:\steam\SOMA\entities`, ""))
	assert.Equal(t, "D:/steam/SOMA/", ProjectRoot("D:/steam/SOMA", ""))
	assert.Equal(t, "", ProjectRoot("D:/steam/other/entities", ""))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lamp_01", "Lamp_01"},
		{"Lamp.001", "Lamp_001"},
		{"chair  (old)!", "chair_old_"},
		{"étage-3", "_tage_3"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in))
	}
}

// Sanitizing an already-sanitized name must be a no-op, or orphan
// comparison would produce false positives.
func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{"Lamp.001", "a--b__c", "!@#$", "Suzanne head.L", "x", ""}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), "input %q", in)
	}
}
