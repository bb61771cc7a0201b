package mapdoc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `<HPL3Map><Section Name="Ambient"><Sound File="wind.ogg" Volume="0.35"/></Section><Section Name="Blender@HPL3EXPORT"><FileIndex_StaticObjects NumOfFiles="2"><File Id="0" Path="static_objects/lamp/lamp.dae"/><File Id="1" Path="static_objects/chair/chair.dae"/></FileIndex_StaticObjects><Objects><StaticObject ID="285212672" CreStamp="100" Name="Lamp_01" ModStamp="100" WorldPos="0.00000 0.00000 0.00000" Rotation="0.00000 0.00000 0.00000" Scale="1.00000 1.00000 1.00000" FileIndex="0" Collides="true" CastShadows="true" IsOccluder="false" ColorMul="1 1 1 1" CulledByDistance="true" CulledByFog="true" IllumColor="1 1 1 1" IllumBrightness="1" UID="blender"/></Objects></Section></HPL3Map>`

func writeDoc(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "test.hpm_StaticObject")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadMissingFileIsFresh(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "absent.hpm_StaticObject"), KindStaticObject)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Index.Len())
	assert.Equal(t, 0, d.Registry.Len())
}

func TestLoadMalformedIsParseError(t *testing.T) {
	p := writeDoc(t, "<HPL3Map><Section")
	_, err := Load(p, KindStaticObject)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestLoadDecodesOwnedSection(t *testing.T) {
	d, err := Load(writeDoc(t, sampleDoc), KindStaticObject)
	require.NoError(t, err)

	assert.Equal(t, 2, d.Index.Len())
	path, ok := d.Index.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "static_objects/chair/chair.dae", path)

	require.Equal(t, 1, d.Registry.Len())
	o := d.Registry.Find("Lamp_01")
	require.NotNil(t, o)
	assert.Equal(t, int64(285212672), o.ID)
	assert.Equal(t, 0, o.FileIndex)
	assert.True(t, o.Flags.Collides)
	assert.True(t, o.Flags.CastShadows)
	assert.False(t, o.Flags.IsOccluder)
}

// Unmodified documents must serialize back byte-identically, foreign
// sections included.
func TestSerializeRoundTrip(t *testing.T) {
	d, err := Load(writeDoc(t, sampleDoc), KindStaticObject)
	require.NoError(t, err)

	out, err := d.Serialize()
	require.NoError(t, err)
	assert.Equal(t, sampleDoc, string(out))
}

func TestSerializeFreshDocument(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "new.hpm_StaticObject"), KindStaticObject)
	require.NoError(t, err)

	id, created := d.Index.Resolve("static_objects/lamp/lamp.dae")
	require.True(t, created)
	d.Registry.Upsert("Lamp_01", "1.00000 2.00000 3.00000", "0.00000 0.00000 0.00000", "1.00000 1.00000 1.00000", Flags{Collides: true, CastShadows: true}, id, 500)

	out, err := d.Serialize()
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `<Section Name="Blender@HPL3EXPORT">`)
	assert.Contains(t, s, `<FileIndex_StaticObjects NumOfFiles="1">`)
	assert.Contains(t, s, `<File Id="0" Path="static_objects/lamp/lamp.dae"/>`)
	assert.Contains(t, s, `Name="Lamp_01"`)
	assert.Contains(t, s, `FileIndex="0"`)
	assert.Contains(t, s, `CreStamp="500"`)
}

func TestSerializeEntityUserVariables(t *testing.T) {
	d, err := Load(filepath.Join(t.TempDir(), "new.hpm_Entity"), KindEntity)
	require.NoError(t, err)

	id, _ := d.Index.Resolve("entities/door/door.ent")
	d.Registry.Upsert("Door_01", "0.00000 0.00000 0.00000", "0.00000 0.00000 0.00000", "1.00000 1.00000 1.00000", Flags{Active: true, CastShadows: true}, id, 500)

	out, err := d.Serialize()
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `<FileIndex_Entities NumOfFiles="1">`)
	assert.Contains(t, s, `Active="true"`)
	assert.Contains(t, s, `<Var Name="CastShadows" Value="true"/>`)
}

func TestValidateStaleReference(t *testing.T) {
	doc := `<HPL3Map><Section Name="Blender@HPL3EXPORT"><FileIndex_StaticObjects NumOfFiles="1"><File Id="0" Path="a.dae"/></FileIndex_StaticObjects><Objects><StaticObject ID="285212672" CreStamp="1" Name="A" ModStamp="1" WorldPos="" Rotation="" Scale="" FileIndex="4"/></Objects></Section></HPL3Map>`
	d, err := Load(writeDoc(t, doc), KindStaticObject)
	require.NoError(t, err)

	errs := d.Validate()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrStaleReference)
}

func TestRemoveSyncsElements(t *testing.T) {
	d, err := Load(writeDoc(t, sampleDoc), KindStaticObject)
	require.NoError(t, err)

	// Remove chair (id 1, unreferenced) from the index.
	_, ok := d.Index.Remove(1)
	require.True(t, ok)

	out, err := d.Serialize()
	require.NoError(t, err)
	s := string(out)
	assert.NotContains(t, s, "chair.dae")
	assert.Contains(t, s, `NumOfFiles="1"`)
	// Foreign section still intact.
	assert.Contains(t, s, `<Sound File="wind.ogg" Volume="0.35"/>`)
}
