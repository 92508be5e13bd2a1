package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
)

func TestParse_Valid(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"
description = "a test atom"
`
	m, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, atomid.Tag("a"), m.Tag)
	assert.Equal(t, "0.1.0", m.Version.String())
	assert.Equal(t, "a test atom", m.Description)
}

func TestParse_MissingDescription(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"
`
	m, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, m.Description)
}

func TestParse_ExtraTopLevelKeyRejected(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"

[nope]
x = 1
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrManifestInvalid)
}

func TestParse_ExtraFieldInAtomTableRejected(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"
unexpected = "field"
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestParse_InvalidTag(t *testing.T) {
	raw := `
[atom]
tag = "1bad"
version = "0.1.0"
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrManifestInvalid)
}

func TestParse_InvalidVersion(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "not-semver"
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestParse_Sets(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"

[package.sets]
upstream = "https://example.com/a.git"
mirrored = ["https://example.com/a.git", "https://mirror.example.com/a.git"]
self = "local"
`
	m, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Len(t, m.Sets, 3)

	byName := make(map[string]SetDecl, len(m.Sets))
	for _, decl := range m.Sets {
		byName[decl.Name] = decl
	}

	upstream := byName["upstream"]
	assert.Equal(t, SetSingleton, upstream.Kind)
	assert.Equal(t, []string{"https://example.com/a.git"}, upstream.URLs)

	mirrored := byName["mirrored"]
	assert.Equal(t, SetMirrors, mirrored.Kind)
	assert.Equal(t, []string{"https://example.com/a.git", "https://mirror.example.com/a.git"}, mirrored.URLs)

	self := byName["self"]
	assert.Equal(t, SetLocal, self.Kind)
	assert.Empty(t, self.URLs)
}

func TestParse_NoSets(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"
`
	m, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, m.Sets)
}

func TestParse_SetsRejectsNonStringMirror(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"

[package.sets]
bad = ["https://example.com/a.git", 1]
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrManifestInvalid)
}

func TestParse_SetsRejectsWrongShape(t *testing.T) {
	raw := `
[atom]
tag = "a"
version = "0.1.0"

[package.sets]
bad = 1
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrManifestInvalid)
}
