package storegit

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekala-project/atom/internal/atomid"
)

func TestContentSpecOriginRefs(t *testing.T) {
	tag, err := atomid.Validate("mypkg")
	require.NoError(t, err)
	version := semver.MustParse("1.2.3")

	assert.Equal(t, "refs/eka/atoms/mypkg/1.2.3", ContentRef(tag, version))
	assert.Equal(t, "refs/eka/meta/mypkg/1.2.3/manifest", SpecRef(tag, version))
	assert.Equal(t, "refs/eka/meta/mypkg/1.2.3/origin", OriginRef(tag, version))
}

func TestUnpackAtomRef(t *testing.T) {
	unpacked, err := UnpackAtomRef("refs/eka/atoms/mypkg/1.2.3")
	require.NoError(t, err)
	assert.Equal(t, atomid.Tag("mypkg"), unpacked.Tag)
	assert.True(t, unpacked.Version.Equal(semver.MustParse("1.2.3")))
}

func TestUnpackAtomRef_Malformed(t *testing.T) {
	cases := []string{
		"refs/heads/main",
		"refs/eka/atoms/onlytag",
		"refs/eka/atoms/1bad/1.0.0",
		"refs/eka/atoms/ok/not-a-version",
	}
	for _, name := range cases {
		_, err := UnpackAtomRef(name)
		assert.Error(t, err, name)
	}
}
