package lockfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AtomAndPinDeps(t *testing.T) {
	raw := `
version = 1

[[deps]]
type = "atom"
name = "locker"
id = "some-lib"
version = "1.0.0"
rev = "deadbeef"

[[deps]]
type = "pin"
name = "nixpkgs"
url = "https://example.com/pin.tar.gz"
hash = "sha256-abc"

[[srcs]]
type = "build"
name = "vendor"
url = "https://example.com/src.tar.gz"
hash = "sha256-def"
`
	lock, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.EqualValues(t, 1, lock.Version)
	require.Len(t, lock.Deps, 2)
	assert.True(t, lock.Deps[0].IsLocker())
	assert.Equal(t, DepPin, lock.Deps[1].Kind)
	require.Len(t, lock.Srcs, 1)
	assert.Equal(t, "vendor", lock.Srcs[0].Name)
}

func TestParse_UnknownDepType(t *testing.T) {
	raw := `
version = 1

[[deps]]
type = "bogus"
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}

func TestParse_UnknownFieldRejected(t *testing.T) {
	raw := `
version = 1

[[deps]]
type = "pin"
name = "x"
url = "https://example.com"
hash = "sha256-abc"
unexpected = true
`
	_, err := Parse([]byte(raw))
	require.Error(t, err)
}
