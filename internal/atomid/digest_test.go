package atomid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDigest_Deterministic(t *testing.T) {
	origin := make([]byte, 20)
	tag, err := Validate("x")
	require.NoError(t, err)

	d1 := ComputeDigest(origin, tag)
	d2 := ComputeDigest(origin, tag)
	assert.Equal(t, d1, d2)

	changed := make([]byte, 20)
	copy(changed, origin)
	changed[len(changed)-1] = 1
	d3 := ComputeDigest(changed, tag)
	assert.NotEqual(t, d1, d3)
}

func TestComputeDigest_TagDiffers(t *testing.T) {
	origin := make([]byte, 20)
	tagA, _ := Validate("a")
	tagB, _ := Validate("b")

	assert.NotEqual(t, ComputeDigest(origin, tagA), ComputeDigest(origin, tagB))
}

func TestDigest_RoundTrip(t *testing.T) {
	origin := make([]byte, 20)
	tag, _ := Validate("roundtrip")
	d := ComputeDigest(origin, tag)

	parsed, err := ParseDigest(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestAtomId_Digest(t *testing.T) {
	tag, _ := Validate("pkg")
	id := New(Origin("0000000000000000000000000000000000000000"), tag)
	assert.Equal(t, ComputeDigest(id.Origin.Bytes(), tag), id.Digest())
}
