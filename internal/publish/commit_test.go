package publish

import (
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekala-project/atom/internal/atomid"
)

func TestBuildAtomCommit_Reproducible(t *testing.T) {
	storer := memory.NewStorage()

	blobHash, err := writeBlob(storer, []byte(`[atom]
tag = "a"
version = "0.1.0"
`))
	require.NoError(t, err)

	specTree, err := writeSpecTree(storer, blobHash)
	require.NoError(t, err)

	tag, err := atomid.Validate("a")
	require.NoError(t, err)

	sourceCommit := plumbing.ZeroHash

	c1, err := buildAtomCommit(storer, specTree, tag, "0.1.0", sourceCommit, "")
	require.NoError(t, err)
	c2, err := buildAtomCommit(storer, specTree, tag, "0.1.0", sourceCommit, "")
	require.NoError(t, err)

	assert.Equal(t, c1, c2, "identical content at the same origin must produce byte-identical commit IDs")
}

func TestPathHeader_EmptyIsRoot(t *testing.T) {
	// The `path` commit header renders an empty content path as "/" and
	// any other path verbatim.
	assert.Equal(t, "/", pathHeader(""))
	assert.Equal(t, "a/b", pathHeader("a/b"))
}
