package cache

import (
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

func emptyTestSig() object.Signature {
	return object.Signature{Name: "", Email: "", When: time.Unix(0, 0).UTC()}
}

func writeTestBlob(t *testing.T, storer *memory.Storage, data []byte) plumbing.Hash {
	t.Helper()
	eobj := storer.NewEncodedObject()
	eobj.SetType(plumbing.BlobObject)
	w, err := eobj.Writer()
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	hash, err := storer.SetEncodedObject(eobj)
	require.NoError(t, err)
	return hash
}

func writeTestObject(t *testing.T, storer *memory.Storage, obj object.Object) plumbing.Hash {
	t.Helper()
	eobj := storer.NewEncodedObject()
	require.NoError(t, obj.Encode(eobj))
	hash, err := storer.SetEncodedObject(eobj)
	require.NoError(t, err)
	return hash
}

func gitOpenFromStorer(storer *memory.Storage) (*git.Repository, error) {
	return git.Open(storer, nil)
}
