package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"
)

// buildTestCommit writes a small tree (one regular file, one executable,
// one nested directory) directly against an in-memory storer and returns
// its commit hash, so Materialize can be exercised without a real remote.
func buildTestCommit(t *testing.T, storer *memory.Storage) plumbing.Hash {
	t.Helper()

	readmeBlob := writeTestBlob(t, storer, []byte("hello\n"))
	scriptBlob := writeTestBlob(t, storer, []byte("#!/bin/sh\necho hi\n"))
	nestedBlob := writeTestBlob(t, storer, []byte("nested\n"))

	nestedTree := &object.Tree{
		Entries: []object.TreeEntry{
			{Name: "file.txt", Mode: filemode.Regular, Hash: nestedBlob},
		},
	}
	nestedTreeHash := writeTestObject(t, storer, nestedTree)

	rootTree := &object.Tree{
		Entries: []object.TreeEntry{
			{Name: "README", Mode: filemode.Regular, Hash: readmeBlob},
			{Name: "run.sh", Mode: filemode.Executable, Hash: scriptBlob},
			{Name: "sub", Mode: filemode.Dir, Hash: nestedTreeHash},
		},
	}
	rootTreeHash := writeTestObject(t, storer, rootTree)

	commit := &object.Commit{
		Author:    emptyTestSig(),
		Committer: emptyTestSig(),
		Message:   "test",
		TreeHash:  rootTreeHash,
	}
	return writeTestObject(t, storer, commit)
}

func TestMaterialize(t *testing.T) {
	storer := memory.NewStorage()
	commit := buildTestCommit(t, storer)

	repo, err := gitOpenFromStorer(storer)
	require.NoError(t, err)

	c := &Cache{repo: repo}

	dest := t.TempDir()
	require.NoError(t, c.Materialize(commit, dest, MaterializeOptions{}))

	readme, err := os.ReadFile(filepath.Join(dest, "README"))
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(readme))

	info, err := os.Stat(filepath.Join(dest, "run.sh"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0o100, "executable bit must be preserved")

	nested, err := os.ReadFile(filepath.Join(dest, "sub", "file.txt"))
	require.NoError(t, err)
	require.Equal(t, "nested\n", string(nested))
}
