package publish

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/ekala-project/atom/internal/atomid"
)

// emptySignature is the fixed author/committer every published atom
// commit carries: empty name, empty email, epoch zero, zero offset. Any
// difference here would break reproducibility -- two publishes of
// identical content at the same origin must yield byte-identical commit
// IDs (spec invariant 4).
var emptySignature = object.Signature{
	Name:  "",
	Email: "",
	When:  time.Unix(0, 0).UTC(),
}

// writeSpecTree writes a single-entry tree containing only the manifest
// blob at manifest.FileName, returning its object ID.
func writeSpecTree(storer storage.Storer, manifestBlob plumbing.Hash) (plumbing.Hash, error) {
	tree := &object.Tree{
		Entries: []object.TreeEntry{
			{Name: "atom.toml", Mode: filemode.Regular, Hash: manifestBlob},
		},
	}
	return writeObject(storer, tree)
}

// writeBlob stores data as a blob object, returning its hash.
func writeBlob(storer storage.Storer, data []byte) (plumbing.Hash, error) {
	eobj := storer.NewEncodedObject()
	eobj.SetType(plumbing.BlobObject)
	w, err := eobj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("publish: writing blob: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("publish: writing blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("publish: writing blob: %w", err)
	}
	return storer.SetEncodedObject(eobj)
}

// writeObject encodes obj (a *object.Tree or *object.Commit) and stores it
// in storer, returning its hash. Content-addressed storage means writing
// the same bytes twice is always safe and idempotent.
func writeObject(storer storage.Storer, obj object.Object) (plumbing.Hash, error) {
	eobj := storer.NewEncodedObject()
	if err := obj.Encode(eobj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("publish: encoding object: %w", err)
	}
	hash, err := storer.SetEncodedObject(eobj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("publish: writing object: %w", err)
	}
	return hash, nil
}

// atomHeader is one of the three extra headers every atom commit carries.
type atomHeader struct {
	key, value string
}

// buildAtomCommit synthesizes a reproducible orphan commit: no parents,
// the fixed empty signature, message "<tag>: <version>", and the three
// extra headers (origin, path, format).
func buildAtomCommit(storer storage.Storer, tree plumbing.Hash, tag atomid.Tag, version string, sourceCommit plumbing.Hash, contentPath string) (plumbing.Hash, error) {
	if contentPath == "" {
		contentPath = "/"
	}

	headers := []atomHeader{
		{"origin", sourceCommit.String()},
		{"path", contentPath},
		{"format", AtomFormatVersion},
	}

	commit := &object.Commit{
		Author:       emptySignature,
		Committer:    emptySignature,
		Message:      fmt.Sprintf("%s: %s", tag, version),
		TreeHash:     tree,
		ParentHashes: nil,
	}
	for _, h := range headers {
		commit.ExtraHeaders = append(commit.ExtraHeaders, headerLine(h.key, h.value))
	}

	return writeObject(storer, commit)
}

// headerLine formats a single raw commit header the way go-git's
// object.Commit.Encode expects ExtraHeaders entries: "<key> <value>".
func headerLine(key, value string) string {
	return key + " " + value
}

// ensureReference writes ref pointing at target under a must-not-exist
// precondition: the atomic compare-and-swap the store protocol requires
// for every per-atom ref write. Returns (written=false, nil) if the ref
// already exists with the same target (republish is a silent skip); a
// pre-existing ref with a different target is a fatal error for that
// atom.
func ensureReference(repo *git.Repository, name string, target plumbing.Hash) (written bool, err error) {
	ref := plumbing.NewHashReference(plumbing.ReferenceName(name), target)

	existing, err := repo.Reference(plumbing.ReferenceName(name), false)
	if err == nil {
		if existing.Hash() == target {
			return false, nil
		}
		return false, fmt.Errorf("publish: ref %q already exists pointing at %s, refusing to overwrite with %s", name, existing.Hash(), target)
	}

	if err := repo.Storer.CheckAndSetReference(ref, nil); err != nil {
		return false, fmt.Errorf("publish: creating ref %q: %w", name, err)
	}
	return true, nil
}
