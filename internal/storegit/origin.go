package storegit

import (
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
)

// CommitOrigin walks all of c's ancestors and returns, among those with
// zero parents, the one with the earliest committer time: the
// chronologically oldest root, which is this repository's Origin. It returns ErrRootNotFound
// if no zero-parent ancestor exists (should not happen for a well-formed
// history, but a shallow clone can hit this).
func CommitOrigin(c *object.Commit) (atomid.Origin, error) {
	iter := object.NewCommitPreorderIter(c, nil, nil)

	var oldest *object.Commit
	err := iter.ForEach(func(candidate *object.Commit) error {
		if len(candidate.ParentHashes) == 0 {
			if oldest == nil || candidate.Committer.When.Before(oldest.Committer.When) {
				oldest = candidate
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("storegit: walking ancestors of %s: %w", c.Hash, err)
	}
	if oldest == nil {
		return "", errs.ErrRootNotFound
	}

	return atomid.Origin(oldest.Hash.String()), nil
}

// OriginOfTriples returns the Origin from a list of already-fetched
// (tag, version, rev) atom entries: the revision of the triple whose tag
// equals the root sentinel.
func OriginOfTriples(entries []AtomRefEntry) (atomid.Origin, error) {
	for _, e := range entries {
		if string(e.Unpacked.Tag) == atomid.RootTag {
			return atomid.Origin(e.Target.String()), nil
		}
	}
	return "", errs.ErrRootNotFound
}

// AtomRefEntry pairs a decomposed atom content ref with the object ID it
// points at, as produced by GetAtoms.
type AtomRefEntry struct {
	Unpacked UnpackedAtomRef
	Target   plumbing.Hash
}
