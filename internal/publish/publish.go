// Package publish implements the atom publisher: discovering atoms in a
// revision, synthesizing their reproducible orphan commits, writing the
// reference triple, and pushing concurrently to a remote with
// deduplication against what already exists upstream.
package publish

import (
	"context"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.uber.org/zap"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
	"github.com/ekala-project/atom/internal/manifest"
	"github.com/ekala-project/atom/internal/storegit"
)

// AtomFormatVersion identifies the schema of published atom commits.
// Readers must refuse a commit whose `format` header names an unknown
// major version.
const AtomFormatVersion = "pre1.0"

// ValidAtoms maps a discovered atom's tag to its content path within the
// revision: the directory containing its atom.toml, relative to the
// repository root. It is never "", since an atom.toml at the root is
// rejected with NoRootAtom.
type ValidAtoms map[atomid.Tag]string

// Stats reports how a publish run disposed of each discovered atom.
type Stats struct {
	Published uint32
	Skipped   uint32
	Failed    uint32
}

// Record pairs a freshly built AtomId with the content commit written for
// it (or the spec commit, for lone-manifest atoms).
type Record struct {
	ID      atomid.AtomId
	Content plumbing.Hash
}

// Builder walks a resolved commit, discovers atoms, and publishes them.
type Builder struct {
	Repo       *git.Repository
	RemoteName string
	Auth       transport.AuthMethod
	Log        *zap.SugaredLogger

	commit *object.Commit
	origin atomid.Origin
	atoms  ValidAtoms

	pool *pushPool
}

// Build resolves revspec to a commit, verifies its Origin against the
// remote's root marker, walks its tree for atom.toml manifests, and
// rejects duplicate tags or a root-level atom. It returns the discovered
// atoms alongside the ready-to-use Builder.
func Build(ctx context.Context, repo *git.Repository, remoteName, revspec string, auth transport.AuthMethod, log *zap.SugaredLogger) (ValidAtoms, *Builder, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(revspec))
	if err != nil {
		return nil, nil, fmt.Errorf("publish: resolving revision %q: %w", revspec, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, nil, fmt.Errorf("publish: loading commit %s: %w", hash, err)
	}

	origin, err := storegit.CommitOrigin(commit)
	if err != nil {
		return nil, nil, err
	}

	remote, err := repo.Remote(remoteName)
	if err != nil {
		return nil, nil, fmt.Errorf("publish: resolving remote %q: %w", remoteName, err)
	}
	if len(remote.Config().URLs) == 0 {
		return nil, nil, errs.ErrNoURL
	}
	query, err := storegit.NewLightweightQuery(ctx, remote.Config().URLs[0], auth)
	if err != nil {
		return nil, nil, err
	}
	marker, err := query.GetRef(ctx, storegit.RootMarkerRef)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errs.ErrNotInitialized, err)
	}
	if marker.Target.String() != string(origin) {
		return nil, nil, &errs.InconsistentRootError{Remote: remoteName, Atom: revspec}
	}

	atoms, err := discoverAtoms(commit, log)
	if err != nil {
		return nil, nil, err
	}

	b := &Builder{
		Repo:       repo,
		RemoteName: remoteName,
		Auth:       auth,
		Log:        log,
		commit:     commit,
		origin:     origin,
		atoms:      atoms,
		pool:       newPushPool(),
	}
	return atoms, b, nil
}

// discoverAtoms walks commit's tree looking for every atom.toml blob,
// parsing each manifest and mapping its tag to its containing directory.
// Manifests that fail to parse are logged and skipped. Two atoms
// sharing a tag is a fatal Duplicates error; an atom.toml found at the
// repository root is a fatal NoRootAtom error.
func discoverAtoms(commit *object.Commit, log *zap.SugaredLogger) (ValidAtoms, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("publish: loading tree of %s: %w", commit.Hash, err)
	}

	atoms := make(ValidAtoms)
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("publish: walking tree: %w", err)
		}
		if !entry.Mode.IsFile() || entryBaseName(name) != manifest.FileName {
			continue
		}

		dir := dirName(name)
		if dir == "" {
			return nil, fmt.Errorf("%w: atom.toml found at repository root", errs.ErrNoRootAtom)
		}

		blob, err := tree.TreeEntryFile(&entry)
		if err != nil {
			return nil, fmt.Errorf("publish: reading %s: %w", name, err)
		}
		raw, err := readAll(blob)
		if err != nil {
			return nil, fmt.Errorf("publish: reading %s: %w", name, err)
		}

		m, err := manifest.Parse(raw)
		if err != nil {
			log.Warnw("skipping invalid atom manifest", "path", name, "error", err)
			continue
		}

		if existing, ok := atoms[m.Tag]; ok {
			return nil, fmt.Errorf("%w: tag %q found at both %q and %q", errs.ErrDuplicates, m.Tag, existing, dir)
		}
		atoms[m.Tag] = dir
	}

	return atoms, nil
}

func readAll(f *object.File) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func entryBaseName(path string) string {
	idx := lastSlash(path)
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

func dirName(path string) string {
	idx := lastSlash(path)
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
