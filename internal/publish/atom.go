package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
	"github.com/ekala-project/atom/internal/manifest"
	"github.com/ekala-project/atom/internal/storegit"
)

// Outcome is the terminal state of publishing one atom: either it was
// skipped because an identical (tag, version) already exists upstream, or
// it was built and its refs enqueued for push.
type Outcome struct {
	Tag     atomid.Tag
	Skipped bool
	Record  Record
}

// PublishOne runs the per-atom pipeline (spec.md §4.3 "Publish one
// atom"): read and validate the manifest, construct its AtomId, check for
// an existing (tag, version) upstream, build the spec/content trees and
// commits, write the three refs under a must-not-exist precondition, and
// enqueue the three ref pushes.
func (b *Builder) PublishOne(ctx context.Context, tag atomid.Tag, contentPath string) (Outcome, error) {
	dirEntry, err := b.commit.Tree()
	if err != nil {
		return Outcome{}, fmt.Errorf("publish: loading tree: %w", err)
	}

	manifestPath := joinPath(contentPath, "atom.toml")
	if contentPath == "" {
		manifestPath = "atom.toml"
	}
	manifestFile, err := dirEntry.File(manifestPath)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s", errs.ErrManifestMissing, manifestPath)
	}

	raw, err := readAll(manifestFile)
	if err != nil {
		return Outcome{}, fmt.Errorf("publish: reading %s: %w", manifestPath, err)
	}

	m, err := manifest.Parse(raw)
	if err != nil {
		return Outcome{}, err
	}
	if m.Tag != tag {
		return Outcome{}, fmt.Errorf("%w: manifest tag %q does not match discovered tag %q", errs.ErrManifestInvalid, m.Tag, tag)
	}

	id := atomid.New(b.origin, tag)

	existing, skip, err := b.checkExisting(ctx, id, m.Version)
	if err != nil {
		return Outcome{}, err
	}
	if skip {
		return Outcome{Tag: tag, Skipped: true, Record: Record{ID: id, Content: existing}}, nil
	}

	contentTreeHash, specTreeHash, _, err := b.resolveTrees(dirEntry, contentPath, manifestFile)
	if err != nil {
		return Outcome{}, err
	}

	storer := b.Repo.Storer

	loneManifest := contentPath == manifestPath || contentPath == ""
	var contentCommit plumbing.Hash
	var specCommit plumbing.Hash

	if loneManifest {
		// The atom is a lone atom.toml: the content tree equals the spec
		// tree, and only the spec commit is written.
		specCommit, err = buildAtomCommit(storer, specTreeHash, tag, m.Version.String(), b.commit.Hash, pathHeader(contentPath))
		if err != nil {
			return Outcome{}, err
		}
		contentCommit = specCommit
	} else {
		specCommit, err = buildAtomCommit(storer, specTreeHash, tag, m.Version.String(), b.commit.Hash, pathHeader(contentPath))
		if err != nil {
			return Outcome{}, err
		}
		contentCommit, err = buildAtomCommit(storer, contentTreeHash, tag, m.Version.String(), b.commit.Hash, pathHeader(contentPath))
		if err != nil {
			return Outcome{}, err
		}
	}

	contentRefName := storegit.ContentRef(tag, m.Version)
	specRefName := storegit.SpecRef(tag, m.Version)
	originRefName := storegit.OriginRef(tag, m.Version)

	if _, err := ensureReference(b.Repo, contentRefName, contentCommit); err != nil {
		return Outcome{}, err
	}
	if _, err := ensureReference(b.Repo, specRefName, specCommit); err != nil {
		return Outcome{}, err
	}
	if _, err := ensureReference(b.Repo, originRefName, b.commit.Hash); err != nil {
		return Outcome{}, err
	}

	b.pool.enqueue(b.RemoteName, contentRefName, b.Auth)
	b.pool.enqueue(b.RemoteName, specRefName, b.Auth)
	b.pool.enqueue(b.RemoteName, originRefName, b.Auth)

	return Outcome{Tag: tag, Record: Record{ID: id, Content: contentCommit}}, nil
}

// checkExisting queries the remote for an existing (tag, version); a
// match on the same AtomId is a skip, per the append-only ref invariant.
func (b *Builder) checkExisting(ctx context.Context, id atomid.AtomId, version *semver.Version) (plumbing.Hash, bool, error) {
	remote, err := b.Repo.Remote(b.RemoteName)
	if err != nil {
		return plumbing.ZeroHash, false, fmt.Errorf("publish: resolving remote %q: %w", b.RemoteName, err)
	}
	query, err := storegit.NewLightweightQuery(ctx, remote.Config().URLs[0], b.Auth)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}

	refName := storegit.ContentRef(id.Tag, version)
	ref, err := query.GetRef(ctx, refName)
	if err != nil {
		// Not advertised: nothing to skip.
		return plumbing.ZeroHash, false, nil
	}
	return ref.Target, true, nil
}

// resolveTrees returns the content tree hash (the atom directory's
// existing tree object, already content-addressed in the store), a
// freshly synthesized single-entry spec tree hash, and the manifest
// blob's hash.
func (b *Builder) resolveTrees(root *object.Tree, contentPath string, manifestFile *object.File) (content, spec, manifestBlob plumbing.Hash, err error) {
	manifestBlob = manifestFile.Hash

	spec, err = writeSpecTree(b.Repo.Storer, manifestBlob)
	if err != nil {
		return plumbing.ZeroHash, plumbing.ZeroHash, plumbing.ZeroHash, err
	}

	if contentPath == "" {
		// Lone manifest at a directory boundary that normalized to "":
		// should not occur since NoRootAtom rejects this earlier, but
		// guard defensively.
		return spec, spec, manifestBlob, nil
	}

	dirTree, err := root.Tree(contentPath)
	if err != nil {
		if errors.Is(err, object.ErrDirectoryNotFound) {
			// contentPath pointed directly at the manifest file (a lone
			// atom.toml, not a directory): content == spec.
			return spec, spec, manifestBlob, nil
		}
		return plumbing.ZeroHash, plumbing.ZeroHash, plumbing.ZeroHash, fmt.Errorf("publish: loading content tree %q: %w", contentPath, err)
	}

	return dirTree.Hash, spec, manifestBlob, nil
}

func pathHeader(contentPath string) string {
	if contentPath == "" {
		return "/"
	}
	return contentPath
}

func joinPath(dir, file string) string {
	if dir == "" {
		return file
	}
	return dir + "/" + file
}
