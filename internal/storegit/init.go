package storegit

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.uber.org/zap"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
)

// Init writes the store's root marker for the first time. It syncs HEAD
// from the remote, computes HEAD's Origin locally, creates the root
// marker ref locally under a must-not-exist precondition, then pushes it
// to the remote. Re-running Init against an already-initialized remote
// whose marker differs from the freshly computed Origin is a hard error;
// if the marker already matches, Init is a no-op (idempotent).
func Init(ctx context.Context, repo *git.Repository, remoteName string, auth transport.AuthMethod, log *zap.SugaredLogger) (atomid.Origin, error) {
	headSpec := config.RefSpec("+HEAD:refs/remotes/" + remoteName + "/HEAD")
	if err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{headSpec},
		Auth:       auth,
		Tags:       git.NoTags,
	}); err != nil && err != git.NoErrAlreadyUpToDate {
		return "", fmt.Errorf("storegit: syncing HEAD from %q: %w", remoteName, err)
	}

	headRef, err := repo.Reference(plumbing.ReferenceName("refs/remotes/"+remoteName+"/HEAD"), true)
	if err != nil {
		return "", fmt.Errorf("storegit: resolving synced HEAD: %w", err)
	}

	commit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return "", fmt.Errorf("storegit: loading HEAD commit: %w", err)
	}

	origin, err := CommitOrigin(commit)
	if err != nil {
		return "", err
	}

	markerRef := plumbing.NewHashReference(plumbing.ReferenceName(RootMarkerRef), plumbing.NewHash(origin.String()))

	existing, err := repo.Reference(plumbing.ReferenceName(RootMarkerRef), true)
	switch {
	case err == nil:
		if existing.Hash() != markerRef.Hash() {
			return "", fmt.Errorf("%w: local marker %s != computed origin %s", errs.ErrRootInconsistent, existing.Hash(), origin)
		}
		log.Infow("root marker already present and consistent", "origin", origin)
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		if err := repo.Storer.CheckAndSetReference(markerRef, nil); err != nil {
			return "", fmt.Errorf("storegit: creating root marker: %w", err)
		}
		log.Infow("root marker created", "origin", origin, "ref", RootMarkerRef)
	default:
		return "", fmt.Errorf("storegit: reading local root marker: %w", err)
	}

	rs := config.RefSpec(fmt.Sprintf("%s:%s", RootMarkerRef, RootMarkerRef))
	remote, err := repo.Remote(remoteName)
	if err != nil {
		return "", fmt.Errorf("storegit: resolving remote %q: %w", remoteName, err)
	}
	if err := remote.PushContext(ctx, &git.PushOptions{
		RefSpecs: []config.RefSpec{rs},
		Auth:     auth,
	}); err != nil && err != git.NoErrAlreadyUpToDate {
		return "", fmt.Errorf("storegit: pushing root marker: %w", err)
	}

	return origin, nil
}

// CheckRoot fetches HEAD and the root marker from the remote, recomputes
// Origin of HEAD locally, and requires equality with the marker's target.
// Returns ErrRootInconsistent on mismatch and ErrNotInitialized if the
// remote has no marker at all.
func CheckRoot(ctx context.Context, repo *git.Repository, remoteName string, auth transport.AuthMethod) (atomid.Origin, error) {
	specs := []config.RefSpec{
		config.RefSpec(fmt.Sprintf("+HEAD:refs/remotes/%s/HEAD", remoteName)),
		config.RefSpec(fmt.Sprintf("+%s:%s", RootMarkerRef, RootMarkerRef)),
	}

	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   specs,
		Auth:       auth,
		Tags:       git.NoTags,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		if errors.Is(err, transport.ErrAuthenticationRequired) {
			return "", fmt.Errorf("storegit: authenticating to %q: %w", remoteName, err)
		}
		return "", fmt.Errorf("storegit: fetching HEAD and root marker from %q: %w", remoteName, err)
	}

	markerRef, err := repo.Reference(plumbing.ReferenceName(RootMarkerRef), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", errs.ErrNotInitialized
		}
		return "", fmt.Errorf("storegit: resolving root marker: %w", err)
	}

	headRef, err := repo.Reference(plumbing.ReferenceName("refs/remotes/"+remoteName+"/HEAD"), true)
	if err != nil {
		return "", fmt.Errorf("storegit: resolving synced HEAD: %w", err)
	}
	commit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return "", fmt.Errorf("storegit: loading HEAD commit: %w", err)
	}

	origin, err := CommitOrigin(commit)
	if err != nil {
		return "", err
	}

	if markerRef.Hash().String() != origin.String() {
		return "", fmt.Errorf("%w: marker=%s computed=%s", errs.ErrRootInconsistent, markerRef.Hash(), origin)
	}

	return origin, nil
}
