// Package cache implements the atom cache: a single bare local repository
// that mirrors published atom commits from every remote ever queried, and
// the materializer that checks a cached commit's tree out into a
// directory.
package cache

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/mr-tron/base58"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/lockfile"
	"github.com/ekala-project/atom/internal/storegit"
)

var (
	singleton *Cache
	initOnce  sync.Once
	initErr   error
)

// Cache is the process-wide singleton bare repository backing every
// remote's atom mirror.
type Cache struct {
	repo *git.Repository
	root string
}

// Get returns the lazily-initialized cache repository rooted at
// filepath.Join(cacheRoot, "git"), creating it on first use. Subsequent
// calls (with any cacheRoot) return the same instance.
func Get(cacheRoot string) (*Cache, error) {
	initOnce.Do(func() {
		gitDir := filepath.Join(cacheRoot, "git")
		repo, err := git.PlainOpen(gitDir)
		if err != nil {
			repo, err = git.PlainInit(gitDir, true)
			if err != nil {
				initErr = fmt.Errorf("cache: initializing bare cache at %q: %w", gitDir, err)
				return
			}
		}
		singleton = &Cache{repo: repo, root: gitDir}
	})
	return singleton, initErr
}

// CacheIDs is the result of resolving an atom (and, if applicable, its
// locker) into the cache: the atom's content commit and, one level deep,
// its locker's content commit.
type CacheIDs struct {
	Atom   plumbing.Hash
	Locker *plumbing.Hash
}

// EnsureRemote derives a deterministic local remote name from the root
// marker's object ID (base58-encoded) and finds or creates a remote
// handle with that name. Two distinct URLs pointing at the same store
// therefore deduplicate naturally.
func (c *Cache) EnsureRemote(ctx context.Context, url string, auth transport.AuthMethod) (string, error) {
	q, err := storegit.NewLightweightQuery(ctx, url, auth)
	if err != nil {
		return "", err
	}
	marker, err := q.GetRef(ctx, storegit.RootMarkerRef)
	if err != nil {
		return "", fmt.Errorf("cache: fetching root marker from %q: %w", url, err)
	}

	name := base58.Encode(marker.Target[:])

	if _, err := c.repo.Remote(name); err == nil {
		return name, nil
	}

	if _, err := c.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}}); err != nil {
		return "", fmt.Errorf("cache: creating remote %q for %q: %w", name, url, err)
	}
	return name, nil
}

// ResolveToCache resolves versionReq against the remote's advertised
// versions for tag, fetches refs/eka/atoms/<tag>/<version> into
// refs/<name>/<tag>/<version>, and returns the local commit ID. If
// resolveLock is true and the atom's tree contains a lockfile naming a
// locker atom, the locker is resolved and fetched one level deep: the
// locker's own lockfile is not read, so a locker's own locker is never
// followed.
func (c *Cache) ResolveToCache(ctx context.Context, remoteName, url string, tag atomid.Tag, versionReq string, auth transport.AuthMethod, resolveLock bool) (CacheIDs, error) {
	version, err := c.resolveVersion(ctx, url, tag, versionReq, auth)
	if err != nil {
		return CacheIDs{}, err
	}

	hash, err := c.fetchAtom(ctx, remoteName, tag, version, auth)
	if err != nil {
		return CacheIDs{}, err
	}

	ids := CacheIDs{Atom: hash}
	if !resolveLock {
		return ids, nil
	}

	commit, err := c.repo.CommitObject(hash)
	if err != nil {
		return ids, fmt.Errorf("cache: loading %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return ids, fmt.Errorf("cache: loading tree of %s: %w", hash, err)
	}

	lockFile, err := tree.File(lockfile.FileName)
	if err != nil {
		// No lockfile: nothing more to resolve.
		return ids, nil
	}
	r, err := lockFile.Reader()
	if err != nil {
		return ids, fmt.Errorf("cache: reading %s: %w", lockfile.FileName, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return ids, fmt.Errorf("cache: reading %s: %w", lockfile.FileName, err)
	}

	lock, err := lockfile.Parse(raw)
	if err != nil {
		// A malformed lockfile shouldn't abort materialization of the
		// atom itself; the caller decides what to do with a missing
		// locker.
		return ids, nil
	}

	for _, dep := range lock.Deps {
		if !dep.IsLocker() {
			continue
		}
		lockerTag, err := atomid.Validate(dep.ID)
		if err != nil {
			return ids, nil
		}
		lockerVersion, err := c.resolveVersion(ctx, url, lockerTag, dep.Version, auth)
		if err != nil {
			return ids, nil
		}
		lockerHash, err := c.fetchAtom(ctx, remoteName, lockerTag, lockerVersion, auth)
		if err != nil {
			return ids, nil
		}
		ids.Locker = &lockerHash
		break
	}

	return ids, nil
}

// resolveVersion picks the highest version of tag advertised by url that
// satisfies versionReq, returning its exact SemVer string.
func (c *Cache) resolveVersion(ctx context.Context, url string, tag atomid.Tag, versionReq string, auth transport.AuthMethod) (string, error) {
	q, err := storegit.NewLightweightQuery(ctx, url, auth)
	if err != nil {
		return "", err
	}
	entries, err := storegit.GetAtoms(ctx, q, nil)
	if err != nil {
		return "", err
	}
	match, err := storegit.GetHighestMatch(entries, tag, versionReq)
	if err != nil {
		return "", err
	}
	return match.Unpacked.Version.String(), nil
}

func (c *Cache) fetchAtom(ctx context.Context, remoteName string, tag atomid.Tag, version string, auth transport.AuthMethod) (plumbing.Hash, error) {
	ver, err := semver.NewVersion(version)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cache: invalid version %q: %w", version, err)
	}
	remoteRef := storegit.ContentRef(tag, ver)
	localRef := fmt.Sprintf("refs/%s/%s/%s", remoteName, tag, version)

	spec := config.RefSpec(fmt.Sprintf("+%s:%s", remoteRef, localRef))
	err = c.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       auth,
		Tags:       git.NoTags,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return plumbing.ZeroHash, fmt.Errorf("cache: fetching %s: %w", remoteRef, err)
	}

	ref, err := c.repo.Reference(plumbing.ReferenceName(localRef), true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("cache: resolving %s: %w", localRef, err)
	}
	return ref.Hash(), nil
}

// Repository exposes the underlying bare repository for the materializer.
func (c *Cache) Repository() *git.Repository {
	return c.repo
}

