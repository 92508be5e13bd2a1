package cache

import (
	"fmt"
	"io"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// MaterializeOptions controls one Materialize call.
type MaterializeOptions struct {
	// LockerCommit, if non-zero, supplies atom.nix for the materialized
	// tree when the atom's own tree does not already contain one: the
	// locker provides build glue shared across many atoms.
	LockerCommit plumbing.Hash
}

// Materialize checks out commit's tree into dest (created if absent),
// preserving the executable bit on regular files and refusing to follow
// submodules (git links): submodule entries are skipped and nothing is
// written for them; no warning is logged.
func (c *Cache) Materialize(commit plumbing.Hash, dest string, opts MaterializeOptions) error {
	co, err := c.repo.CommitObject(commit)
	if err != nil {
		return fmt.Errorf("cache: loading commit %s: %w", commit, err)
	}
	tree, err := co.Tree()
	if err != nil {
		return fmt.Errorf("cache: loading tree of %s: %w", commit, err)
	}

	fs := osfs.New(dest)
	if err := fs.MkdirAll(".", 0o755); err != nil {
		return fmt.Errorf("cache: creating %q: %w", dest, err)
	}

	hadManifestNix := false
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, entry, err := walker.Next()
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return fmt.Errorf("cache: walking tree of %s: %w", commit, err)
		}

		if name == "atom.nix" {
			hadManifestNix = true
		}

		switch {
		case entry.Mode == filemode.Submodule:
			continue
		case entry.Mode == filemode.Dir:
			if err := fs.MkdirAll(name, 0o755); err != nil {
				return fmt.Errorf("cache: creating directory %q: %w", name, err)
			}
		case entry.Mode == filemode.Symlink:
			if err := materializeSymlink(fs, tree, name, entry); err != nil {
				return err
			}
		default:
			if err := materializeFile(fs, tree, name, entry); err != nil {
				return err
			}
		}
	}

	if !hadManifestNix && opts.LockerCommit != plumbing.ZeroHash {
		if err := c.copyLockerBuildGlue(opts.LockerCommit, fs); err != nil {
			return err
		}
	}

	return nil
}

func materializeFile(fs billy.Filesystem, tree *object.Tree, name string, entry object.TreeEntry) error {
	f, err := tree.File(name)
	if err != nil {
		return fmt.Errorf("cache: loading blob for %q: %w", name, err)
	}
	r, err := f.Reader()
	if err != nil {
		return fmt.Errorf("cache: opening blob for %q: %w", name, err)
	}
	defer r.Close()

	mode := os.FileMode(0o644)
	if entry.Mode == filemode.Executable {
		mode = 0o755
	}

	out, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("cache: creating %q: %w", name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("cache: writing %q: %w", name, err)
	}
	return nil
}

func materializeSymlink(fs billy.Filesystem, tree *object.Tree, name string, entry object.TreeEntry) error {
	f, err := tree.File(name)
	if err != nil {
		return fmt.Errorf("cache: loading symlink blob for %q: %w", name, err)
	}
	r, err := f.Reader()
	if err != nil {
		return fmt.Errorf("cache: opening symlink blob for %q: %w", name, err)
	}
	defer r.Close()

	target, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("cache: reading symlink target for %q: %w", name, err)
	}

	if err := fs.Symlink(string(target), name); err != nil {
		return fmt.Errorf("cache: creating symlink %q: %w", name, err)
	}
	return nil
}

// copyLockerBuildGlue writes atom.nix from the locker commit's tree into
// fs, for atoms that rely on the locker's shared build definition instead
// of carrying their own.
func (c *Cache) copyLockerBuildGlue(lockerCommit plumbing.Hash, fs billy.Filesystem) error {
	co, err := c.repo.CommitObject(lockerCommit)
	if err != nil {
		return fmt.Errorf("cache: loading locker commit %s: %w", lockerCommit, err)
	}
	tree, err := co.Tree()
	if err != nil {
		return fmt.Errorf("cache: loading locker tree: %w", err)
	}
	f, err := tree.File("atom.nix")
	if err != nil {
		// Locker has no build glue of its own either; nothing to copy.
		return nil
	}
	r, err := f.Reader()
	if err != nil {
		return fmt.Errorf("cache: opening locker atom.nix: %w", err)
	}
	defer r.Close()

	out, err := fs.OpenFile("atom.nix", os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("cache: creating atom.nix: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("cache: writing atom.nix: %w", err)
	}
	return nil
}
