package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/spf13/cobra"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/manifest"
	"github.com/ekala-project/atom/internal/metrics"
	"github.com/ekala-project/atom/internal/setresolver"
	"github.com/ekala-project/atom/internal/storegit"
)

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <set-name>...",
		Short: "Resolve named manifest mirror sets and print the agreed atom map",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			maybeServeMetrics(log)

			raw, err := os.ReadFile(filepath.Join(flags.workDir, manifest.FileName))
			if err != nil {
				return fmt.Errorf("reading %s: %w", manifest.FileName, err)
			}
			m, err := manifest.Parse(raw)
			if err != nil {
				return err
			}

			wanted := make(map[string]bool, len(args))
			for _, name := range args {
				wanted[name] = true
			}

			var specs []setresolver.SetSpec
			for _, decl := range m.Sets {
				if !wanted[decl.Name] {
					continue
				}
				spec := setresolver.SetSpec{Name: decl.Name, URLs: decl.URLs}
				switch decl.Kind {
				case manifest.SetSingleton:
					spec.Kind = setresolver.KindSingleton
				case manifest.SetMirrors:
					spec.Kind = setresolver.KindMirrors
				case manifest.SetLocal:
					spec.Kind = setresolver.KindLocal
				}
				specs = append(specs, spec)
			}
			if len(specs) == 0 {
				return fmt.Errorf("no matching package.sets entries for %v", args)
			}

			localOrigin := func(setName string) (atomid.Origin, []storegit.AtomRefEntry, error) {
				return resolveLocalSet(cmd.Context())
			}

			start := time.Now()
			resolved, err := setresolver.GetAndCheckSets(cmd.Context(), specs, nil, localOrigin, log)
			metrics.ResolveDurationSeconds.Observe(time.Since(start).Seconds())
			if err != nil {
				return err
			}

			for id, versions := range resolved.Atoms {
				for version, rev := range versions {
					fmt.Printf("%s@%s -> %s (rev %s)\n", id, version, id.Origin, rev.Rev)
				}
			}
			return nil
		},
	}
}

// resolveLocalSet computes the running repository's Origin and its
// locally-visible atoms for a KindLocal manifest set.
func resolveLocalSet(ctx context.Context) (atomid.Origin, []storegit.AtomRefEntry, error) {
	repo, err := git.PlainOpen(flags.workDir)
	if err != nil {
		return "", nil, fmt.Errorf("opening repository at %q: %w", flags.workDir, err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", nil, fmt.Errorf("resolving local HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return "", nil, fmt.Errorf("loading local HEAD commit: %w", err)
	}

	origin, err := storegit.CommitOrigin(commit)
	if err != nil {
		return "", nil, err
	}

	iter, err := repo.References()
	if err != nil {
		return "", nil, fmt.Errorf("iterating local refs: %w", err)
	}
	defer iter.Close()

	var atoms []storegit.AtomRefEntry
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		unpacked, uerr := storegit.UnpackAtomRef(ref.Name().String())
		if uerr != nil {
			return nil
		}
		atoms = append(atoms, storegit.AtomRefEntry{Unpacked: unpacked, Target: ref.Hash()})
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	return origin, atoms, nil
}
