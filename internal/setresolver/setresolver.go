// Package setresolver implements the cross-mirror consistency engine: for
// each named group of mirror URLs, verify they all advertise the same
// Origin and the same (tag, version) -> revision mapping.
package setresolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
	"github.com/ekala-project/atom/internal/storegit"
)

// SetKind tags the shape of a manifest `package.sets` entry.
type SetKind int

const (
	KindSingleton SetKind = iota
	KindMirrors
	KindLocal
)

// SetSpec is one entry of the manifest's `package.sets` map.
type SetSpec struct {
	Name  string
	Kind  SetKind
	URLs  []string // empty for KindLocal
}

// mirrorResult is what one mirror task produces: everything the
// single-consumer aggregation loop needs to check the two invariants.
type mirrorResult struct {
	setName string
	url     string
	origin  atomid.Origin
	atoms   []storegit.AtomRefEntry
	q       storegit.RemoteQuery
	err     error
}

// VersionRevision records, for one (AtomId, version), the revision agreed
// on so far and the set of mirror URLs that advertised it.
type VersionRevision struct {
	Rev     string
	Remotes map[string]struct{}
}

// ResolvedSets is the output of GetAndCheckSets: the full atom map keyed
// by (AtomId, version), the origin<->set-name bijection, and every
// mirror's transport, retained for later materialization.
type ResolvedSets struct {
	Atoms      map[atomid.AtomId]map[string]*VersionRevision
	Names      map[atomid.Origin]string
	Transports map[string]transport.Transport
}

// LocalOrigin is supplied by the caller for any KindLocal set: since a
// local set has no remote to query, its Origin is computed directly from
// the running repository's HEAD by the caller.
type LocalOrigin func(setName string) (atomid.Origin, []storegit.AtomRefEntry, error)

// GetAndCheckSets resolves every set in specs concurrently (one task per
// mirror URL; KindLocal sets are resolved synchronously via localOrigin)
// and enforces, as results arrive: set uniqueness (an origin may not
// appear under two set names and vice versa) and atom coherence (every
// mirror sharing a (tag, version) must agree on its revision).
func GetAndCheckSets(ctx context.Context, specs []SetSpec, auth transport.AuthMethod, localOrigin LocalOrigin, log *zap.SugaredLogger) (*ResolvedSets, error) {
	results := make(chan mirrorResult)

	g, ctx := errgroup.WithContext(ctx)

	for _, spec := range specs {
		spec := spec
		switch spec.Kind {
		case KindLocal:
			origin, atoms, err := localOrigin(spec.Name)
			r := mirrorResult{setName: spec.Name, url: "local", origin: origin, atoms: atoms, err: err}
			go func() { results <- r }()
		default:
			for _, url := range spec.URLs {
				url := url
				g.Go(func() error {
					r := resolveMirror(ctx, spec.Name, url, auth, log)
					select {
					case results <- r:
					case <-ctx.Done():
					}
					return nil
				})
			}
		}
	}

	total := 0
	for _, spec := range specs {
		if spec.Kind == KindLocal {
			total++
		} else {
			total += len(spec.URLs)
		}
	}

	go func() {
		_ = g.Wait()
	}()

	resolved := &ResolvedSets{
		Atoms:      make(map[atomid.AtomId]map[string]*VersionRevision),
		Names:      make(map[atomid.Origin]string),
		Transports: make(map[string]transport.Transport),
	}
	names := make(map[string]atomid.Origin) // set_name -> origin, inverse of resolved.Names

	var mu sync.Mutex
	for i := 0; i < total; i++ {
		r := <-results
		if r.err != nil {
			return nil, fmt.Errorf("setresolver: resolving mirror %q (%s): %w", r.url, r.setName, r.err)
		}

		mu.Lock()
		if err := checkSetConsistency(resolved.Names, names, r.setName, r.origin); err != nil {
			mu.Unlock()
			return nil, err
		}
		if r.q != nil {
			resolved.Transports[r.url] = r.q.Transport()
		}
		for _, entry := range r.atoms {
			id := atomid.New(r.origin, entry.Unpacked.Tag)
			if err := checkAndInsertAtom(resolved.Atoms, id, entry.Unpacked.Version.String(), entry.Target.String(), r.url, log); err != nil {
				mu.Unlock()
				return nil, err
			}
		}
		mu.Unlock()
	}

	return resolved, nil
}

// checkSetConsistency enforces that origin<->setName is a bijection
// across every mirror seen so far.
func checkSetConsistency(byOrigin map[atomid.Origin]string, byName map[string]atomid.Origin, setName string, origin atomid.Origin) error {
	if existingName, ok := byOrigin[origin]; ok && existingName != setName {
		return fmt.Errorf("%w: origin %q already bound to set %q, cannot also bind to %q", errs.ErrInconsistent, origin, existingName, setName)
	}
	if existingOrigin, ok := byName[setName]; ok && existingOrigin != origin {
		return fmt.Errorf("%w: set %q already bound to origin %q, cannot also bind to %q", errs.ErrInconsistent, setName, existingOrigin, origin)
	}
	byOrigin[origin] = setName
	byName[setName] = origin
	return nil
}

// checkAndInsertAtom enforces atom coherence for one (AtomId, version):
// a new entry is inserted on first sight; later mirrors must agree on the
// recorded revision, or the resolution fails naming every conflicting
// mirror.
func checkAndInsertAtom(atoms map[atomid.AtomId]map[string]*VersionRevision, id atomid.AtomId, version, rev, mirrorURL string, log *zap.SugaredLogger) error {
	versions, ok := atoms[id]
	if !ok {
		versions = make(map[string]*VersionRevision)
		atoms[id] = versions
	}

	existing, ok := versions[version]
	if !ok {
		versions[version] = &VersionRevision{Rev: rev, Remotes: map[string]struct{}{mirrorURL: {}}}
		return nil
	}

	if existing.Rev != rev {
		existingMirrors := make([]string, 0, len(existing.Remotes))
		for m := range existing.Remotes {
			existingMirrors = append(existingMirrors, m)
		}
		if log != nil {
			log.Errorw("mirror disagreement on atom revision",
				"atom", id, "version", version,
				"existingRev", existing.Rev, "existingMirrors", existingMirrors,
				"conflictingRev", rev, "conflictingMirror", mirrorURL)
		}
		return fmt.Errorf("%w: atom %s@%s: mirror %q advertises rev %s, expected %s (from %v)",
			errs.ErrInconsistent, id, version, mirrorURL, rev, existing.Rev, existingMirrors)
	}

	existing.Remotes[mirrorURL] = struct{}{}
	return nil
}

func resolveMirror(ctx context.Context, setName, url string, auth transport.AuthMethod, log *zap.SugaredLogger) mirrorResult {
	q, err := storegit.NewLightweightQuery(ctx, url, auth)
	if err != nil {
		return mirrorResult{setName: setName, url: url, err: err}
	}

	atoms, err := storegit.GetAtoms(ctx, q, log)
	if err != nil {
		return mirrorResult{setName: setName, url: url, err: err}
	}

	// GetAtoms only lists refs/eka/atoms, so the root sentinel triple is
	// built from the advertised root marker.
	marker, err := q.GetRef(ctx, storegit.RootMarkerRef)
	if err != nil {
		return mirrorResult{setName: setName, url: url, err: fmt.Errorf("%w: %w", errs.ErrNotInitialized, err)}
	}
	root := storegit.AtomRefEntry{Unpacked: storegit.UnpackedAtomRef{Tag: atomid.RootTagValue()}, Target: marker.Target}
	origin, err := storegit.OriginOfTriples(append([]storegit.AtomRefEntry{root}, atoms...))
	if err != nil {
		return mirrorResult{setName: setName, url: url, err: err}
	}

	return mirrorResult{setName: setName, url: url, origin: origin, atoms: atoms, q: q}
}
