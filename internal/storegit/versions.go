package storegit

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5/config"
	"go.uber.org/zap"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
)

// GetAtoms enumerates every ref matching refs/eka/atoms/*/* advertised by
// q, decomposing each into (tag, version, object id). Malformed ref names
// (unparseable tag or version) are skipped and logged rather than failing
// the whole scan.
func GetAtoms(ctx context.Context, q RemoteQuery, log *zap.SugaredLogger) ([]AtomRefEntry, error) {
	spec := config.RefSpec(fmt.Sprintf("+%s/*:%s/*", AtomRefsPrefix, AtomRefsPrefix))
	refs, err := q.GetRefs(ctx, []config.RefSpec{spec})
	if err != nil {
		return nil, fmt.Errorf("storegit: enumerating atom refs: %w", err)
	}

	entries := make([]AtomRefEntry, 0, len(refs))
	for _, ref := range refs {
		unpacked, err := UnpackAtomRef(ref.Name)
		if err != nil {
			if log != nil {
				log.Warnw("skipping malformed atom ref", "ref", ref.Name, "error", err)
			}
			continue
		}
		entries = append(entries, AtomRefEntry{Unpacked: unpacked, Target: ref.Target})
	}
	return entries, nil
}

// GetHighestMatch filters entries by tag, keeps the ones whose version
// satisfies versionReq, and returns the highest by standard SemVer
// precedence (including pre-release ordering).
func GetHighestMatch(entries []AtomRefEntry, tag atomid.Tag, versionReq string) (AtomRefEntry, error) {
	constraint, err := semver.NewConstraint(versionReq)
	if err != nil {
		return AtomRefEntry{}, fmt.Errorf("storegit: invalid version requirement %q: %w", versionReq, err)
	}

	var best *AtomRefEntry
	for i := range entries {
		e := entries[i]
		if e.Unpacked.Tag != tag {
			continue
		}
		if !constraint.Check(e.Unpacked.Version) {
			continue
		}
		if best == nil || e.Unpacked.Version.GreaterThan(best.Unpacked.Version) {
			best = &e
		}
	}
	if best == nil {
		return AtomRefEntry{}, fmt.Errorf("%w: tag %q, requirement %q", errs.ErrNoMatchingVersion, tag, versionReq)
	}
	return *best, nil
}
