// Package storegit implements the Git-backed store protocol: the
// reference namespace that indexes atoms, root-marker initialization and
// consistency checks, and the lightweight/heavyweight remote query
// primitives the publisher and set resolver build on.
package storegit

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ekala-project/atom/internal/atomid"
)

// Reference namespace constants. These are fixed wire format: changing
// them breaks every store already published under the old names.
const (
	storeRoot = "eka"

	// RootMarkerRef is the remote reference pinning a store's origin. A
	// version bump here means a new marker, not a rewrite of this one.
	RootMarkerRef = "refs/tags/ekala/root/v1"

	atomRefSegment   = "atoms"
	metaRefSegment   = "meta"
	originRefSegment = "origin"
	manifestSegment  = "manifest"
)

// refRoot is "refs/eka".
var refRoot = "refs/" + storeRoot

// AtomRefsPrefix is the prefix under which every atom content ref lives:
// "refs/eka/atoms".
var AtomRefsPrefix = refRoot + "/" + atomRefSegment

// MetaRefsPrefix is the prefix under which every atom meta ref (origin,
// manifest) lives: "refs/eka/meta".
var MetaRefsPrefix = refRoot + "/" + metaRefSegment

// ContentRef returns the content reference name for (tag, version):
// refs/eka/atoms/<tag>/<version>.
func ContentRef(tag atomid.Tag, version *semver.Version) string {
	return fmt.Sprintf("%s/%s/%s", AtomRefsPrefix, tag, version)
}

// SpecRef returns the spec (manifest) reference name for (tag, version):
// refs/eka/meta/<tag>/<version>/manifest.
func SpecRef(tag atomid.Tag, version *semver.Version) string {
	return fmt.Sprintf("%s/%s/%s/%s", MetaRefsPrefix, tag, version, manifestSegment)
}

// OriginRef returns the origin reference name for (tag, version):
// refs/eka/meta/<tag>/<version>/origin.
func OriginRef(tag atomid.Tag, version *semver.Version) string {
	return fmt.Sprintf("%s/%s/%s/%s", MetaRefsPrefix, tag, version, originRefSegment)
}

// UnpackedAtomRef is a decomposed refs/eka/atoms/<tag>/<version> reference.
type UnpackedAtomRef struct {
	Tag     atomid.Tag
	Version *semver.Version
}

// UnpackAtomRef parses a content ref name of the form
// "refs/eka/atoms/<tag>/<version>" into its tag and version. Malformed
// names (wrong prefix, missing segments, invalid tag or version) return an
// error; callers enumerating refs should skip these rather than fail the
// whole scan, per the store protocol's "skip malformed names" rule.
func UnpackAtomRef(name string) (UnpackedAtomRef, error) {
	rest, ok := strings.CutPrefix(name, AtomRefsPrefix+"/")
	if !ok {
		return UnpackedAtomRef{}, fmt.Errorf("storegit: %q is not an atom content ref", name)
	}

	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return UnpackedAtomRef{}, fmt.Errorf("storegit: %q is missing a version segment", name)
	}
	tagPart, versionPart := rest[:idx], rest[idx+1:]

	tag, err := atomid.Validate(tagPart)
	if err != nil {
		return UnpackedAtomRef{}, fmt.Errorf("storegit: invalid tag in ref %q: %w", name, err)
	}
	version, err := semver.NewVersion(versionPart)
	if err != nil {
		return UnpackedAtomRef{}, fmt.Errorf("storegit: invalid version in ref %q: %w", name, err)
	}

	return UnpackedAtomRef{Tag: tag, Version: version}, nil
}
