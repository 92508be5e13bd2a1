// Package manifest parses the atom.toml manifest: the strict TOML document
// every atom carries at its content root, with its three-field [atom]
// table and optional [package.sets] table.
package manifest

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/errs"
)

// FileName is the fixed manifest filename every atom carries.
const FileName = "atom.toml"

// document mirrors the TOML shape before validation: a raw string tag so
// we can run it through atomid.Validate and report the specific
// validation failure, rather than a generic decode error.
type document struct {
	Atom struct {
		Tag         string `toml:"tag"`
		Version     string `toml:"version"`
		Description string `toml:"description"`
	} `toml:"atom"`
	Package struct {
		Sets map[string]interface{} `toml:"sets"`
	} `toml:"package"`
}

// SetKind tags the shape a `package.sets` entry took in TOML.
type SetKind int

const (
	// SetSingleton is a single mirror URL given as a bare string.
	SetSingleton SetKind = iota
	// SetMirrors is a list of mirror URLs that must all agree.
	SetMirrors
	// SetLocal is the literal string "local": the running repository
	// itself stands in for this set, with no remote to query.
	SetLocal
)

// SetDecl is one decoded `package.sets` entry.
type SetDecl struct {
	Name string
	Kind SetKind
	URLs []string
}

// Manifest is the validated, in-memory form of atom.toml.
type Manifest struct {
	Tag         atomid.Tag
	Version     *semver.Version
	Description string
	Sets        []SetDecl
}

// Parse decodes raw TOML bytes into a Manifest, rejecting any key the
// document shape does not declare (an unknown table or an unknown field
// in [atom]), a missing tag or version, an
// invalid tag (per the C1 validation rules), or a non-SemVer version
// string.
func Parse(raw []byte) (Manifest, error) {
	var doc document
	meta, err := toml.Decode(string(raw), &doc)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: %s", errs.ErrManifestInvalid, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Manifest{}, fmt.Errorf("%w: unknown keys %v", errs.ErrManifestInvalid, undecoded)
	}

	if doc.Atom.Tag == "" {
		return Manifest{}, fmt.Errorf("%w: missing [atom].tag", errs.ErrManifestInvalid)
	}
	if doc.Atom.Version == "" {
		return Manifest{}, fmt.Errorf("%w: missing [atom].version", errs.ErrManifestInvalid)
	}

	tag, err := atomid.Validate(doc.Atom.Tag)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: tag: %w", errs.ErrManifestInvalid, err)
	}

	version, err := semver.NewVersion(doc.Atom.Version)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: version: %w", errs.ErrManifestInvalid, err)
	}

	sets, err := decodeSets(doc.Package.Sets)
	if err != nil {
		return Manifest{}, err
	}

	return Manifest{Tag: tag, Version: version, Description: doc.Atom.Description, Sets: sets}, nil
}

// decodeSets classifies each package.sets entry by its TOML value shape: a
// bare string "local" is SetLocal, any other bare string is a SetSingleton
// URL, and an array of strings is SetMirrors.
func decodeSets(raw map[string]interface{}) ([]SetDecl, error) {
	var out []SetDecl
	for name, v := range raw {
		switch val := v.(type) {
		case string:
			if val == "local" {
				out = append(out, SetDecl{Name: name, Kind: SetLocal})
			} else {
				out = append(out, SetDecl{Name: name, Kind: SetSingleton, URLs: []string{val}})
			}
		case []interface{}:
			urls := make([]string, 0, len(val))
			for _, item := range val {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: package.sets.%s: mirror list must contain only strings", errs.ErrManifestInvalid, name)
				}
				urls = append(urls, s)
			}
			out = append(out, SetDecl{Name: name, Kind: SetMirrors, URLs: urls})
		default:
			return nil, fmt.Errorf("%w: package.sets.%s: must be a URL string, \"local\", or a list of URLs", errs.ErrManifestInvalid, name)
		}
	}
	return out, nil
}
