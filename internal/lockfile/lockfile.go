// Package lockfile parses atom.lock: the tagged-union dependency and
// source manifest resolved atoms carry alongside their content, following
// the "deps"/"srcs" schema (the newer of the two schemas the original
// project's history left in flux; see SPEC_FULL.md §9).
package lockfile

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/ekala-project/atom/internal/errs"
)

// FileName is the canonical lockfile name inside an atom's content tree.
const FileName = "atom.lock"

// LockerDepName is the well-known dependency name C5's materializer looks
// for when resolving a locker atom one level deep.
const LockerDepName = "locker"

// DepKind enumerates the tagged-union variants of a dependency entry.
type DepKind string

const (
	DepAtom    DepKind = "atom"
	DepPin     DepKind = "pin"
	DepPinGit  DepKind = "pin+git"
	DepPinTar  DepKind = "pin+tar"
	DepFrom    DepKind = "from"
)

// SrcKind enumerates the tagged-union variants of a source entry.
type SrcKind string

const SrcBuild SrcKind = "build"

// AtomLocation is a URL-or-path reference to where an atom dependency can
// be fetched from, in addition to its pinned revision.
type AtomLocation struct {
	URL  string
	Path string
}

// Dep is one decoded entry of the lockfile's `deps` list. Only the fields
// relevant to Kind are populated; unknown fields in the source TOML are
// rejected at decode time.
type Dep struct {
	Kind DepKind

	// DepAtom
	ID       string
	Version  string
	Rev      string
	Location *AtomLocation

	// Name: every kind (for DepAtom it identifies the locker).
	// URL, Hash: DepPin / DepPinTar. Path: DepPin / DepPinTar /
	// DepPinGit / DepFrom (a DepAtom's url or path goes to Location).
	Name string
	URL  string
	Hash string
	Path string

	// DepPinGit (URL also set)
	GitRev string

	// DepFrom
	From string
	Get  string
}

// IsLocker reports whether this dependency is the well-known locker atom.
func (d Dep) IsLocker() bool {
	return d.Kind == DepAtom && d.Name == LockerDepName
}

// Src is one decoded entry of the lockfile's `srcs` list.
type Src struct {
	Kind SrcKind
	Name string
	URL  string
	Hash string
}

// Lockfile is the parsed, validated atom.lock document.
type Lockfile struct {
	Version uint8
	Deps    []Dep
	Srcs    []Src
}

// rawDoc mirrors the on-disk shape: a version plus two arrays of
// loosely-typed tables, each dispatched on its own `type` field.
type rawDoc struct {
	Version uint8                    `toml:"version"`
	Deps    []map[string]interface{} `toml:"deps"`
	Srcs    []map[string]interface{} `toml:"srcs"`
}

// Parse decodes raw TOML bytes into a Lockfile, rejecting unknown fields
// within each tagged-union variant and unrecognized `type` values.
func Parse(raw []byte) (Lockfile, error) {
	var doc rawDoc
	if _, err := toml.Decode(string(raw), &doc); err != nil {
		return Lockfile{}, fmt.Errorf("%w: %s", errs.ErrMalformedLockfile, err)
	}

	lock := Lockfile{Version: doc.Version}

	for _, raw := range doc.Deps {
		dep, err := decodeDep(raw)
		if err != nil {
			return Lockfile{}, err
		}
		lock.Deps = append(lock.Deps, dep)
	}
	for _, raw := range doc.Srcs {
		src, err := decodeSrc(raw)
		if err != nil {
			return Lockfile{}, err
		}
		lock.Srcs = append(lock.Srcs, src)
	}

	return lock, nil
}

func decodeDep(raw map[string]interface{}) (Dep, error) {
	kind, _ := raw["type"].(string)
	switch DepKind(kind) {
	case DepAtom:
		dep := Dep{Kind: DepAtom}
		dep.ID, _ = raw["id"].(string)
		dep.Version, _ = raw["version"].(string)
		dep.Rev, _ = raw["rev"].(string)
		if url, ok := raw["url"].(string); ok {
			dep.Location = &AtomLocation{URL: url}
		} else if path, ok := raw["path"].(string); ok {
			dep.Location = &AtomLocation{Path: path}
		}
		dep.Name, _ = raw["name"].(string)
		return dep, validateKeys(raw, "type", "id", "version", "rev", "url", "path", "name")
	case DepPin:
		dep := Dep{Kind: DepPin}
		dep.Name, _ = raw["name"].(string)
		dep.URL, _ = raw["url"].(string)
		dep.Hash, _ = raw["hash"].(string)
		dep.Path, _ = raw["path"].(string)
		return dep, validateKeys(raw, "type", "name", "url", "hash", "path")
	case DepPinGit:
		dep := Dep{Kind: DepPinGit}
		dep.Name, _ = raw["name"].(string)
		dep.URL, _ = raw["url"].(string)
		dep.GitRev, _ = raw["rev"].(string)
		dep.Path, _ = raw["path"].(string)
		return dep, validateKeys(raw, "type", "name", "url", "rev", "path")
	case DepPinTar:
		dep := Dep{Kind: DepPinTar}
		dep.Name, _ = raw["name"].(string)
		dep.URL, _ = raw["url"].(string)
		dep.Hash, _ = raw["hash"].(string)
		dep.Path, _ = raw["path"].(string)
		return dep, validateKeys(raw, "type", "name", "url", "hash", "path")
	case DepFrom:
		dep := Dep{Kind: DepFrom}
		dep.Name, _ = raw["name"].(string)
		dep.From, _ = raw["from"].(string)
		dep.Get, _ = raw["get"].(string)
		dep.Path, _ = raw["path"].(string)
		return dep, validateKeys(raw, "type", "name", "from", "get", "path")
	default:
		return Dep{}, fmt.Errorf("%w: unknown dependency type %q", errs.ErrMalformedLockfile, kind)
	}
}

func decodeSrc(raw map[string]interface{}) (Src, error) {
	kind, _ := raw["type"].(string)
	switch SrcKind(kind) {
	case SrcBuild:
		src := Src{Kind: SrcBuild}
		src.Name, _ = raw["name"].(string)
		src.URL, _ = raw["url"].(string)
		src.Hash, _ = raw["hash"].(string)
		return src, validateKeys(raw, "type", "name", "url", "hash")
	default:
		return Src{}, fmt.Errorf("%w: unknown source type %q", errs.ErrMalformedLockfile, kind)
	}
}

func validateKeys(raw map[string]interface{}, allowed ...string) error {
	allowedSet := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		allowedSet[k] = true
	}
	for k := range raw {
		if !allowedSet[k] {
			return fmt.Errorf("%w: unknown field %q", errs.ErrMalformedLockfile, k)
		}
	}
	return nil
}
