package storegit

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	transportclient "github.com/go-git/go-git/v5/plumbing/transport/client"
)

// Ref is a single advertised reference: its name and the object it
// targets. Peeled is left zero by both query implementations.
type Ref struct {
	Name   string
	Target plumbing.Hash
	Peeled plumbing.Hash
}

// RemoteQuery is the contract shared by the lightweight and heavyweight
// remote query implementations: both can enumerate refs matching a set of
// refspecs, fetch a single ref, and hand back a transport client for the
// queried URL. Transport creates a new client on each call (nil if the URL
// cannot be turned into one); the connection used by the query itself is
// not kept or reused.
type RemoteQuery interface {
	GetRefs(ctx context.Context, specs []config.RefSpec) ([]Ref, error)
	GetRef(ctx context.Context, name string) (Ref, error)
	Transport() transport.Transport
}

// LightweightQuery performs only a transport handshake and reference
// advertisement read -- no objects are fetched. Used for existence checks
// and version enumeration.
type LightweightQuery struct {
	url     string
	auth    transport.AuthMethod
	remote  *git.Remote
	adverts []*plumbing.Reference
}

// NewLightweightQuery opens a transport to url and retrieves its reference
// advertisement. No objects are downloaded.
func NewLightweightQuery(ctx context.Context, url string, auth transport.AuthMethod) (*LightweightQuery, error) {
	remote := git.NewRemote(nil, &config.RemoteConfig{Name: "origin", URLs: []string{url}})

	refs, err := remote.ListContext(ctx, &git.ListOptions{Auth: auth})
	if err != nil {
		return nil, fmt.Errorf("storegit: listing refs on %q: %w", url, err)
	}

	return &LightweightQuery{url: url, auth: auth, remote: remote, adverts: refs}, nil
}

func (q *LightweightQuery) GetRefs(_ context.Context, specs []config.RefSpec) ([]Ref, error) {
	var out []Ref
	for _, ref := range q.adverts {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		if len(specs) > 0 && !matchesAny(ref.Name(), specs) {
			continue
		}
		out = append(out, Ref{Name: ref.Name().String(), Target: ref.Hash()})
	}
	return out, nil
}

func (q *LightweightQuery) GetRef(_ context.Context, name string) (Ref, error) {
	for _, ref := range q.adverts {
		if ref.Name().String() == name {
			return Ref{Name: name, Target: ref.Hash()}, nil
		}
	}
	return Ref{}, fmt.Errorf("storegit: ref %q not advertised by %q", name, q.url)
}

func (q *LightweightQuery) Transport() transport.Transport {
	ep, err := transport.NewEndpoint(q.url)
	if err != nil {
		return nil
	}
	t, err := transportclient.NewClient(ep)
	if err != nil {
		return nil
	}
	return t
}

// HeavyweightQuery performs a packed-refs-only fetch of the supplied
// refspecs into a local repository, so later traversal (Origin
// computation, tree walks) works against local objects.
type HeavyweightQuery struct {
	repo       *git.Repository
	remoteName string
	url        string
	auth       transport.AuthMethod
}

// NewHeavyweightQuery binds a heavyweight query to an existing local
// repository and a configured remote name.
func NewHeavyweightQuery(repo *git.Repository, remoteName, url string, auth transport.AuthMethod) *HeavyweightQuery {
	return &HeavyweightQuery{repo: repo, remoteName: remoteName, url: url, auth: auth}
}

func (q *HeavyweightQuery) Fetch(ctx context.Context, specs []config.RefSpec) error {
	err := q.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: q.remoteName,
		RefSpecs:   specs,
		Auth:       q.auth,
		Tags:       git.NoTags,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return fmt.Errorf("storegit: fetching %v from %q: %w", specs, q.url, err)
	}
	return nil
}

func (q *HeavyweightQuery) GetRefs(ctx context.Context, specs []config.RefSpec) ([]Ref, error) {
	if err := q.Fetch(ctx, specs); err != nil {
		return nil, err
	}

	iter, err := q.repo.References()
	if err != nil {
		return nil, fmt.Errorf("storegit: iterating local refs: %w", err)
	}
	defer iter.Close()

	var out []Ref
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		if len(specs) > 0 && !matchesAny(ref.Name(), specs) {
			return nil
		}
		out = append(out, Ref{Name: ref.Name().String(), Target: ref.Hash()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storegit: iterating local refs: %w", err)
	}
	return out, nil
}

func (q *HeavyweightQuery) GetRef(ctx context.Context, name string) (Ref, error) {
	refName := plumbing.ReferenceName(name)
	spec := config.RefSpec(fmt.Sprintf("+%s:%s", refName, refName))
	if err := q.Fetch(ctx, []config.RefSpec{spec}); err != nil {
		return Ref{}, err
	}
	ref, err := q.repo.Reference(refName, true)
	if err != nil {
		return Ref{}, fmt.Errorf("storegit: resolving %q: %w", name, err)
	}
	return Ref{Name: name, Target: ref.Hash()}, nil
}

func (q *HeavyweightQuery) Transport() transport.Transport {
	ep, err := transport.NewEndpoint(q.url)
	if err != nil {
		return nil
	}
	t, err := transportclient.NewClient(ep)
	if err != nil {
		return nil
	}
	return t
}

func matchesAny(name plumbing.ReferenceName, specs []config.RefSpec) bool {
	for _, spec := range specs {
		if spec.Match(name) {
			return true
		}
	}
	return false
}
