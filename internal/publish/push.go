package publish

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"golang.org/x/sync/errgroup"

	"github.com/ekala-project/atom/internal/metrics"
)

// pushTask is one enqueued ref push: a single refspec against a named
// remote. The push pool makes no ordering guarantee across atoms or
// across the three refs of one atom.
type pushTask struct {
	remoteName string
	refName    string
	auth       transport.AuthMethod
}

// pushPool is the concurrent task set the publisher drains with
// AwaitPushes. It deliberately does not use errgroup's fail-fast Wait():
// every task runs regardless of earlier failures, and every error is
// collected, matching the "drains the pool, collecting failures without
// aborting remaining tasks" requirement.
type pushPool struct {
	mu    sync.Mutex
	tasks []pushTask
}

func newPushPool() *pushPool {
	return &pushPool{}
}

func (p *pushPool) enqueue(remoteName, refName string, auth transport.AuthMethod) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, pushTask{remoteName: remoteName, refName: refName, auth: auth})
}

// AwaitPushes drains the pool, running every enqueued push concurrently
// and collecting failures rather than aborting on the first one. It
// returns every push error collected (nil if all pushes succeeded); Run
// wraps a non-empty result in ErrSomePushFailed.
func (b *Builder) AwaitPushes(ctx context.Context) []error {
	return b.pool.drain(ctx, b.Repo)
}

func (p *pushPool) drain(ctx context.Context, repo *git.Repository) []error {
	p.mu.Lock()
	tasks := p.tasks
	p.tasks = nil
	p.mu.Unlock()

	if len(tasks) == 0 {
		return nil
	}

	var mu sync.Mutex
	var errsOut []error

	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := pushOne(ctx, repo, task); err != nil {
				metrics.PushTotal.WithLabelValues(metrics.ResultError).Inc()
				mu.Lock()
				errsOut = append(errsOut, fmt.Errorf("pushing %s to %s: %w", task.refName, task.remoteName, err))
				mu.Unlock()
			} else {
				metrics.PushTotal.WithLabelValues(metrics.ResultOK).Inc()
			}
			// Always return nil: errgroup's context cancellation on first
			// error would abort sibling pushes, which the publisher's
			// non-aborting aggregation contract forbids.
			return nil
		})
	}
	_ = g.Wait()

	return errsOut
}

func pushOne(ctx context.Context, repo *git.Repository, task pushTask) error {
	remote, err := repo.Remote(task.remoteName)
	if err != nil {
		return fmt.Errorf("resolving remote: %w", err)
	}

	spec := config.RefSpec(fmt.Sprintf("%s:%s", task.refName, task.refName))
	err = remote.PushContext(ctx, &git.PushOptions{
		RefSpecs: []config.RefSpec{spec},
		Auth:     task.auth,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return err
	}
	return nil
}
