package publish

import (
	"context"
	"errors"

	"github.com/ekala-project/atom/internal/errs"
)

// Run executes the publish pipeline for atoms, as returned by Build along
// with b: publish each atom (logging and counting per-atom failures
// without aborting the batch), then await all enqueued
// pushes. It returns the aggregate Stats and, if any push failed,
// ErrSomePushFailed wrapping the collected push errors.
func Run(ctx context.Context, b *Builder, atoms ValidAtoms) (Stats, error) {
	var stats Stats

	for tag, path := range atoms {
		outcome, err := b.PublishOne(ctx, tag, path)
		if err != nil {
			stats.Failed++
			b.Log.Warnw("atom publish failed", "tag", tag, "path", path, "error", err)
			continue
		}
		if outcome.Skipped {
			stats.Skipped++
			continue
		}
		stats.Published++
	}

	if pushErrs := b.AwaitPushes(ctx); len(pushErrs) > 0 {
		return stats, errors.Join(append([]error{errs.ErrSomePushFailed}, pushErrs...)...)
	}

	return stats, nil
}
