package main

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/ekala-project/atom/internal/metrics"
	"github.com/ekala-project/atom/internal/publish"
)

func newPublishCmd() *cobra.Command {
	var remote string
	var revspec string

	var recursive bool

	cmd := &cobra.Command{
		Use:   "publish [paths...]",
		Short: "Discover and publish every atom found at a revision",
		// paths/recursive are accepted for surface compatibility; tree
		// discovery already walks the full revision, so they are
		// currently no-ops reserved for a future scoped-discovery mode.
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			maybeServeMetrics(log)

			repo, err := git.PlainOpen(flags.workDir)
			if err != nil {
				return fmt.Errorf("opening repository at %q: %w", flags.workDir, err)
			}

			atoms, builder, err := publish.Build(cmd.Context(), repo, remote, revspec, nil, log)
			if err != nil {
				return err
			}

			stats, err := publish.Run(cmd.Context(), builder, atoms)

			metrics.PublishTotal.WithLabelValues(metrics.ResultOK).Add(float64(stats.Published))
			metrics.PublishTotal.WithLabelValues(metrics.ResultSkipped).Add(float64(stats.Skipped))
			metrics.PublishTotal.WithLabelValues(metrics.ResultError).Add(float64(stats.Failed))

			fmt.Printf("published=%d skipped=%d failed=%d\n", stats.Published, stats.Skipped, stats.Failed)

			if err != nil {
				return err
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d atom(s) failed to publish", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&remote, "remote", "origin", "remote name to publish against")
	cmd.Flags().StringVar(&revspec, "rev", "HEAD", "revision to discover atoms at")
	cmd.Flags().BoolVar(&recursive, "recursive", true, "discover atoms recursively (currently always true)")

	return cmd
}
