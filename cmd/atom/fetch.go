package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekala-project/atom/internal/atomid"
	"github.com/ekala-project/atom/internal/cache"
	"github.com/ekala-project/atom/internal/metrics"
)

func newFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <remote> <tag>@<version-req> <dest-dir>",
		Short: "Ensure the remote, resolve an atom to the local cache, and materialize it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			remoteURL, atomSpec, dest := args[0], args[1], args[2]

			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			maybeServeMetrics(log)

			tagPart, versionReq, ok := strings.Cut(atomSpec, "@")
			if !ok {
				return fmt.Errorf("expected <tag>@<version-req>, got %q", atomSpec)
			}
			tag, err := atomid.Validate(tagPart)
			if err != nil {
				return fmt.Errorf("invalid tag %q: %w", tagPart, err)
			}

			c, err := cache.Get(flags.workDir)
			if err != nil {
				metrics.MaterializeTotal.WithLabelValues(metrics.ResultError).Inc()
				return err
			}

			remoteName, err := c.EnsureRemote(cmd.Context(), remoteURL, nil)
			if err != nil {
				metrics.MaterializeTotal.WithLabelValues(metrics.ResultError).Inc()
				return err
			}

			ids, err := c.ResolveToCache(cmd.Context(), remoteName, remoteURL, tag, versionReq, nil, true)
			if err != nil {
				metrics.MaterializeTotal.WithLabelValues(metrics.ResultError).Inc()
				return err
			}

			opts := cache.MaterializeOptions{}
			if ids.Locker != nil {
				opts.LockerCommit = *ids.Locker
			}
			if err := c.Materialize(ids.Atom, dest, opts); err != nil {
				metrics.MaterializeTotal.WithLabelValues(metrics.ResultError).Inc()
				return err
			}

			metrics.MaterializeTotal.WithLabelValues(metrics.ResultOK).Inc()
			fmt.Printf("materialized %s@%s into %s\n", tag, versionReq, dest)
			return nil
		},
	}
}
