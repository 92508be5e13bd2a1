package main

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/spf13/cobra"

	"github.com/ekala-project/atom/internal/storegit"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <remote>",
		Short: "Initialize the store's root marker against a remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			remoteName := args[0]

			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			repo, err := git.PlainOpen(flags.workDir)
			if err != nil {
				return fmt.Errorf("opening repository at %q: %w", flags.workDir, err)
			}

			origin, err := storegit.Init(cmd.Context(), repo, remoteName, nil, log)
			if err != nil {
				return err
			}

			fmt.Printf("initialized store at origin %s\n", origin)
			return nil
		},
	}
}
