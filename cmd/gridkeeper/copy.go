package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gridkeeper/gridkeeper/internal/copier"
)

func newCopyCmd() *cobra.Command {
	var opts copier.Options

	cmd := &cobra.Command{
		Use:   "copy <source> <destination>",
		Short: "Copy a collection or data object, verified by checksum",
		Long: `Copy a collection or data object to a new path.

The copy is idempotent under --exist-ok: destination objects whose checksum
already matches the source are skipped, so a partially completed copy can be
re-run to completion. A destination whose checksum differs aborts the run
without touching later entries.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			pool := newPool(cfg)
			defer pool.Close()

			c, err := pool.Acquire(ctx)
			if err != nil {
				return err
			}

			engine := copier.NewEngine(log.Logger)
			processed, copied, err := engine.Copy(ctx, c, args[0], args[1], opts)
			pool.Release(c, err)

			log.Info().Str("src", args[0]).Str("dst", args[1]).
				Int("processed", processed).Int("copied", copied).
				Msg("Copy finished")
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.AVU, "avu", false, "copy metadata")
	cmd.Flags().BoolVar(&opts.ACL, "acl", false, "copy access control lists")
	cmd.Flags().BoolVarP(&opts.Recurse, "recurse", "r", false, "descend into sub-collections")
	cmd.Flags().BoolVar(&opts.ExistOK, "exist-ok", false, "skip destination objects with matching checksums")
	return cmd
}
