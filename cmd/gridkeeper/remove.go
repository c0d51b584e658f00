package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/remover"
)

func newSafeRemoveScriptCmd() *cobra.Command {
	var output string
	var opts remover.ScriptOptions

	cmd := &cobra.Command{
		Use:   "safe-remove-script <path>",
		Short: "Write a shell script that removes a path and everything under it",
		Long: `Write a shell script of gridctl commands that removes the given path:
one "gridctl rm" per data object, then "gridctl rmdir" per collection,
deepest first. Nothing is removed until someone reviews and runs the
script.`,
		Args: cobra.ExactArgs(1),
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

			if output == "" {
				err = remover.WriteScript(ctx, c, args[0], os.Stdout, opts)
			} else {
				err = writeScriptFile(ctx, c, args[0], output, opts)
			}
			pool.Release(c, err)
			if err != nil {
				return err
			}

			if output != "" {
				log.Info().Str("path", args[0]).Str("script", output).Msg("Wrote removal script")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the script to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", true, "make the script exit on the first failed command")
	cmd.Flags().BoolVar(&opts.Verbose, "echo-commands", false, "make the script echo each command")
	return cmd
}

// writeScriptFile writes the removal script for target to an executable file.
// The close error is the write error a full disk surfaces, so a truncated
// script is never reported as success.
func writeScriptFile(ctx context.Context, c grid.Client, target, output string, opts remover.ScriptOptions) error {
	f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	err = remover.WriteScript(ctx, c, target, f, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Chmod(output, 0o755)
}
