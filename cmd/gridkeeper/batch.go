package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gridkeeper/gridkeeper/internal/batch"
	"github.com/gridkeeper/gridkeeper/internal/config"
	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/metrics"
)

// batchFlags are the options shared by every batch subcommand.
type batchFlags struct {
	threads     int
	printPass   bool
	printRepair bool
	printFail   bool
	retries     int
	rateLimit   float64
}

func (bf *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&bf.threads, "threads", 0, "worker count")
	cmd.Flags().BoolVar(&bf.printPass, "print-pass", false, "print paths that pass")
	cmd.Flags().BoolVar(&bf.printRepair, "print-repair", false, "print paths that were repaired")
	cmd.Flags().BoolVar(&bf.printFail, "print-fail", false, "print paths that fail")
	cmd.Flags().IntVar(&bf.retries, "connection-retries", 0, "retries per path after connection failures")
	cmd.Flags().Float64Var(&bf.rateLimit, "rate-limit", 0, "store operations per second, 0 = unlimited")
}

func (bf *batchFlags) options(cfg *config.Config, operation string) batch.Options {
	opts := batch.Options{
		Threads:           cfg.Batch.Threads,
		PrintPass:         bf.printPass,
		PrintRepair:       bf.printRepair,
		PrintFail:         bf.printFail,
		ConnectionRetries: cfg.Batch.ConnectionRetries,
		RateLimit:         cfg.Batch.RateLimit,
		RateBurst:         cfg.Batch.RateBurst,
	}
	if bf.threads > 0 {
		opts.Threads = bf.threads
	}
	if bf.retries > 0 {
		opts.ConnectionRetries = bf.retries
	}
	if bf.rateLimit > 0 {
		opts.RateLimit = bf.rateLimit
	}
	if metricsAddr != "" {
		opts.Metrics = metrics.NewBatch(operation)
	}
	return opts
}

// runBatch wires a batch subcommand: config, pool, signal handling and exit
// status. fn runs the batch over stdin/stdout.
func runBatch(operation string, cfg *config.Config,
	fn func(ctx context.Context, pool *grid.Pool, r io.Reader, w io.Writer) (*batch.Summary, error)) error {

	setupLogging()
	serveMetrics()

	ctx, cancel := signalContext()
	defer cancel()

	pool := newPool(cfg)
	defer pool.Close()

	summary, err := fn(ctx, pool, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	log.Info().Str("operation", operation).
		Uint64("processed", summary.Processed).
		Uint64("passed", summary.Passed).
		Uint64("errors", summary.Errors).
		Msg("Done")
	if summary.Errors > 0 {
		return fmt.Errorf("%s: %d of %d paths failed", operation, summary.Errors, summary.Processed)
	}
	return nil
}

func newCheckChecksumsCmd() *cobra.Command {
	var bf batchFlags
	var requireRecord bool

	cmd := &cobra.Command{
		Use:   "check-checksums",
		Short: "Verify replica checksum consistency for paths read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts := bf.options(cfg, "check-checksums")
			return runBatch("check-checksums", cfg,
				func(ctx context.Context, pool *grid.Pool, r io.Reader, w io.Writer) (*batch.Summary, error) {
					return batch.CheckChecksums(ctx, pool, opts, r, w, requireRecord, log.Logger)
				})
		},
	}
	bf.register(cmd)
	cmd.Flags().BoolVar(&requireRecord, "require-record", false,
		"fail paths that have no checksum record")
	return cmd
}

func newCheckReplicasCmd() *cobra.Command {
	var bf batchFlags
	var replicas int
	var resources []string

	cmd := &cobra.Command{
		Use:   "check-replicas",
		Short: "Verify replica counts and validity for paths read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			target, rescs := repairPolicy(cfg, replicas, resources)
			opts := bf.options(cfg, "check-replicas")
			return runBatch("check-replicas", cfg,
				func(ctx context.Context, pool *grid.Pool, r io.Reader, w io.Writer) (*batch.Summary, error) {
					return batch.CheckReplicas(ctx, pool, opts, r, w, rescs, target, log.Logger)
				})
		},
	}
	bf.register(cmd)
	cmd.Flags().IntVar(&replicas, "replicas", 0, "target valid replica count")
	cmd.Flags().StringSliceVar(&resources, "resources", nil, "resources eligible for restored replicas")
	return cmd
}

func newRepairReplicasCmd() *cobra.Command {
	var bf batchFlags
	var replicas int
	var resources []string

	cmd := &cobra.Command{
		Use:   "repair-replicas",
		Short: "Trim invalid replicas and restore missing ones for paths read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			target, rescs := repairPolicy(cfg, replicas, resources)
			opts := bf.options(cfg, "repair-replicas")
			return runBatch("repair-replicas", cfg,
				func(ctx context.Context, pool *grid.Pool, r io.Reader, w io.Writer) (*batch.Summary, error) {
					return batch.RepairReplicas(ctx, pool, opts, r, w, rescs, target, log.Logger)
				})
		},
	}
	bf.register(cmd)
	cmd.Flags().IntVar(&replicas, "replicas", 0, "target valid replica count")
	cmd.Flags().StringSliceVar(&resources, "resources", nil, "resources eligible for restored replicas")
	return cmd
}

func newCheckMetadataCmd() *cobra.Command {
	var bf batchFlags
	var creator string

	cmd := &cobra.Command{
		Use:   "check-metadata",
		Short: "Verify common metadata for paths read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if creator == "" {
				creator = cfg.Repair.Creator
			}
			opts := bf.options(cfg, "check-metadata")
			return runBatch("check-metadata", cfg,
				func(ctx context.Context, pool *grid.Pool, r io.Reader, w io.Writer) (*batch.Summary, error) {
					return batch.CheckMetadata(ctx, pool, opts, r, w, creator, log.Logger)
				})
		},
	}
	bf.register(cmd)
	cmd.Flags().StringVar(&creator, "creator", "", "creator recorded on objects missing creation metadata")
	return cmd
}

func newRepairMetadataCmd() *cobra.Command {
	var bf batchFlags
	var creator string

	cmd := &cobra.Command{
		Use:   "repair-metadata",
		Short: "Rewrite absent or incorrect common metadata for paths read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if creator == "" {
				creator = cfg.Repair.Creator
			}
			opts := bf.options(cfg, "repair-metadata")
			return runBatch("repair-metadata", cfg,
				func(ctx context.Context, pool *grid.Pool, r io.Reader, w io.Writer) (*batch.Summary, error) {
					return batch.RepairMetadata(ctx, pool, opts, r, w, creator, log.Logger)
				})
		},
	}
	bf.register(cmd)
	cmd.Flags().StringVar(&creator, "creator", "", "creator recorded on objects missing creation metadata")
	return cmd
}

func repairPolicy(cfg *config.Config, replicas int, resources []string) (int, []string) {
	target := cfg.Repair.Replicas
	if replicas > 0 {
		target = replicas
	}
	rescs := cfg.Repair.Resources
	if len(resources) > 0 {
		rescs = resources
	}
	return target, rescs
}
