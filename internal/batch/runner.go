// Package batch feeds paths read from an input stream through a pool of
// store clients, running one integrity operation per path and accounting for
// every line read.
package batch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/integrity"
	"github.com/gridkeeper/gridkeeper/internal/metrics"
)

const defaultConnectionRetries = 2

// WorkFunc runs one operation against one path using a client borrowed from
// the pool.
type WorkFunc func(ctx context.Context, c grid.Client, path string) integrity.Outcome

// Options configures a batch run.
type Options struct {
	// Threads is the number of concurrent workers. Zero means one.
	Threads int

	// PrintPass, PrintRepair and PrintFail select which outcome classes are
	// echoed to the output stream.
	PrintPass   bool
	PrintRepair bool
	PrintFail   bool

	// ConnectionRetries is how many times a path is retried after a
	// connection-class failure before it counts as an error. Negative
	// disables retrying; zero means the default.
	ConnectionRetries int

	// RateLimit caps store operations per second across all workers. Zero
	// means unlimited. RateBurst is the limiter burst size.
	RateLimit float64
	RateBurst int

	// Metrics, when set, receives per-outcome counts.
	Metrics *metrics.Batch
}

// Summary is the accounting of one run. Every input line lands in exactly
// one of Passed or Errors; repaired and skipped paths count as passed.
type Summary struct {
	Processed uint64
	Passed    uint64
	Errors    uint64
}

// Runner drives WorkFuncs over paths with bounded concurrency.
type Runner struct {
	pool    *grid.Pool
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewRunner creates a runner borrowing clients from pool.
func NewRunner(pool *grid.Pool, opts Options, logger zerolog.Logger) *Runner {
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.ConnectionRetries == 0 {
		opts.ConnectionRetries = defaultConnectionRetries
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &Runner{
		pool:    pool,
		opts:    opts,
		limiter: limiter,
		logger: logger.With().Str("component", "batch").
			Str("run_id", uuid.NewString()).Logger(),
	}
}

// Run reads newline-separated paths from r until EOF, applies fn to each and
// writes selected paths to w. The returned Summary is complete even when err
// is non-nil. Blank lines are ignored.
func (br *Runner) Run(ctx context.Context, r io.Reader, w io.Writer, fn WorkFunc) (*Summary, error) {
	summary := &Summary{}
	paths := make(chan string)

	var printMu sync.Mutex
	print := func(path string) {
		printMu.Lock()
		defer printMu.Unlock()
		fmt.Fprintln(w, path)
	}

	var wg sync.WaitGroup
	for i := 0; i < br.opts.Threads; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			logger := br.logger.With().Int("worker", worker).Logger()
			for path := range paths {
				out := br.process(ctx, logger, path, fn)
				br.account(summary, out, print)
			}
		}(i)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var scanErr error
scan:
	for scanner.Scan() {
		path := strings.TrimSpace(scanner.Text())
		if path == "" {
			continue
		}
		select {
		case paths <- path:
		case <-ctx.Done():
			scanErr = ctx.Err()
			break scan
		}
	}
	close(paths)
	wg.Wait()

	if scanErr == nil {
		scanErr = scanner.Err()
	}

	br.logger.Info().
		Uint64("processed", atomic.LoadUint64(&summary.Processed)).
		Uint64("passed", atomic.LoadUint64(&summary.Passed)).
		Uint64("errors", atomic.LoadUint64(&summary.Errors)).
		Msg("Batch finished")
	return summary, scanErr
}

// process runs fn on one path, retrying connection-class failures with a
// fresh client.
func (br *Runner) process(ctx context.Context, logger zerolog.Logger, path string, fn WorkFunc) integrity.Outcome {
	var out integrity.Outcome
	for attempt := 0; ; attempt++ {
		if br.limiter != nil {
			if err := br.limiter.Wait(ctx); err != nil {
				return integrity.Failed(path, err)
			}
		}

		c, err := br.pool.Acquire(ctx)
		if err != nil {
			return integrity.Failed(path, err)
		}
		out = fn(ctx, c, path)
		br.pool.Release(c, out.Err)

		if out.Err == nil || !errors.Is(out.Err, grid.ErrConnection) {
			return out
		}
		if attempt >= br.opts.ConnectionRetries {
			logger.Error().Str("path", path).Err(out.Err).
				Int("attempts", attempt+1).Msg("Giving up after connection failures")
			return out
		}
		logger.Warn().Str("path", path).Err(out.Err).Msg("Retrying after connection failure")
	}
}

func (br *Runner) account(summary *Summary, out integrity.Outcome, print func(string)) {
	atomic.AddUint64(&summary.Processed, 1)
	if br.opts.Metrics != nil {
		br.opts.Metrics.Processed.Inc()
	}

	switch out.Status {
	case integrity.StatusFailed:
		atomic.AddUint64(&summary.Errors, 1)
		if br.opts.Metrics != nil {
			br.opts.Metrics.Errors.Inc()
		}
		br.logger.Error().Str("path", out.Path).Err(out.Err).Msg("Failed")
		if br.opts.PrintFail {
			print(out.Path)
		}
	case integrity.StatusRepaired:
		atomic.AddUint64(&summary.Passed, 1)
		if br.opts.Metrics != nil {
			br.opts.Metrics.Repaired.Inc()
		}
		br.logger.Info().Str("path", out.Path).Msg("Repaired")
		if br.opts.PrintRepair {
			print(out.Path)
		}
	default:
		atomic.AddUint64(&summary.Passed, 1)
		if br.opts.Metrics != nil {
			br.opts.Metrics.Passed.Inc()
		}
		br.logger.Debug().Str("path", out.Path).Msg("Passed")
		if br.opts.PrintPass {
			print(out.Path)
		}
	}
}
