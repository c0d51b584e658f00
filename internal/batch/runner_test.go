package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/grid/gridtest"
	"github.com/gridkeeper/gridkeeper/internal/integrity"
)

func testPool(t *testing.T, g *gridtest.Grid, size int) *grid.Pool {
	t.Helper()
	pool := grid.NewPool(size, g.Dial, zerolog.Nop())
	t.Cleanup(func() { pool.Close() })
	return pool
}

func seedObjects(g *gridtest.Grid, n int) []string {
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("/zone/run/obj%03d.bam", i)
		g.PutObject(p, gridtest.Object{
			Replicas: []grid.Replica{
				{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true},
			},
			Meta: []grid.AVU{{Attribute: grid.AttrChecksum, Value: "abc123"}},
		})
		paths = append(paths, p)
	}
	return paths
}

func sortedLines(buf *bytes.Buffer) []string {
	lines := strings.Fields(buf.String())
	sort.Strings(lines)
	return lines
}

func TestRunner_EmptyInput(t *testing.T) {
	g := gridtest.New()
	runner := NewRunner(testPool(t, g, 1), Options{}, zerolog.Nop())

	var out bytes.Buffer
	summary, err := runner.Run(context.Background(), strings.NewReader(""), &out,
		func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
			return integrity.Passed(path)
		})

	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.Passed)
	assert.Zero(t, summary.Errors)
	assert.Empty(t, out.String())
}

func TestRunner_Conservation(t *testing.T) {
	g := gridtest.New()
	paths := seedObjects(g, 20)
	input := strings.Join(paths, "\n") + "\n/zone/run/absent.bam\n\n"

	summary, err := CheckChecksums(context.Background(), testPool(t, g, 2),
		Options{Threads: 4}, strings.NewReader(input), &bytes.Buffer{}, false, zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, uint64(21), summary.Processed)
	assert.Equal(t, uint64(20), summary.Passed)
	assert.Equal(t, uint64(1), summary.Errors)
	assert.Equal(t, summary.Processed, summary.Passed+summary.Errors)
}

func TestRunner_ThreadCountDoesNotChangeSummary(t *testing.T) {
	for _, threads := range []int{1, 8} {
		t.Run(fmt.Sprintf("threads=%d", threads), func(t *testing.T) {
			g := gridtest.New()
			paths := seedObjects(g, 50)
			input := strings.Join(paths, "\n")

			var out bytes.Buffer
			summary, err := CheckChecksums(context.Background(), testPool(t, g, 4),
				Options{Threads: threads, PrintPass: true},
				strings.NewReader(input), &out, false, zerolog.Nop())

			require.NoError(t, err)
			assert.Equal(t, uint64(50), summary.Processed)
			assert.Equal(t, uint64(50), summary.Passed)
			assert.Equal(t, paths, sortedLines(&out))
		})
	}
}

func TestRunner_PrintSelection(t *testing.T) {
	g := gridtest.New()
	g.PutObject("/zone/good.bam", gridtest.Object{
		Replicas: []grid.Replica{{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true}},
	})

	work := func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		switch path {
		case "/zone/good.bam":
			return integrity.Passed(path)
		case "/zone/fixed.bam":
			return integrity.Repaired(path)
		default:
			return integrity.Failed(path, errors.New("broken"))
		}
	}
	input := "/zone/good.bam\n/zone/fixed.bam\n/zone/bad.bam\n"

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"fail only", Options{PrintFail: true}, []string{"/zone/bad.bam"}},
		{"repair only", Options{PrintRepair: true}, []string{"/zone/fixed.bam"}},
		{"pass only", Options{PrintPass: true}, []string{"/zone/good.bam"}},
		{"none", Options{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(testPool(t, g, 1), tt.opts, zerolog.Nop())
			var out bytes.Buffer
			summary, err := runner.Run(context.Background(), strings.NewReader(input), &out, work)

			require.NoError(t, err)
			assert.Equal(t, uint64(3), summary.Processed)
			if tt.want == nil {
				assert.Empty(t, out.String())
			} else {
				assert.Equal(t, tt.want, sortedLines(&out))
			}
		})
	}
}

func TestRunner_RetriesConnectionFailures(t *testing.T) {
	g := gridtest.New()
	var calls atomic.Int64

	work := func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		if calls.Add(1) == 1 {
			return integrity.Failed(path, fmt.Errorf("%w: reset by peer", grid.ErrConnection))
		}
		return integrity.Passed(path)
	}

	runner := NewRunner(testPool(t, g, 1), Options{ConnectionRetries: 2}, zerolog.Nop())
	summary, err := runner.Run(context.Background(),
		strings.NewReader("/zone/obj.bam\n"), &bytes.Buffer{}, work)

	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, uint64(1), summary.Passed)
	assert.Zero(t, summary.Errors)
}

func TestRunner_BoundsConnectionRetries(t *testing.T) {
	g := gridtest.New()
	var calls atomic.Int64

	work := func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		calls.Add(1)
		return integrity.Failed(path, fmt.Errorf("%w: reset by peer", grid.ErrConnection))
	}

	runner := NewRunner(testPool(t, g, 1), Options{ConnectionRetries: 2}, zerolog.Nop())
	summary, err := runner.Run(context.Background(),
		strings.NewReader("/zone/obj.bam\n"), &bytes.Buffer{}, work)

	require.NoError(t, err)
	assert.Equal(t, int64(3), calls.Load()) // first try plus two retries
	assert.Equal(t, uint64(1), summary.Errors)
}

func TestRunner_NonConnectionErrorNotRetried(t *testing.T) {
	g := gridtest.New()
	var calls atomic.Int64

	work := func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		calls.Add(1)
		return integrity.Failed(path, grid.ErrNotFound)
	}

	runner := NewRunner(testPool(t, g, 1), Options{}, zerolog.Nop())
	summary, err := runner.Run(context.Background(),
		strings.NewReader("/zone/obj.bam\n"), &bytes.Buffer{}, work)

	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, uint64(1), summary.Errors)
}

func TestRepairReplicas_EndToEnd(t *testing.T) {
	g := gridtest.New()
	g.PutObject("/zone/short.bam", gridtest.Object{
		Replicas: []grid.Replica{{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true}},
	})
	g.PutObject("/zone/full.bam", gridtest.Object{
		Replicas: []grid.Replica{
			{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true},
			{Resource: "resc-b", Number: 1, Checksum: "abc123", Valid: true},
		},
	})

	var out bytes.Buffer
	summary, err := RepairReplicas(context.Background(), testPool(t, g, 1),
		Options{PrintRepair: true},
		strings.NewReader("/zone/short.bam\n/zone/full.bam\n"), &out,
		[]string{"resc-a", "resc-b"}, 2, zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, uint64(2), summary.Processed)
	assert.Equal(t, uint64(2), summary.Passed)
	assert.Equal(t, []string{"/zone/short.bam"}, sortedLines(&out))
	assert.Len(t, g.Object("/zone/short.bam").Replicas, 2)
}

func TestRepairReplicas_MixedBatch(t *testing.T) {
	g := gridtest.New()
	// Surplus valid replicas: reported, not deleted.
	g.PutObject("/zone/surplus.bam", gridtest.Object{
		Replicas: []grid.Replica{
			{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true},
			{Resource: "resc-b", Number: 1, Checksum: "abc123", Valid: true},
			{Resource: "resc-c", Number: 2, Checksum: "abc123", Valid: true},
		},
	})
	// One valid, one invalid: trimmed and restored to two valid.
	g.PutObject("/zone/drifted.bam", gridtest.Object{
		Replicas: []grid.Replica{
			{Resource: "resc-a", Number: 0, Checksum: "def456", Valid: true},
			{Resource: "resc-b", Number: 1, Checksum: "stale00", Valid: false},
		},
	})

	input := "/zone/surplus.bam\n/zone/drifted.bam\n/zone/missing.bam\n"
	summary, err := RepairReplicas(context.Background(), testPool(t, g, 2),
		Options{Threads: 2}, strings.NewReader(input), &bytes.Buffer{},
		[]string{"resc-a", "resc-b", "resc-c"}, 2, zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, uint64(3), summary.Processed)
	assert.Equal(t, uint64(2), summary.Passed)
	assert.Equal(t, uint64(1), summary.Errors)

	assert.Len(t, g.Object("/zone/surplus.bam").Replicas, 3)
	drifted := g.Object("/zone/drifted.bam")
	require.Len(t, drifted.Replicas, 2)
	for _, r := range drifted.Replicas {
		assert.True(t, r.Valid)
		assert.Equal(t, "def456", r.Checksum)
	}
}

func TestRepairMetadata_EndToEnd(t *testing.T) {
	g := gridtest.New()
	g.PutObject("/zone/bare.bam", gridtest.Object{
		Replicas: []grid.Replica{{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true}},
	})

	summary, err := RepairMetadata(context.Background(), testPool(t, g, 1), Options{},
		strings.NewReader("/zone/bare.bam\n"), &bytes.Buffer{}, "fixer", zerolog.Nop())

	require.NoError(t, err)
	assert.Equal(t, uint64(1), summary.Passed)

	var meta []string
	for _, a := range g.Object("/zone/bare.bam").Meta {
		meta = append(meta, a.Attribute)
	}
	sort.Strings(meta)
	assert.Equal(t, []string{grid.AttrCreated, grid.AttrCreator, grid.AttrChecksum, grid.AttrType}, meta)
}

func TestRunner_ContextCancelStopsFeed(t *testing.T) {
	g := gridtest.New()
	ctx, cancel := context.WithCancel(context.Background())

	work := func(ctx context.Context, c grid.Client, path string) integrity.Outcome {
		cancel()
		return integrity.Passed(path)
	}

	// More paths than the single worker can drain before cancellation.
	var input strings.Builder
	for i := 0; i < 1000; i++ {
		fmt.Fprintf(&input, "/zone/obj%d.bam\n", i)
	}

	runner := NewRunner(testPool(t, g, 1), Options{}, zerolog.Nop())
	summary, err := runner.Run(ctx, strings.NewReader(input.String()), &bytes.Buffer{}, work)

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, summary.Processed, uint64(1000))
}
