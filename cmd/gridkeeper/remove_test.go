package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/grid/gridtest"
	"github.com/gridkeeper/gridkeeper/internal/remover"
)

func TestWriteScriptFile(t *testing.T) {
	g := gridtest.New()
	g.PutObject("/zone/obj.bam", gridtest.Object{
		Replicas: []grid.Replica{
			{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true},
		},
	})

	output := filepath.Join(t.TempDir(), "rm-obj.sh")
	err := writeScriptFile(context.Background(), g.Client(), "/zone/obj.bam", output,
		remover.ScriptOptions{StopOnError: true})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "#!/bin/bash\nset -e\n"))
	assert.Contains(t, string(data), "gridctl rm /zone/obj.bam\n")

	if runtime.GOOS != "windows" {
		info, err := os.Stat(output)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestWriteScriptFile_MissingTarget(t *testing.T) {
	g := gridtest.New()

	output := filepath.Join(t.TempDir(), "rm-absent.sh")
	err := writeScriptFile(context.Background(), g.Client(), "/zone/absent", output,
		remover.ScriptOptions{})
	assert.ErrorIs(t, err, grid.ErrNotFound)
}

func TestWriteScriptFile_UnwritableOutput(t *testing.T) {
	g := gridtest.New()
	g.PutObject("/zone/obj.bam", gridtest.Object{
		Replicas: []grid.Replica{
			{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true},
		},
	})

	output := filepath.Join(t.TempDir(), "no-such-dir", "rm-obj.sh")
	err := writeScriptFile(context.Background(), g.Client(), "/zone/obj.bam", output,
		remover.ScriptOptions{})
	assert.Error(t, err)
}
