package remover

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridkeeper/gridkeeper/internal/grid"
	"github.com/gridkeeper/gridkeeper/internal/grid/gridtest"
)

func putObject(g *gridtest.Grid, p string) {
	g.PutObject(p, gridtest.Object{
		Replicas: []grid.Replica{
			{Resource: "resc-a", Number: 0, Checksum: "abc123", Valid: true},
		},
	})
}

func TestWriteCommands_SingleObject(t *testing.T) {
	g := gridtest.New()
	putObject(g, "/zone/obj.bam")

	var buf bytes.Buffer
	require.NoError(t, WriteCommands(context.Background(), g.Client(), "/zone/obj.bam", &buf))
	assert.Equal(t, "gridctl rm /zone/obj.bam\n", buf.String())
}

func TestWriteCommands_Tree(t *testing.T) {
	g := gridtest.New()
	g.PutCollection("/zone/proj")
	putObject(g, "/zone/proj/a.bam")
	g.PutCollection("/zone/proj/sub")
	putObject(g, "/zone/proj/sub/b.bam")
	g.PutCollection("/zone/proj/sub/deeper")

	var buf bytes.Buffer
	require.NoError(t, WriteCommands(context.Background(), g.Client(), "/zone/proj", &buf))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"gridctl rm /zone/proj/a.bam",
		"gridctl rm /zone/proj/sub/b.bam",
		"gridctl rmdir /zone/proj/sub/deeper",
		"gridctl rmdir /zone/proj/sub",
		"gridctl rmdir /zone/proj",
	}, lines)
}

func TestWriteCommands_QuotesAwkwardPaths(t *testing.T) {
	g := gridtest.New()
	putObject(g, "/zone/raw data/sample 1.bam")

	var buf bytes.Buffer
	require.NoError(t, WriteCommands(context.Background(), g.Client(),
		"/zone/raw data/sample 1.bam", &buf))
	assert.Equal(t, "gridctl rm '/zone/raw data/sample 1.bam'\n", buf.String())
}

func TestWriteCommands_QuotesEmbeddedQuote(t *testing.T) {
	assert.Equal(t, `'/zone/o'\''brien.bam'`, shellQuote("/zone/o'brien.bam"))
}

func TestWriteCommands_MissingTarget(t *testing.T) {
	g := gridtest.New()
	var buf bytes.Buffer
	err := WriteCommands(context.Background(), g.Client(), "/zone/absent", &buf)
	assert.ErrorIs(t, err, grid.ErrNotFound)
	assert.Empty(t, buf.String())
}

func TestWriteScript_Prologue(t *testing.T) {
	g := gridtest.New()
	putObject(g, "/zone/obj.bam")

	var buf bytes.Buffer
	require.NoError(t, WriteScript(context.Background(), g.Client(), "/zone/obj.bam", &buf,
		ScriptOptions{StopOnError: true, Verbose: true}))

	assert.Equal(t, "#!/bin/bash\nset -e\nset -x\n\ngridctl rm /zone/obj.bam\n", buf.String())
}

func TestWriteScript_BarePrologue(t *testing.T) {
	g := gridtest.New()
	putObject(g, "/zone/obj.bam")

	var buf bytes.Buffer
	require.NoError(t, WriteScript(context.Background(), g.Client(), "/zone/obj.bam", &buf,
		ScriptOptions{}))
	assert.True(t, strings.HasPrefix(buf.String(), "#!/bin/bash\n\ngridctl rm"))
}
