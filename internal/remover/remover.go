// Package remover generates shell scripts that remove a store path and
// everything under it, bottom-up, using the gridctl command line tool. The
// tool never removes anything itself; emitting commands for review keeps a
// human between a typo and a deleted archive.
package remover

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gridkeeper/gridkeeper/internal/grid"
)

// ScriptOptions controls the generated script prologue.
type ScriptOptions struct {
	// StopOnError makes the script exit on the first failed command.
	StopOnError bool

	// Verbose makes the script echo each command before running it.
	Verbose bool
}

// WriteCommands walks target and writes one removal command per entry:
// `gridctl rm` for data objects, then `gridctl rmdir` for collections
// ordered deepest first so that each is empty when its turn comes.
func WriteCommands(ctx context.Context, c grid.Client, target string, w io.Writer) error {
	kind, err := c.Stat(ctx, target)
	if err != nil {
		return err
	}
	if kind == grid.KindNone {
		return fmt.Errorf("%w: %s", grid.ErrNotFound, target)
	}

	if kind == grid.KindDataObject {
		_, err := fmt.Fprintf(w, "gridctl rm %s\n", shellQuote(target))
		return err
	}

	var objects, collections []string
	if err := walk(ctx, c, target, &objects, &collections); err != nil {
		return err
	}

	for _, p := range objects {
		if _, err := fmt.Fprintf(w, "gridctl rm %s\n", shellQuote(p)); err != nil {
			return err
		}
	}

	// Deepest collections first; ties broken lexically for a stable script.
	sort.Slice(collections, func(i, j int) bool {
		di, dj := strings.Count(collections[i], "/"), strings.Count(collections[j], "/")
		if di != dj {
			return di > dj
		}
		return collections[i] < collections[j]
	})
	for _, p := range collections {
		if _, err := fmt.Fprintf(w, "gridctl rmdir %s\n", shellQuote(p)); err != nil {
			return err
		}
	}
	return nil
}

// WriteScript writes a complete removal script for target: a bash prologue
// followed by the commands of WriteCommands.
func WriteScript(ctx context.Context, c grid.Client, target string, w io.Writer, opts ScriptOptions) error {
	if _, err := io.WriteString(w, "#!/bin/bash\n"); err != nil {
		return err
	}
	if opts.StopOnError {
		if _, err := io.WriteString(w, "set -e\n"); err != nil {
			return err
		}
	}
	if opts.Verbose {
		if _, err := io.WriteString(w, "set -x\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}
	return WriteCommands(ctx, c, target, w)
}

func walk(ctx context.Context, c grid.Client, coll string, objects, collections *[]string) error {
	*collections = append(*collections, coll)

	children, err := c.ListChildren(ctx, coll)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.Kind == grid.KindCollection {
			if err := walk(ctx, c, child.Path, objects, collections); err != nil {
				return err
			}
			continue
		}
		*objects = append(*objects, child.Path)
	}
	return nil
}

// shellQuote makes a path safe as a single sh word.
func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'`$\\!&|;<>()[]{}*?~#") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
