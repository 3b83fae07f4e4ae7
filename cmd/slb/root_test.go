package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRoutesLines(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	var lines strings.Builder
	for i := 0; i < 2000; i++ {
		lines.WriteString("key line of data here\n")
	}
	require.NoError(t, os.WriteFile(inPath, []byte(lines.String()), 0o644))
	outprefix := filepath.Join(dir, "out")

	cmd := newRootCommand(context.Background())
	cmd.SetArgs([]string{
		"--folder", "cat",
		"--infile", inPath,
		"--outprefix", outprefix,
		"--bufsize", "1",
		"--nthreads", "4",
	})
	require.NoError(t, cmd.Execute())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var total int
	var shardFiles int
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "out") {
			b, err := os.ReadFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			total += len(b)
			shardFiles++
		}
	}
	require.Greater(t, shardFiles, 1, "expected bufsize=1KB to realize more than one shard")
	require.Equal(t, lines.Len(), total)
}

func TestRootCommandRequiresFolder(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in")
	require.NoError(t, os.WriteFile(inPath, []byte("a\n"), 0o644))

	cmd := newRootCommand(context.Background())
	cmd.SetArgs([]string{
		"--infile", inPath,
		"--outprefix", filepath.Join(dir, "out"),
	})
	require.Error(t, cmd.Execute())
}
