package slb

import (
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readChunk(t *testing.T, c FileChunk) []byte {
	t.Helper()
	r, err := c.Open()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	buf := make([]byte, c.Len())
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestChunkifyCoversEveryByteExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	var lines string
	for i := 0; i < 1000; i++ {
		lines += "key line data here\n"
	}
	path := writeTempFile(t, dir, "in", lines)

	chunks, err := Chunkify([]string{path}, 8, 64)
	if err != nil {
		t.Fatal(err)
	}

	var reassembled []byte
	var prevStop int64
	for _, c := range chunks {
		if c.Start != prevStop {
			t.Fatalf("gap or overlap: chunk starts at %d, previous stopped at %d", c.Start, prevStop)
		}
		reassembled = append(reassembled, readChunk(t, c)...)
		prevStop = c.Stop
	}
	if string(reassembled) != lines {
		t.Fatalf("reassembled content does not match input")
	}
}

func TestChunkifyBoundariesAreNewlineAligned(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "in", "aa\nbb\ncc\ndd\nee\nff\n")

	chunks, err := Chunkify([]string{path}, 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range chunks {
		buf := readChunk(t, c)
		if len(buf) > 0 && buf[len(buf)-1] != '\n' && c.Stop != fileSize(t, path) {
			t.Fatalf("interior chunk does not end on a newline: %q", buf)
		}
	}
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	return fi.Size()
}

func TestChunkifyEmptyFileProducesOneEmptyChunk(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "empty", "")

	chunks, err := Chunkify([]string{path}, 4, 64)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk for an empty file, got %d", len(chunks))
	}
	if chunks[0].Len() != 0 {
		t.Fatalf("expected an empty chunk, got length %d", chunks[0].Len())
	}
}

func TestChunkifySingleLineNeverSplits(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "oneline", "a single very long line with no newline in the middle\n")

	chunks, err := Chunkify([]string{path}, 8, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected a single line to stay in one chunk, got %d chunks", len(chunks))
	}
}

func TestChunkifyRejectsEmptyInputList(t *testing.T) {
	if _, err := Chunkify(nil, 4, 64); err == nil {
		t.Fatal("expected an error for an empty file list")
	}
}

func TestChunkifyRejectsNonPositiveArgs(t *testing.T) {
	dir := t.TempDir()
	path := writeTempFile(t, dir, "in", "a\n")

	if _, err := Chunkify([]string{path}, 0, 64); err == nil {
		t.Fatal("expected an error for maxChunks <= 0")
	}
	if _, err := Chunkify([]string{path}, 4, 0); err == nil {
		t.Fatal("expected an error for minSize <= 0")
	}
}

func TestChunkifyMultipleFilesAreIndependentlyChunked(t *testing.T) {
	dir := t.TempDir()
	p1 := writeTempFile(t, dir, "a", "1\n2\n3\n4\n5\n6\n7\n8\n")
	p2 := writeTempFile(t, dir, "b", "x\ny\n")

	chunks, err := Chunkify([]string{p1, p2}, 4, 1)
	if err != nil {
		t.Fatal(err)
	}
	var sawP1, sawP2 bool
	for _, c := range chunks {
		if c.Path == p1 {
			sawP1 = true
		}
		if c.Path == p2 {
			sawP2 = true
		}
	}
	if !sawP1 || !sawP2 {
		t.Fatal("expected chunks from both input files")
	}
}
