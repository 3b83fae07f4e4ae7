package slb

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
)

// chunkReadBuffer bounds the buffered-reader size used while scanning
// forward for newline boundaries; mirrors the original implementation's
// use of a fixed-size scan buffer regardless of chunk size.
const chunkReadBuffer = 16 * 1024

// FileChunk is a newline-aligned, read-only byte range of a file: bytes
// [Start, Stop) of Path. Start is either 0 or immediately follows a
// newline; Stop is either len(file) or immediately follows a newline.
type FileChunk struct {
	Path  string
	Start int64
	Stop  int64
}

// Len returns the number of bytes covered by the chunk.
func (c FileChunk) Len() int64 { return c.Stop - c.Start }

// Open returns a reader positioned at Start that returns io.EOF after
// exactly Len() bytes, regardless of how much more data the underlying
// file holds. The caller owns the returned ReadCloser.
func (c FileChunk) Open() (io.ReadCloser, error) {
	f, err := os.Open(c.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening chunk of %s", c.Path)
	}
	if _, err := f.Seek(c.Start, io.SeekStart); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "seeking into %s", c.Path)
	}
	return &limitedFile{f: f, r: io.LimitReader(f, c.Len())}, nil
}

// limitedFile wraps an open *os.File with a byte limit on reads while
// still closing the underlying file handle on Close.
type limitedFile struct {
	f *os.File
	r io.Reader
}

func (l *limitedFile) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedFile) Close() error                { return l.f.Close() }

// Chunkify splits paths into newline-aligned FileChunks covering every
// byte of every file exactly once. maxChunks bounds the number of chunks
// requested per file; minSize is the approximate lower bound (in bytes)
// on a chunk's length. Both must be positive and paths must be
// non-empty, else Chunkify fails with InvariantViolation.
//
// Each file is chunked independently against the full maxChunks budget
// rather than a share of it: the single-infile case (the common one)
// must still realize up to maxChunks chunks, not collapse to one.
//
// TODO: boundaries are cut evenly by byte offset, not by load; a straggler
// chunk (e.g. one with unusually long lines) holds up its whole shard.
// Finer-grained, work-stealing chunking would fix this but is out of scope.
func Chunkify(paths []string, maxChunks int, minSize int64) ([]FileChunk, error) {
	if maxChunks <= 0 {
		return nil, InvariantViolation{Msg: "maxChunks must be positive"}
	}
	if minSize <= 0 {
		return nil, InvariantViolation{Msg: "minSize must be positive"}
	}
	if len(paths) == 0 {
		return nil, InvariantViolation{Msg: "at least one input file is required"}
	}

	var chunks []FileChunk
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return nil, errors.Wrapf(err, "stat %s", p)
		}
		fc, err := chunkifyOne(p, fi.Size(), maxChunks, minSize)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, fc...)
	}
	return chunks, nil
}

// chunkifyOne splits a single file of the given size into up to
// desiredChunks newline-aligned FileChunks, per spec C1's algorithm:
// tentative even-width boundaries, each advanced forward to the next
// newline.
func chunkifyOne(path string, size int64, desiredChunks int, minSize int64) ([]FileChunk, error) {
	k := desiredChunks
	if bySize := int(size / minSize); bySize < k {
		k = bySize
	}
	if k < 1 {
		k = 1
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var chunks []FileChunk
	var prev int64
	for i := 0; i < k; i++ {
		tentative := size * int64(i+1) / int64(k)
		stop, err := advanceToNewline(f, tentative, size)
		if err != nil {
			return nil, errors.Wrapf(err, "scanning %s", path)
		}
		if stop <= prev {
			continue
		}
		chunks = append(chunks, FileChunk{Path: path, Start: prev, Stop: stop})
		prev = stop
		if stop == size {
			break
		}
	}
	if len(chunks) == 0 {
		// Degenerate (e.g. zero-byte file): emit a single empty chunk so
		// every file is represented.
		chunks = append(chunks, FileChunk{Path: path, Start: 0, Stop: size})
	} else if chunks[len(chunks)-1].Stop < size {
		chunks = append(chunks, FileChunk{Path: path, Start: chunks[len(chunks)-1].Stop, Stop: size})
	}
	return chunks, nil
}

// advanceToNewline seeks to pos and scans forward (buffered) to just
// past the next newline, returning that offset. If pos is already at or
// past EOF, it returns size.
func advanceToNewline(f *os.File, pos, size int64) (int64, error) {
	if pos >= size {
		return size, nil
	}
	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return 0, err
	}
	r := bufio.NewReaderSize(f, chunkReadBuffer)
	n, err := readUntilNewline(r)
	if err != nil && err != io.EOF {
		return 0, err
	}
	stop := pos + n
	if err == io.EOF {
		stop = size
	}
	return stop, nil
}

// readUntilNewline consumes bytes from r up to and including the next
// '\n', returning the count consumed. Returns io.EOF if the stream ends
// first (count still reflects bytes consumed).
func readUntilNewline(r *bufio.Reader) (int64, error) {
	var n int64
	for {
		b, err := r.ReadByte()
		if err != nil {
			return n, err
		}
		n++
		if b == '\n' {
			return n, nil
		}
	}
}
