package slb

import (
	"bufio"
	"io"
)

// ShardBuffer is a growable byte buffer holding a concatenation of
// newline-terminated lines, all of whose keys hash to the same
// partition. Every byte in it belongs to a complete line.
type ShardBuffer = []byte

// Emit is called by a Sharder with ownership of a flushed buffer for
// partition i. Implementations must not retain the slice beyond the
// call if the caller intends to reuse it (Sharder never reuses flushed
// buffers, so retaining is always safe here, but the contract matches
// spec's "transfer ownership" wording).
type Emit func(partition int, buf ShardBuffer)

// Sharder hash-partitions a line stream into N buffers under a
// bounded-memory discipline: once the cumulative size of buffered-but-
// unflushed bytes across all partitions reaches bufsize (counting the
// whole line that crosses it), every non-empty partition buffer is
// flushed together (a "global flush").
//
// Flushing only the largest few buffers instead of all of them doesn't
// help: the heaviest bucket of an N-way hash partition of M items holds
// Θ(M/N + log N / log log N) items on average, so skipping the other
// buckets just defers their own flush to later, net increasing total
// flush count for any fixed bufsize. Flushing everything non-empty is
// simplest and optimal up to constant factors.
type Sharder struct {
	n       int
	bufsize int
}

// NewSharder returns a Sharder that partitions into n buckets and
// global-flushes once buffered bytes reach bufsize.
func NewSharder(n, bufsize int) *Sharder {
	return &Sharder{n: n, bufsize: bufsize}
}

// Shard reads newline-terminated lines from r until EOF, routing each
// line (including its trailing newline, if present) to emit(partition,
// buf) per the global-flush discipline described above. A final,
// unterminated line at EOF is forwarded as-is.
func (s *Sharder) Shard(r io.Reader, emit Emit) error {
	bufs := make([][]byte, s.n)
	var used int

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			p := PartitionIndex(line, s.n)
			bufs[p] = append(bufs[p], line...)
			used += len(line)
			if used >= s.bufsize {
				flushAll(bufs, emit)
				used = 0
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	flushAll(bufs, emit)
	return nil
}

func flushAll(bufs [][]byte, emit Emit) {
	for i, b := range bufs {
		if len(b) == 0 {
			continue
		}
		emit(i, b)
		bufs[i] = nil
	}
}
