package slb

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultQueueSize is the default depth of each shard queue, per spec §4.5.
const DefaultQueueSize = 256

// Options configures one pipeline run. Run fills in defaults only for
// MapperCmd (empty means "cat"), QueueSize (non-positive means
// DefaultQueueSize) and Progress (nil means no reporting); every other
// field is used as given, and the CLI layer applies spec §6's defaults.
type Options struct {
	// MapperCmd is a shell command line run once per chunk.
	MapperCmd string
	// FolderCmd is a shell command line run once per shard.
	FolderCmd string
	// Infiles are the input file paths to chunk and shard.
	Infiles []string
	// Outprefix is prepended (as basename ++ index) to each shard's
	// output file path.
	Outprefix string
	// Bufsize is the sharder's global-flush threshold, in bytes, summed
	// across all of a sharder's partition buffers.
	Bufsize int
	// Nthreads is the requested chunk count per input file; the realized
	// shard count is the total number of chunks, which may be smaller for
	// small inputs or larger with several input files (see Stats.Shards).
	Nthreads int
	// QueueSize is the depth of each shard queue.
	QueueSize int
	// Progress receives byte-level progress updates across the whole
	// run. May be left nil, in which case progress is not reported.
	Progress ProgressBar
}

// Stats summarizes a completed run.
type Stats struct {
	Shards         int
	ChunksProduced int
	BytesRouted    int64
	BlockingSends  int64
}

// Run executes one full pipeline: chunk the inputs, spawn mapper and
// folder fleets, shard mapper output by key across them, and write one
// output file per shard. It returns once every child has exited and
// every output file is closed, or as soon as any stage fails, at which
// point it makes a best-effort attempt to shut down the rest of the
// pipeline before returning.
func Run(ctx context.Context, opt Options) (Stats, error) {
	var stats Stats

	if opt.FolderCmd == "" {
		return stats, InvariantViolation{Msg: "a folder command is required"}
	}
	if opt.Outprefix == "" {
		return stats, InvariantViolation{Msg: "an output prefix is required"}
	}
	if opt.Progress == nil {
		opt.Progress = NullProgressBar{}
	}
	mapperCmd := opt.MapperCmd
	if mapperCmd == "" {
		mapperCmd = "cat"
	}
	queueSize := opt.QueueSize
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	// 1. Compute chunks.
	chunks, err := Chunkify(opt.Infiles, opt.Nthreads, int64(opt.Bufsize))
	if err != nil {
		return stats, err
	}
	n := len(chunks)
	stats.Shards = n
	stats.ChunksProduced = n

	var totalBytes int64
	for _, c := range chunks {
		totalBytes += c.Len()
	}
	opt.Progress.SetTotal(int(totalBytes))
	opt.Progress.Start()
	defer opt.Progress.Finish()

	Log.WithFields(logrus.Fields{"shards": n, "bytes": totalBytes}).Debug("computed chunks")

	// The mapper and folder fleets each get their own errgroup-derived
	// context: if any mapper (or its sharder) fails, the remaining
	// mapper children are canceled (and, via exec.Cmd.Cancel, signaled)
	// without waiting for them to run to completion; likewise for
	// folders.
	mapperGroup, mapperCtx := errgroup.WithContext(ctx)
	folderGroup, folderCtx := errgroup.WithContext(ctx)

	// 2. Spawn mapper children with chunk-bounded input sources.
	mappers := make([]*Mapper, n)
	for i := range chunks {
		m, err := StartMapper(mapperCtx, i, mapperCmd)
		if err != nil {
			killMappers(mappers)
			return stats, err
		}
		mappers[i] = m
	}

	// 3. Create shard queues.
	queues := make([]chan []byte, n)
	for i := range queues {
		queues[i] = make(chan []byte, queueSize)
	}

	// 5. Spawn folder children and writer threads. These start before
	// the sharder workers of step 4, so a folder spawn failure can still
	// close the queues while nothing sends on them; the writers only
	// block reading from a not-yet-closed channel.
	folders := make([]*Folder, n)
	for i := 0; i < n; i++ {
		f, err := StartFolder(folderCtx, i, opt.FolderCmd, OutputPath(opt.Outprefix, i, n))
		if err != nil {
			killMappers(mappers)
			killFolders(folders)
			closeQueues(queues)
			return stats, err
		}
		folders[i] = f
	}

	for i := 0; i < n; i++ {
		i := i
		folderGroup.Go(func() error {
			for buf := range queues[i] {
				if _, err := folders[i].Stdin.Write(buf); err != nil {
					folders[i].Stdin.Close()
					return errors.Wrapf(err, "folder %d: writing shard data", i)
				}
			}
			if err := folders[i].Stdin.Close(); err != nil {
				return errors.Wrapf(err, "folder %d: closing stdin", i)
			}
			return folders[i].Wait()
		})
	}

	// 4. Spawn sharder workers, one per mapper. Each feeds its chunk to
	// the mapper's stdin from a separate goroutine while it drains the
	// mapper's stdout into every shard queue, so a mapper blocked on a
	// full stdout pipe never stalls its own input. Wait is called only
	// after stdout is fully drained (see Mapper.Wait).
	sharder := NewSharder(n, opt.Bufsize)
	for i := range chunks {
		i := i
		chunk := chunks[i]
		mapperGroup.Go(func() error {
			feedDone := make(chan error, 1)
			go func() { feedDone <- mappers[i].Feed(chunk, opt.Bufsize) }()
			shardErr := sharder.Shard(mappers[i].Stdout, func(p int, buf []byte) {
				sendShard(queues[p], buf, &stats)
				opt.Progress.Add(len(buf))
			})
			feedErr := <-feedDone
			waitErr := mappers[i].Wait()
			if feedErr != nil {
				return errors.Wrapf(feedErr, "mapper %d", i)
			}
			if shardErr != nil {
				return errors.Wrapf(shardErr, "mapper %d: sharding output", i)
			}
			return waitErr
		})
	}

	// Shutdown order (spec §4.5 / §5):
	//   1. wait for every mapper to exit (bundled above with sharding)
	//   2. join every sharder worker                  (bundled above)
	mapperErr := mapperGroup.Wait()
	if mapperErr != nil {
		Log.WithError(mapperErr).Debug("mapper fleet failed, shutting down")
		killMappers(mappers)
	}

	//   3. drop the sending half of every shard queue
	closeQueues(queues)

	//   4. join every folder writer thread
	folderErr := folderGroup.Wait()
	if folderErr != nil {
		Log.WithError(folderErr).Debug("folder fleet failed")
	}
	if folderErr != nil || mapperErr != nil {
		killFolders(folders)
	}

	//   5. verify every folder exited successfully -- folderErr above
	//      already carries any ChildFailed from Folder.Wait.
	if mapperErr != nil {
		return stats, mapperErr
	}
	if folderErr != nil {
		return stats, folderErr
	}
	return stats, nil
}

// sendShard delivers buf to partition queue q. It first tries a
// non-blocking send purely to count contention (spec §4.5's backpressure
// metric), then falls back to a blocking send, which is how
// backpressure from a slow folder propagates back to the sharder.
func sendShard(q chan []byte, buf []byte, stats *Stats) {
	atomic.AddInt64(&stats.BytesRouted, int64(len(buf)))
	select {
	case q <- buf:
		return
	default:
		atomic.AddInt64(&stats.BlockingSends, 1)
	}
	q <- buf
}

func closeQueues(queues []chan []byte) {
	for _, q := range queues {
		close(q)
	}
}

func killMappers(mappers []*Mapper) {
	for _, m := range mappers {
		if m != nil {
			m.Kill()
		}
	}
}

func killFolders(folders []*Folder) {
	for _, f := range folders {
		if f != nil {
			f.Kill()
		}
	}
}
