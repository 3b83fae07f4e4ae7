package main

import (
	"context"
	"os"
	"runtime"

	"github.com/riverrun/slb"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verbose bool

type runOptions struct {
	mapper    string
	folder    string
	infiles   []string
	outprefix string
	bufsizeKB int
	nthreads  int
	queuesize int
}

func newRootCommand(ctx context.Context) *cobra.Command {
	var opt runOptions

	cmd := &cobra.Command{
		Use:   "slb",
		Short: "Streaming, shard-by-key load balancer for line-oriented text pipelines.",
		Long: `slb chunks one or more input files into newline-aligned byte ranges, feeds
each chunk through a mapper command, hashes the first whitespace-delimited
field of every output line to one of N partitions, and streams each
partition's lines into its own folder command.

Example: route access.log through an identity mapper and 'sort' into four
shards:

  slb --folder sort --infile access.log --outprefix out/shard- --nthreads 4`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(ctx, opt)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opt.mapper, "mapper", "", "shell command line for the mapper stage (default: identity passthrough)")
	flags.StringVar(&opt.folder, "folder", "", "shell command line for the folder stage (required)")
	flags.StringArrayVar(&opt.infiles, "infile", nil, "input file path, repeatable (required, at least one)")
	flags.StringVar(&opt.outprefix, "outprefix", "", "output file path prefix (required)")
	flags.IntVar(&opt.bufsizeKB, "bufsize", 64, "sharder flush threshold, in kilobytes")
	flags.IntVar(&opt.nthreads, "nthreads", runtime.NumCPU(), "target shard/thread count")
	flags.IntVar(&opt.queuesize, "queuesize", slb.DefaultQueueSize, "depth of each shard queue, in buffers")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "emit run statistics to the diagnostic channel")

	cmd.MarkFlagRequired("folder")
	cmd.MarkFlagRequired("infile")
	cmd.MarkFlagRequired("outprefix")

	return cmd
}

func runPipeline(ctx context.Context, opt runOptions) error {
	var progress slb.ProgressBar = slb.NullProgressBar{}
	if verbose {
		slb.Log.SetOutput(os.Stderr)
		slb.Log.SetLevel(logrus.DebugLevel)
		slb.Log.SetFormatter(&logrus.TextFormatter{})
		progress = slb.NewProgressBar("slb")
	}

	stats, err := slb.Run(ctx, slb.Options{
		MapperCmd: opt.mapper,
		FolderCmd: opt.folder,
		Infiles:   opt.infiles,
		Outprefix: opt.outprefix,
		Bufsize:   opt.bufsizeKB * 1024,
		Nthreads:  opt.nthreads,
		QueueSize: opt.queuesize,
		Progress:  progress,
	})
	if verbose {
		slb.Log.WithFields(logrus.Fields{
			"shards":         stats.Shards,
			"chunksProduced": stats.ChunksProduced,
			"bytesRouted":    stats.BytesRouted,
			"blockingSends":  stats.BlockingSends,
		}).Info("run complete")
	}
	return err
}
