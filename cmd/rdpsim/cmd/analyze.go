package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rdpcache/analysis"
	"github.com/sarchlab/rdpcache/mem/trace"
)

type analyzeOptions struct {
	tracePath string
	line      uint64
	bucket    uint64
	track     int
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Print the reuse distance histogram of a trace.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return analyze(cmd.OutOrStdout(), opts)
		},
	}

	flags := analyzeCmd.Flags()
	flags.StringVar(&opts.tracePath, "trace", "", "trace file to analyze")
	flags.Uint64Var(&opts.line, "line", 64, "cache line size in bytes")
	flags.Uint64Var(&opts.bucket, "bucket", 32,
		"width of a histogram bucket in accesses")
	flags.IntVar(&opts.track, "track", 1<<20,
		"number of recently touched lines to remember")

	return analyzeCmd
}

func analyze(out io.Writer, opts analyzeOptions) error {
	if opts.tracePath == "" {
		return errors.New("--trace is required")
	}

	if _, err := log2(opts.line); err != nil {
		return fmt.Errorf("line size: %w", err)
	}

	if opts.bucket == 0 || opts.track <= 0 {
		return errors.New("--bucket and --track must be positive")
	}

	f, err := os.Open(opts.tracePath)
	if err != nil {
		return err
	}
	defer f.Close()

	profiler := analysis.NewReuseProfiler(opts.line, opts.track, opts.bucket)
	reader := trace.NewReader(f)

	for {
		req, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return fmt.Errorf("%s: %w", opts.tracePath, err)
		}

		profiler.Observe(req.Address)
	}

	fmt.Fprintf(out, "accesses %d, cold %d, censored %d\n",
		profiler.Total(), profiler.Cold(), profiler.Censored())

	for _, b := range profiler.Histogram() {
		fmt.Fprintf(out, "[%d, %d) %d\n", b.Low, b.High, b.Count)
	}

	return nil
}
