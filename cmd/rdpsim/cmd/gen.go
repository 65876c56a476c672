package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rdpcache/mem/trace"
)

type genOptions struct {
	pattern string
	n       int
	seed    int64
	outPath string
}

func newGenCmd() *cobra.Command {
	opts := genOptions{}

	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Write a synthetic trace.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generate(cmd.OutOrStdout(), opts)
		},
	}

	flags := genCmd.Flags()
	flags.StringVar(&opts.pattern, "pattern", trace.PatternMixed,
		"access pattern: loop, stream or mixed")
	flags.IntVar(&opts.n, "n", 100000, "number of accesses")
	flags.Int64Var(&opts.seed, "seed", 1, "random seed")
	flags.StringVar(&opts.outPath, "out", "-", "output file, - for stdout")

	return genCmd
}

func generate(stdout io.Writer, opts genOptions) (err error) {
	reqs, err := trace.Generate(opts.pattern, opts.n, opts.seed)
	if err != nil {
		return err
	}

	out := stdout

	if opts.outPath != "-" {
		f, createErr := os.Create(opts.outPath)
		if createErr != nil {
			return createErr
		}

		defer func() {
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
		}()

		out = f
	}

	w := trace.NewWriter(out)
	for _, req := range reqs {
		if err := w.Write(req); err != nil {
			return fmt.Errorf("write trace: %w", err)
		}
	}

	return w.Flush()
}
