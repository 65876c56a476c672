package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rdpcache/datarecording"
	"github.com/sarchlab/rdpcache/mem/trace"
)

func newReportCmd() *cobra.Command {
	var dbPath string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Print the runs stored in a database written by run --db.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report(cmd.Context(), cmd.OutOrStdout(), dbPath)
		},
	}

	reportCmd.Flags().StringVar(&dbPath, "db", "", "database file")

	return reportCmd
}

func report(ctx context.Context, out io.Writer, dbPath string) error {
	if dbPath == "" {
		return errors.New("--db is required")
	}

	if _, err := os.Stat(dbPath); err != nil {
		return err
	}

	reader, err := datarecording.NewReader(dbPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.MapTable(trace.RunTable, trace.RunEntry{})

	runs, err := reader.Query(ctx, trace.RunTable,
		datarecording.QueryParams{OrderBy: "HitRate DESC"})
	if err != nil {
		return err
	}

	for _, r := range runs {
		run := r.(*trace.RunEntry)
		fmt.Fprintf(out, "%-6s accesses %d, hits %d, misses %d, hit rate %.4f\n",
			run.Cache, run.Accesses, run.Hits, run.Misses, run.HitRate)
	}

	return nil
}
