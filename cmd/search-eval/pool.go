package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/pool"
	"github.com/searchlab/search-eval/internal/results"
	"github.com/searchlab/search-eval/internal/table"
)

func poolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Merge ranked result runs into a depth-K evaluation pool",
		Long: `Merge each method's top-K results into a single pooled table with
per-method ranks, scores, and provenance. Runs are CSV files with
query, doc_id, rank, and optional score columns; extra columns ride
along into the pooled table.

Pass --head and --tail run groups to tag pooled documents with their
query partition, or --results for a single unpartitioned group.`,
		RunE: runPool,
	}

	cmd.Flags().StringSlice("methods", nil, "method names, aligned with run files (required)")
	cmd.Flags().StringSlice("results", nil, "run files, one per method")
	cmd.Flags().StringSlice("head", nil, "head-partition run files, one per method")
	cmd.Flags().StringSlice("tail", nil, "tail-partition run files, one per method")
	cmd.Flags().IntP("depth-k", "k", 0, "pooling depth (default from config)")
	cmd.Flags().StringP("output", "o", "pooled.csv", "pooled table output path")
	cmd.Flags().String("stats", "", "write a pooling statistics report to this path")
	_ = cmd.MarkFlagRequired("methods")

	return cmd
}

func runPool(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	methods, _ := cmd.Flags().GetStringSlice("methods")
	plain, _ := cmd.Flags().GetStringSlice("results")
	head, _ := cmd.Flags().GetStringSlice("head")
	tail, _ := cmd.Flags().GetStringSlice("tail")
	depthK, _ := cmd.Flags().GetInt("depth-k")
	output, _ := cmd.Flags().GetString("output")
	statsPath, _ := cmd.Flags().GetString("stats")

	if depthK == 0 {
		depthK = cfg.Pool.DepthK
	}
	merger, err := pool.NewMerger(depthK, log)
	if err != nil {
		return err
	}

	var groups []pool.PartitionedInput
	switch {
	case len(plain) > 0:
		if len(head) > 0 || len(tail) > 0 {
			return errors.ConfigurationError("--results cannot be combined with --head/--tail")
		}
		runs, err := results.LoadFiles(plain)
		if err != nil {
			return err
		}
		groups = append(groups, pool.PartitionedInput{Runs: runs})
	case len(head) > 0 || len(tail) > 0:
		partitioned := []struct {
			name  string
			paths []string
		}{{"head", head}, {"tail", tail}}
		for _, group := range partitioned {
			partition, paths := group.name, group.paths
			if len(paths) == 0 {
				continue
			}
			runs, err := results.LoadFiles(paths)
			if err != nil {
				return err
			}
			groups = append(groups, pool.PartitionedInput{Partition: partition, Runs: runs})
		}
	default:
		return errors.ConfigurationError("no run files given; use --results or --head/--tail")
	}

	p, report, err := merger.MergePartitioned(methods, groups)
	if err != nil {
		return err
	}

	tbl := table.FromPool(p)
	f, err := os.Create(output)
	if err != nil {
		return errors.StorageError("create pooled table "+output, err)
	}
	defer f.Close()
	if err := tbl.Write(f); err != nil {
		return err
	}

	stats := pool.Stats(p)
	if statsPath != "" {
		sf, err := os.Create(statsPath)
		if err != nil {
			return errors.StorageError("create stats report "+statsPath, err)
		}
		defer sf.Close()
		if err := stats.WriteReport(sf); err != nil {
			return err
		}
	}

	log.Info("Pooled table written",
		"output", output,
		"documents", stats.TotalDocuments,
		"queries", stats.NumQueries,
		"skipped_rows", report.SkippedRows,
		"duplicate_rows", report.DuplicateRows,
	)
	fmt.Printf("Pooled %d documents across %d queries into %s\n",
		stats.TotalDocuments, stats.NumQueries, output)
	return nil
}
