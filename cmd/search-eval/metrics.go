package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/searchlab/search-eval/internal/metrics"
	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/table"
)

func metricsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Compute graded retrieval metrics from a judged pool",
		Long: `Compute Precision, Recall, and nDCG at each configured cutoff plus
MRR and AP over the full ranking, per method and query, with per-method
means. Methods are detected from the pooled table's <method>_rank
columns; unjudged documents score at grade 0.

A method that ranked nothing for a judged query is reported as a
missing cell rather than silently scored zero.`,
		RunE: runMetrics,
	}

	cmd.Flags().StringP("input", "i", "", "judged pooled table CSV (required)")
	cmd.Flags().IntSlice("k", nil, "cutoff values (default from config)")
	cmd.Flags().IntP("depth-k", "d", 0, "pooling depth the table was built with (default from config)")
	cmd.Flags().String("partition", "", "restrict to one query partition")
	cmd.Flags().StringP("output-dir", "o", ".", "directory for metric CSVs")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runMetrics(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	kValues, _ := cmd.Flags().GetIntSlice("k")
	depthK, _ := cmd.Flags().GetInt("depth-k")
	partition, _ := cmd.Flags().GetString("partition")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	if len(kValues) == 0 {
		kValues = cfg.Metrics.KValues
	}
	if depthK == 0 {
		depthK = cfg.Pool.DepthK
	}

	f, err := os.Open(input)
	if err != nil {
		return errors.StorageError("open judged table "+input, err)
	}
	tbl, err := table.Read(f)
	f.Close()
	if err != nil {
		return err
	}
	tbl = tbl.FilterPartition(partition)

	in, err := metrics.BuildInput(tbl, depthK)
	if err != nil {
		return err
	}
	engine, err := metrics.NewEngine(kValues, log)
	if err != nil {
		return err
	}
	report, err := engine.Evaluate(in)
	if err != nil {
		return err
	}

	suffix := ""
	if partition != "" {
		suffix = "_" + partition
	}
	perQueryPath := filepath.Join(outputDir, "metrics_per_query"+suffix+".csv")
	summaryPath := filepath.Join(outputDir, "metrics_summary"+suffix+".csv")

	if err := writeCSV(perQueryPath, report.WritePerQuery); err != nil {
		return err
	}
	if err := writeCSV(summaryPath, report.WriteSummary); err != nil {
		return err
	}

	log.Info("Metric CSVs written",
		"per_query", perQueryPath,
		"summary", summaryPath,
		"unjudged_docs", in.UnjudgedDocs,
	)
	fmt.Printf("Wrote %s and %s (%d methods, %d queries)\n",
		perQueryPath, summaryPath, len(in.Methods), len(in.Queries))
	if in.UnjudgedDocs > 0 {
		fmt.Printf("Warning: %d pooled pairs have no judgment and score at grade 0\n", in.UnjudgedDocs)
	}
	return nil
}

func writeCSV(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.StorageError("create "+path, err)
	}
	defer f.Close()
	return write(f)
}
