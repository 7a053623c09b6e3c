package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/searchlab/search-eval/internal/judge"
	"github.com/searchlab/search-eval/internal/label"
	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/table"
)

func labelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Label pooled documents with an AI relevance judge",
		Long: `Classify every unjudged (query, document) pair in a pooled table on
the 0-2 relevance scale. Judgments persist as each call settles, so an
interrupted run resumes from where it stopped.`,
		RunE: runLabel,
	}

	cmd.Flags().StringP("input", "i", "", "pooled table CSV (required)")
	cmd.Flags().StringP("output", "o", "", "write the judged table here (default: overwrite input)")
	cmd.Flags().String("judgments", "", "judgment store path (file backend)")
	cmd.Flags().Int("concurrency", 0, "simultaneous judge calls (default from config)")
	cmd.Flags().Int("limit", 0, "classify at most this many pending pairs")
	cmd.Flags().Bool("skip-labeled", true, "skip pairs that already hold a judgment")
	cmd.Flags().String("labeled-by", "", "labeled_by value (default: judge name)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runLabel(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	judgmentsPath, _ := cmd.Flags().GetString("judgments")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	limit, _ := cmd.Flags().GetInt("limit")
	skipLabeled, _ := cmd.Flags().GetBool("skip-labeled")
	labeledBy, _ := cmd.Flags().GetString("labeled-by")
	if output == "" {
		output = input
	}

	f, err := os.Open(input)
	if err != nil {
		return errors.StorageError("open pooled table "+input, err)
	}
	tbl, err := table.Read(f)
	f.Close()
	if err != nil {
		return err
	}

	docs := make([]label.Document, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		docs = append(docs, label.Document{
			Query:   row.Query,
			DocID:   row.DocID,
			Title:   row.Title(),
			Content: row.Content(),
		})
	}

	aiJudge, err := judge.NewOpenAI(judge.OpenAIConfig{
		APIKey:            cfg.Judge.APIKey,
		BaseURL:           cfg.Judge.BaseURL,
		Model:             cfg.Judge.Model,
		Temperature:       cfg.Judge.Temperature,
		MaxTokens:         cfg.Judge.MaxTokens,
		RequestsPerSecond: cfg.Judge.RequestsPerSecond,
	})
	if err != nil {
		return err
	}

	store, err := openStore(cfg, judgmentsPath)
	if err != nil {
		return err
	}
	defer store.Close()

	eventBus, err := openBus(cfg, log)
	if err != nil {
		return err
	}
	defer eventBus.Close()

	opts := label.Options{
		Concurrency: cfg.Label.Concurrency,
		SkipJudged:  skipLabeled,
		Limit:       cfg.Label.Limit,
		CallTimeout: cfg.Label.CallTimeout,
		LabeledBy:   cfg.Label.LabeledBy,
	}
	if concurrency > 0 {
		opts.Concurrency = concurrency
	}
	if limit > 0 {
		opts.Limit = limit
	}
	if labeledBy != "" {
		opts.LabeledBy = labeledBy
	}

	orchestrator := label.New(aiJudge, store, eventBus, log, opts)
	report, err := orchestrator.Run(cmd.Context(), docs)
	if err != nil {
		return err
	}

	// Fold the accumulated judgments back into the pooled table.
	js, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	tbl.ApplyJudgments(js)

	out, err := os.Create(output)
	if err != nil {
		return errors.StorageError("create judged table "+output, err)
	}
	defer out.Close()
	if err := tbl.Write(out); err != nil {
		return err
	}

	fmt.Printf("Labeled %d of %d pending pairs (%d already judged, %d failed) in %s\n",
		report.Labeled, report.Pending, report.AlreadyJudged, report.Failed, report.Duration.Round(0))
	printDistribution(report.Distribution)
	for _, sample := range report.SampledErrors {
		fmt.Printf("  error: %s\n", sample)
	}
	return nil
}

func printDistribution(dist map[int]int) {
	if len(dist) == 0 {
		return
	}
	grades := make([]int, 0, len(dist))
	for g := range dist {
		grades = append(grades, g)
	}
	sort.Ints(grades)
	for _, g := range grades {
		name := fmt.Sprintf("grade %d", g)
		if g < 0 {
			name = "unjudged"
		}
		fmt.Printf("  %s: %d\n", name, dist[g])
	}
}
