package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/results"
)

func fetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch a run live from a Qdrant collection",
		Long: `Embed a list of queries and search a Qdrant collection, writing the
ranked results as a run CSV that 'search-eval pool' accepts. Use this
for a method that has no exported run file.`,
		RunE: runFetch,
	}

	cmd.Flags().StringP("queries", "q", "", "file with one query per line (required)")
	cmd.Flags().String("collection", "", "Qdrant collection name (required)")
	cmd.Flags().IntP("top-k", "k", 0, "results per query (default: config pool depth)")
	cmd.Flags().StringP("output", "o", "run.csv", "run CSV output path")
	_ = cmd.MarkFlagRequired("queries")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}

	queriesPath, _ := cmd.Flags().GetString("queries")
	collection, _ := cmd.Flags().GetString("collection")
	topK, _ := cmd.Flags().GetInt("top-k")
	output, _ := cmd.Flags().GetString("output")
	if topK == 0 {
		topK = cfg.Pool.DepthK
	}

	queries, err := readQueries(queriesPath)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return errors.ValidationError("query file " + queriesPath + " holds no queries")
	}

	embedder, err := results.NewOpenAIEmbedder(cfg.Judge.APIKey, cfg.Judge.BaseURL, cfg.Judge.EmbedModel)
	if err != nil {
		return err
	}

	source, err := results.NewQdrantSource(results.QdrantConfig{
		Host:             cfg.Qdrant.Host,
		Port:             cfg.Qdrant.Port,
		APIKey:           cfg.Qdrant.APIKey,
		UseTLS:           cfg.Qdrant.UseTLS,
		CollectionPrefix: cfg.Qdrant.CollectionPrefix,
	}, log)
	if err != nil {
		return err
	}
	defer source.Close()

	run, err := source.FetchRun(cmd.Context(), embedder, collection, queries, topK)
	if err != nil {
		return err
	}

	f, err := os.Create(output)
	if err != nil {
		return errors.StorageError("create run file "+output, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write([]string{"query", "doc_id", "rank", "score", "title", "content"}); err != nil {
		return errors.StorageError("write run header", err)
	}
	for _, hit := range run {
		score := ""
		if hit.Score != nil {
			score = strconv.FormatFloat(*hit.Score, 'g', -1, 64)
		}
		record := []string{
			hit.Query, hit.DocID, strconv.Itoa(hit.Rank), score,
			hit.Fields["title"], hit.Fields["content"],
		}
		if err := cw.Write(record); err != nil {
			return errors.StorageError("write run row", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.StorageError("flush run file", err)
	}

	fmt.Printf("Fetched %d hits for %d queries into %s\n", len(run), len(queries), output)
	return nil
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.StorageError("open query file "+path, err)
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			queries = append(queries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.StorageError("read query file "+path, err)
	}
	return queries, nil
}
