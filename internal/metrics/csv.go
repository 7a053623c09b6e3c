package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func (r *Report) metricColumns(prefix string) []string {
	var cols []string
	for _, name := range []string{"ndcg", "recall", "precision"} {
		for _, k := range r.KValues {
			cols = append(cols, fmt.Sprintf("%s%s@%d", prefix, name, k))
		}
	}
	return cols
}

func cutoffValues(row QueryMetrics, kValues []int) []string {
	var values []string
	pick := func(c CutoffMetrics, name string) float64 {
		switch name {
		case "recall":
			return c.Recall
		case "precision":
			return c.Precision
		default:
			return c.NDCG
		}
	}
	for _, name := range []string{"ndcg", "recall", "precision"} {
		for _, k := range kValues {
			values = append(values, formatFloat(pick(row.ByK[k], name)))
		}
	}
	return values
}

// WritePerQuery emits one CSV row per (method, query): cutoff metrics in
// ndcg/recall/precision blocks, then mrr and ap over the full ranking.
// Missing rows keep their metric columns empty instead of reporting
// zeros.
func (r *Report) WritePerQuery(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"method", "query"}, r.metricColumns("")...)
	header = append(header, "mrr", "ap", "num_results", "num_relevant", "unjudged_docs", "missing")
	if err := cw.Write(header); err != nil {
		return errors.StorageError("write per-query header", err)
	}

	blanks := len(r.KValues)*3 + 2
	for _, row := range r.PerQuery {
		record := []string{row.Method, row.Query}
		if row.Missing {
			for i := 0; i < blanks; i++ {
				record = append(record, "")
			}
		} else {
			record = append(record, cutoffValues(row, r.KValues)...)
			record = append(record, formatFloat(row.MRR), formatFloat(row.AP))
		}
		record = append(record,
			strconv.Itoa(row.RankedDocs),
			strconv.Itoa(row.PoolRelevant),
			strconv.Itoa(row.UnjudgedDocs),
			strconv.FormatBool(row.Missing),
		)
		if err := cw.Write(record); err != nil {
			return errors.StorageError("write per-query row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.StorageError("flush per-query metrics", err)
	}
	return nil
}

// WriteSummary emits one CSV row per method with mean metrics, plus a
// coverage tag per cutoff.
func (r *Report) WriteSummary(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"method"}, r.metricColumns("mean_")...)
	header = append(header, "mean_mrr", "map", "num_queries", "missing_queries")
	for _, k := range r.KValues {
		header = append(header, fmt.Sprintf("coverage@%d", k))
	}
	if err := cw.Write(header); err != nil {
		return errors.StorageError("write summary header", err)
	}

	for _, s := range r.Summaries {
		record := []string{s.Method}
		pick := func(c CutoffSummary, name string) float64 {
			switch name {
			case "recall":
				return c.MeanRecall
			case "precision":
				return c.MeanPrecision
			default:
				return c.MeanNDCG
			}
		}
		for _, name := range []string{"ndcg", "recall", "precision"} {
			for _, k := range r.KValues {
				record = append(record, formatFloat(pick(s.ByK[k], name)))
			}
		}
		record = append(record,
			formatFloat(s.MeanMRR),
			formatFloat(s.MAP),
			strconv.Itoa(s.Queries),
			strconv.Itoa(s.MissingQueries),
		)
		for _, k := range r.KValues {
			record = append(record, s.ByK[k].Coverage)
		}
		if err := cw.Write(record); err != nil {
			return errors.StorageError("write summary row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.StorageError("flush summary metrics", err)
	}
	return nil
}
