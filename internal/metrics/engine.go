package metrics

import (
	"fmt"
	"sort"

	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/pkg/logger"
	"github.com/searchlab/search-eval/internal/table"
)

// Coverage tags whether a cutoff is fully supported by the pooling depth.
const (
	CoverageExact   = "exact"
	CoveragePartial = "partial"
)

// Input is the judged pool restructured for metric computation.
type Input struct {
	Methods []string
	Queries []string

	// PoolDepth is the K the pool was built with; cutoffs above it are
	// tagged partial.
	PoolDepth int

	// Grades maps query to doc_id to judged grade. Unjudged pairs are
	// absent; metric computation defaults them to grade 0.
	Grades map[string]map[string]int

	// Rankings maps method to query to doc IDs in rank order.
	Rankings map[string]map[string][]string

	// UnjudgedDocs counts pooled pairs that carry no judgment.
	UnjudgedDocs int
}

// BuildInput restructures a judged pooled table. poolDepth may be zero
// when unknown; coverage tags then default to exact.
func BuildInput(t *table.Table, poolDepth int) (*Input, error) {
	if len(t.Methods) == 0 {
		return nil, errors.ValidationError("pooled table declares no methods")
	}
	if len(t.Rows) == 0 {
		return nil, errors.ValidationError("pooled table has no rows")
	}

	in := &Input{
		Methods:   append([]string(nil), t.Methods...),
		Queries:   t.Queries(),
		PoolDepth: poolDepth,
		Grades:    make(map[string]map[string]int),
		Rankings:  make(map[string]map[string][]string),
	}
	sort.Strings(in.Queries)

	type rankedDoc struct {
		docID string
		rank  int
	}
	ranked := make(map[string]map[string][]rankedDoc)
	for _, method := range in.Methods {
		ranked[method] = make(map[string][]rankedDoc)
	}

	for _, row := range t.Rows {
		if row.Relevance != nil {
			grades, ok := in.Grades[row.Query]
			if !ok {
				grades = make(map[string]int)
				in.Grades[row.Query] = grades
			}
			grades[row.DocID] = *row.Relevance
		} else {
			in.UnjudgedDocs++
		}
		for method, entry := range row.Methods {
			ranked[method][row.Query] = append(ranked[method][row.Query], rankedDoc{row.DocID, entry.Rank})
		}
	}

	for method, perQuery := range ranked {
		in.Rankings[method] = make(map[string][]string, len(perQuery))
		for query, docs := range perQuery {
			sort.Slice(docs, func(i, j int) bool { return docs[i].rank < docs[j].rank })
			ids := make([]string, len(docs))
			for i, d := range docs {
				ids[i] = d.docID
			}
			in.Rankings[method][query] = ids
		}
	}

	return in, nil
}

// CutoffMetrics are the rank-cutoff metrics of one cell.
type CutoffMetrics struct {
	Precision float64
	Recall    float64
	NDCG      float64
}

// QueryMetrics holds one (method, query) row: cutoff metrics per K plus
// MRR and AP computed once over the full ranked list. Missing marks the
// cell where the method ranked nothing for a judged query; its values
// are then meaningless and it never enters the aggregate means.
type QueryMetrics struct {
	Method string
	Query  string

	Missing bool

	RankedDocs   int
	PoolRelevant int

	// UnjudgedDocs counts ranked documents without a judgment, scored
	// at the default grade 0.
	UnjudgedDocs int

	ByK map[int]CutoffMetrics
	MRR float64
	AP  float64
}

// CutoffSummary aggregates one (method, K) with an unweighted mean.
type CutoffSummary struct {
	Coverage string

	MeanPrecision float64
	MeanRecall    float64
	MeanNDCG      float64
}

// Summary aggregates one method over all queries. Queries where the
// method returned nothing but judgments exist are data errors: counted
// in MissingQueries and excluded from the means, never scored zero.
type Summary struct {
	Method string

	Queries        int
	MissingQueries int

	ByK     map[int]CutoffSummary
	MeanMRR float64
	MAP     float64
}

// Report is the full metric output for one evaluation run.
type Report struct {
	PoolDepth int
	KValues   []int
	PerQuery  []QueryMetrics
	Summaries []Summary
}

// Coverage reports whether a cutoff is fully covered by the pool depth.
func (r *Report) Coverage(k int) string {
	if r.PoolDepth > 0 && k > r.PoolDepth {
		return CoveragePartial
	}
	return CoverageExact
}

// Engine computes ranked-retrieval metrics at configured cutoffs.
type Engine struct {
	kValues []int
	log     *logger.Logger
}

// NewEngine creates an engine for the given cutoffs.
func NewEngine(kValues []int, log *logger.Logger) (*Engine, error) {
	if len(kValues) == 0 {
		return nil, errors.ConfigurationError("at least one K cutoff is required")
	}
	seen := make(map[int]bool, len(kValues))
	ks := make([]int, 0, len(kValues))
	for _, k := range kValues {
		if k < 1 {
			return nil, errors.ConfigurationError(fmt.Sprintf("K cutoff must be positive, got %d", k))
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		ks = append(ks, k)
	}
	sort.Ints(ks)
	if log == nil {
		log = logger.Default()
	}
	return &Engine{kValues: ks, log: log}, nil
}

// Evaluate computes per-query rows and per-method summaries. The output
// order is deterministic: methods in input order, queries ascending.
func (e *Engine) Evaluate(in *Input) (*Report, error) {
	if in == nil || len(in.Methods) == 0 {
		return nil, errors.ValidationError("metric input declares no methods")
	}
	if len(in.Queries) == 0 {
		return nil, errors.ValidationError("metric input has no queries")
	}

	report := &Report{
		PoolDepth: in.PoolDepth,
		KValues:   append([]int(nil), e.kValues...),
	}

	for _, method := range in.Methods {
		summary := Summary{
			Method: method,
			ByK:    make(map[int]CutoffSummary, len(e.kValues)),
		}
		for _, k := range e.kValues {
			summary.ByK[k] = CutoffSummary{Coverage: report.Coverage(k)}
		}

		for _, query := range in.Queries {
			docIDs := in.Rankings[method][query]
			grades := in.Grades[query]
			summary.Queries++

			row := QueryMetrics{
				Method:     method,
				Query:      query,
				RankedDocs: len(docIDs),
				ByK:        make(map[int]CutoffMetrics, len(e.kValues)),
			}

			totalRelevant := 0
			poolGrades := make([]int, 0, len(grades))
			for _, g := range grades {
				poolGrades = append(poolGrades, g)
				if g >= RelevanceThreshold {
					totalRelevant++
				}
			}
			row.PoolRelevant = totalRelevant

			// The method ranked nothing for a judged query: the
			// comparison is undefined there, so the row is surfaced
			// as missing instead of averaging in zeros.
			if len(docIDs) == 0 && len(grades) > 0 {
				row.Missing = true
				summary.MissingQueries++
				report.PerQuery = append(report.PerQuery, row)
				continue
			}

			// Grades in rank order; unjudged documents score 0.
			ranked := make([]int, len(docIDs))
			for i, docID := range docIDs {
				if g, ok := grades[docID]; ok {
					ranked[i] = g
				} else {
					row.UnjudgedDocs++
				}
			}

			row.MRR = MRR(ranked)
			row.AP = AveragePrecision(ranked)
			summary.MeanMRR += row.MRR
			summary.MAP += row.AP

			for _, k := range e.kValues {
				cell := CutoffMetrics{
					Precision: Precision(ranked, k),
					Recall:    Recall(ranked, k, totalRelevant),
					NDCG:      NDCG(ranked, poolGrades, k),
				}
				row.ByK[k] = cell

				agg := summary.ByK[k]
				agg.MeanPrecision += cell.Precision
				agg.MeanRecall += cell.Recall
				agg.MeanNDCG += cell.NDCG
				summary.ByK[k] = agg
			}

			report.PerQuery = append(report.PerQuery, row)
		}

		if computed := summary.Queries - summary.MissingQueries; computed > 0 {
			divisor := float64(computed)
			summary.MeanMRR /= divisor
			summary.MAP /= divisor
			for _, k := range e.kValues {
				agg := summary.ByK[k]
				agg.MeanPrecision /= divisor
				agg.MeanRecall /= divisor
				agg.MeanNDCG /= divisor
				summary.ByK[k] = agg
			}
		}
		report.Summaries = append(report.Summaries, summary)
	}

	e.log.Info("Metric computation complete",
		"methods", len(in.Methods),
		"queries", len(in.Queries),
		"cutoffs", e.kValues,
		"unjudged_docs", in.UnjudgedDocs,
	)

	return report, nil
}
