package pool

import (
	"fmt"
	"sort"

	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/pkg/logger"
)

// Merger merges ranked result runs into a depth-K evaluation pool.
//
// Merging is a deterministic single-threaded pass: identical inputs always
// produce an identical pool. Duplicate (query, doc_id, method) rows within
// the top-K window follow last-write-wins, matching rerun-overwrites-prior
// semantics.
type Merger struct {
	depthK int
	log    *logger.Logger
}

// NewMerger creates a merger for the given pooling depth.
func NewMerger(depthK int, log *logger.Logger) (*Merger, error) {
	if depthK < 1 {
		return nil, errors.ConfigurationError(fmt.Sprintf("depth K must be positive, got %d", depthK))
	}
	if log == nil {
		log = logger.Default()
	}
	return &Merger{depthK: depthK, log: log}, nil
}

// DepthK returns the pooling depth this merger was built with.
func (m *Merger) DepthK() int {
	return m.depthK
}

// Merge unions the top-K hits of each method's run into a single pool.
// runs must be aligned with methods: runs[i] is the ordered hit sequence
// for methods[i], already rank-sorted, possibly spanning many queries.
func (m *Merger) Merge(methods []string, runs [][]SearchHit) (*Pool, *MergeReport, error) {
	return m.merge(methods, []PartitionedInput{{Runs: runs}})
}

// MergePartitioned merges each input group independently, tagging every
// document with its group's partition, then unions the groups. Downstream
// metric slicing can then filter on the partition without re-pooling.
func (m *Merger) MergePartitioned(methods []string, groups []PartitionedInput) (*Pool, *MergeReport, error) {
	return m.merge(methods, groups)
}

func (m *Merger) merge(methods []string, groups []PartitionedInput) (*Pool, *MergeReport, error) {
	if len(methods) == 0 {
		return nil, nil, errors.ConfigurationError("at least one method is required")
	}
	seen := make(map[string]bool, len(methods))
	for _, method := range methods {
		if method == "" {
			return nil, nil, errors.ConfigurationError("method name must not be empty")
		}
		if seen[method] {
			return nil, nil, errors.ConfigurationError(fmt.Sprintf("duplicate method name: %s", method))
		}
		seen[method] = true
	}
	for _, group := range groups {
		if len(group.Runs) != len(methods) {
			return nil, nil, errors.ConfigurationError(fmt.Sprintf(
				"input group %q has %d runs, want one per method (%d)",
				group.Partition, len(group.Runs), len(methods)))
		}
	}

	report := &MergeReport{}
	pool := &Pool{
		DepthK:  m.depthK,
		Methods: append([]string(nil), methods...),
	}

	for _, group := range groups {
		docs := m.mergeGroup(methods, group, report)
		pool.Documents = append(pool.Documents, docs...)
	}

	m.log.Info("Pool merge complete",
		"methods", len(methods),
		"depth_k", m.depthK,
		"documents", len(pool.Documents),
		"skipped_rows", report.SkippedRows,
		"missing_scores", report.MissingScores,
	)

	return pool, report, nil
}

// mergeGroup pools one partition group. Documents come out ordered by
// query ascending, then first-seen order within the query.
func (m *Merger) mergeGroup(methods []string, group PartitionedInput, report *MergeReport) []*PooledDocument {
	// Bucket each method's run per query, keeping input order. Only
	// hits whose method rank is within depthK enter the pool.
	perMethod := make([]map[string][]SearchHit, len(methods))
	querySet := make(map[string]bool)

	for i, run := range group.Runs {
		buckets := make(map[string][]SearchHit)
		for _, hit := range run {
			report.InputRows++
			if hit.Query == "" || hit.DocID == "" || hit.Rank < 1 {
				report.SkippedRows++
				m.log.Debug("Skipping malformed hit",
					"method", methods[i], "query", hit.Query, "doc_id", hit.DocID, "rank", hit.Rank)
				continue
			}
			buckets[hit.Query] = append(buckets[hit.Query], hit)
			querySet[hit.Query] = true
		}
		perMethod[i] = buckets
	}

	queries := make([]string, 0, len(querySet))
	for q := range querySet {
		queries = append(queries, q)
	}
	sort.Strings(queries)

	var docs []*PooledDocument
	for _, query := range queries {
		queryPool := make(map[string]*PooledDocument)
		var order []string

		for i, method := range methods {
			for _, hit := range perMethod[i][query] {
				if hit.Rank > m.depthK {
					continue
				}
				if hit.Score == nil {
					report.MissingScores++
				}

				doc, ok := queryPool[hit.DocID]
				if !ok {
					doc = &PooledDocument{
						Query:     query,
						DocID:     hit.DocID,
						Partition: group.Partition,
						Methods:   make(map[string]MethodEntry),
						Fields:    hit.Fields,
					}
					queryPool[hit.DocID] = doc
					order = append(order, hit.DocID)
				}

				if _, already := doc.Methods[method]; already {
					report.DuplicateRows++
				} else {
					doc.FoundBy = append(doc.FoundBy, method)
				}
				doc.Methods[method] = MethodEntry{Rank: hit.Rank, Score: hit.Score}
			}
		}

		for _, docID := range order {
			docs = append(docs, queryPool[docID])
		}
	}

	return docs
}
