// Package pool builds depth-K evaluation pools from ranked retrieval runs.
package pool

// SearchHit is a single ranked result produced by one retrieval method.
type SearchHit struct {
	// Query is the query text this hit was retrieved for.
	Query string

	// DocID uniquely identifies the retrieved document.
	DocID string

	// Rank is the 1-based position within the method's result list.
	Rank int

	// Score is the method's retrieval score. Nil when the method did not
	// report one or the value could not be parsed.
	Score *float64

	// Fields carries pass-through content columns (title, content, ...).
	Fields map[string]string
}

// MethodEntry records where one method placed a pooled document.
type MethodEntry struct {
	Rank  int
	Score *float64
}

// PooledDocument is one unique (query, doc_id) pair in the pool.
type PooledDocument struct {
	Query string
	DocID string

	// Partition tags the query-population segment this document came from
	// (e.g. "HEAD" or "TAIL"). Empty for single-set merges.
	Partition string

	// FoundBy lists the methods whose top-K contained this document, in
	// method declaration order.
	FoundBy []string

	// Methods maps method name to the rank/score that method assigned.
	// Methods that did not find the document within depth K are absent.
	Methods map[string]MethodEntry

	// Fields carries pass-through content columns from the first hit seen.
	Fields map[string]string
}

// NumMethodsFound returns how many methods contributed this document.
func (d *PooledDocument) NumMethodsFound() int {
	return len(d.FoundBy)
}

// Pool is the merged, deduplicated union of all methods' top-K results.
type Pool struct {
	// DepthK is the pooling depth used for the merge.
	DepthK int

	// Methods lists the method identifiers in declaration order.
	Methods []string

	// Documents holds the pooled documents in deterministic order:
	// queries ascending, then first-seen order within each query.
	Documents []*PooledDocument
}

// Queries returns the distinct queries in the pool, in order.
func (p *Pool) Queries() []string {
	var queries []string
	seen := make(map[string]bool)
	for _, doc := range p.Documents {
		if !seen[doc.Query] {
			seen[doc.Query] = true
			queries = append(queries, doc.Query)
		}
	}
	return queries
}

// MergeReport accounts for degraded input encountered during a merge.
type MergeReport struct {
	// InputRows is the total number of hits presented across all runs.
	InputRows int

	// SkippedRows counts rows dropped for missing query, doc_id, or rank.
	SkippedRows int

	// MissingScores counts accepted rows that carried no usable score.
	MissingScores int

	// DuplicateRows counts (query, doc_id, method) repeats where the last
	// occurrence overwrote an earlier one.
	DuplicateRows int
}

// PartitionedInput is one input group for a partitioned merge.
type PartitionedInput struct {
	// Partition tags every document merged from this group.
	Partition string

	// Runs holds one ordered hit sequence per method, aligned with the
	// method list passed to MergePartitioned.
	Runs [][]SearchHit
}
