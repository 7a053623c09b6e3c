// Package judgments persists graded relevance judgments for pooled documents.
package judgments

import (
	"context"
	"time"
)

// RelevanceJudgment is a graded judgment for one (query, doc_id) pair.
// At most one judgment exists per pair; a later Put overwrites it.
type RelevanceJudgment struct {
	Query string `json:"query"`
	DocID string `json:"doc_id"`

	// Relevance is the grade: 0 not relevant, 1 partially, 2 highly.
	// Nil records a failed classification (the pair stays judged so the
	// failure is visible, but carries no grade).
	Relevance *int `json:"relevance"`

	LabeledBy string    `json:"labeled_by"`
	LabeledAt time.Time `json:"labeled_at"`
	Notes     string    `json:"notes,omitempty"`
}

// Graded reports whether the judgment carries a usable grade.
func (j *RelevanceJudgment) Graded() bool {
	return j.Relevance != nil
}

// Store is the judgment persistence capability. Absence of a judgment is a
// valid state; Get returns (nil, nil) for unjudged pairs. Implementations
// must persist each Put before returning so that partial labeling progress
// survives interruption.
type Store interface {
	// Get returns the judgment for a pair, or nil when unjudged.
	Get(ctx context.Context, query, docID string) (*RelevanceJudgment, error)

	// Put creates or replaces the judgment for a pair.
	Put(ctx context.Context, judgment RelevanceJudgment) error

	// List returns all judgments in the store.
	List(ctx context.Context) ([]RelevanceJudgment, error)

	// Close releases resources held by the store.
	Close() error
}

// key identifies a (query, doc_id) pair inside in-memory indexes.
type key struct {
	query string
	docID string
}

// Distribution counts judgments per grade; the -1 bucket counts failed
// (null-grade) judgments.
func Distribution(js []RelevanceJudgment) map[int]int {
	dist := make(map[int]int)
	for _, j := range js {
		if j.Relevance == nil {
			dist[-1]++
			continue
		}
		dist[*j.Relevance]++
	}
	return dist
}
