// Package judge provides the relevance classification capability used to
// grade pooled documents against their query.
package judge

import (
	"context"
)

// Request carries one document to grade against its query.
type Request struct {
	Query   string
	Title   string
	Content string
}

// Result is a graded relevance classification.
type Result struct {
	// Grade is the relevance grade: 0 not relevant, 1 partially, 2 highly.
	Grade int

	// Reason is the judge's one-line explanation.
	Reason string
}

// Judge classifies the relevance of a document for a query. The orchestrator
// treats this strictly as a capability: any failure is task-level and must
// not carry batch-wide state.
type Judge interface {
	// Classify grades one (query, document) pair.
	Classify(ctx context.Context, req Request) (Result, error)

	// Name identifies the judge for the labeled_by field.
	Name() string
}

// Stub is a deterministic in-process judge for tests.
type Stub struct {
	// Fn computes the result; required.
	Fn func(ctx context.Context, req Request) (Result, error)

	// JudgeName overrides the reported name.
	JudgeName string
}

// Classify delegates to Fn.
func (s *Stub) Classify(ctx context.Context, req Request) (Result, error) {
	return s.Fn(ctx, req)
}

// Name returns the stub's name.
func (s *Stub) Name() string {
	if s.JudgeName != "" {
		return s.JudgeName
	}
	return "stub-judge"
}
