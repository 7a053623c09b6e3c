package pool

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

func hit(query, docID string, rank int) SearchHit {
	score := 1.0 / float64(rank)
	return SearchHit{Query: query, DocID: docID, Rank: rank, Score: &score}
}

func run(query string, docIDs ...string) []SearchHit {
	hits := make([]SearchHit, 0, len(docIDs))
	for i, id := range docIDs {
		hits = append(hits, hit(query, id, i+1))
	}
	return hits
}

func mustMerger(t *testing.T, depthK int) *Merger {
	t.Helper()
	m, err := NewMerger(depthK, nil)
	if err != nil {
		t.Fatalf("NewMerger(%d) error = %v", depthK, err)
	}
	return m
}

// Two methods at K=3: A -> [d1,d2,d3], B -> [d2,d4,d3].
func twoMethodFixture() ([]string, [][]SearchHit) {
	methods := []string{"A", "B"}
	runs := [][]SearchHit{
		run("q1", "d1", "d2", "d3"),
		run("q1", "d2", "d4", "d3"),
	}
	return methods, runs
}

func TestMergeWorkedExample(t *testing.T) {
	m := mustMerger(t, 3)
	methods, runs := twoMethodFixture()

	pool, report, err := m.Merge(methods, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if report.SkippedRows != 0 {
		t.Errorf("SkippedRows = %d, want 0", report.SkippedRows)
	}

	if len(pool.Documents) != 4 {
		t.Fatalf("pool size = %d, want 4", len(pool.Documents))
	}

	wantFoundBy := map[string][]string{
		"d1": {"A"},
		"d2": {"A", "B"},
		"d3": {"A", "B"},
		"d4": {"B"},
	}
	wantRanks := map[string]map[string]int{
		"d1": {"A": 1},
		"d2": {"A": 2, "B": 1},
		"d3": {"A": 3, "B": 3},
		"d4": {"B": 2},
	}

	for _, doc := range pool.Documents {
		if !reflect.DeepEqual(doc.FoundBy, wantFoundBy[doc.DocID]) {
			t.Errorf("%s FoundBy = %v, want %v", doc.DocID, doc.FoundBy, wantFoundBy[doc.DocID])
		}
		for method, wantRank := range wantRanks[doc.DocID] {
			entry, ok := doc.Methods[method]
			if !ok {
				t.Errorf("%s missing entry for method %s", doc.DocID, method)
				continue
			}
			if entry.Rank != wantRank {
				t.Errorf("%s %s rank = %d, want %d", doc.DocID, method, entry.Rank, wantRank)
			}
			if entry.Score == nil {
				t.Errorf("%s %s score should be set", doc.DocID, method)
			}
		}
		for method := range doc.Methods {
			if _, want := wantRanks[doc.DocID][method]; !want {
				t.Errorf("%s has unexpected entry for method %s", doc.DocID, method)
			}
		}
	}

	stats := Stats(pool)
	if stats.Overlap[0] != 2 || stats.Overlap[1] != 2 {
		t.Errorf("overlap histogram = %v, want [2 2]", stats.Overlap)
	}
}

func TestMergeIdempotent(t *testing.T) {
	m := mustMerger(t, 3)
	methods, runs := twoMethodFixture()

	first, _, err := m.Merge(methods, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	second, _, err := m.Merge(methods, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("re-running the merge on identical inputs should yield an identical pool")
	}
}

func TestMergeDepthTruncation(t *testing.T) {
	m := mustMerger(t, 2)

	// Rank 3 lies beyond K=2: not found by that method, not an error.
	pool, report, err := m.Merge([]string{"A"}, [][]SearchHit{run("q1", "d1", "d2", "d3")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(pool.Documents) != 2 {
		t.Fatalf("pool size = %d, want 2", len(pool.Documents))
	}
	for _, doc := range pool.Documents {
		if doc.DocID == "d3" {
			t.Error("d3 is beyond depth K and should not be pooled")
		}
	}
	if report.SkippedRows != 0 {
		t.Errorf("beyond-K rows are not validation errors, SkippedRows = %d", report.SkippedRows)
	}
}

func TestMergeWindowIsRankBased(t *testing.T) {
	m := mustMerger(t, 3)

	// A tail page whose ranks all start above K: the window tests the
	// rank field, not the position in the run, so nothing is pooled.
	runs := [][]SearchHit{{
		hit("q1", "d10", 4),
		hit("q1", "d11", 5),
	}}
	pool, report, err := m.Merge([]string{"A"}, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(pool.Documents) != 0 {
		t.Fatalf("pool size = %d, want 0", len(pool.Documents))
	}
	if report.SkippedRows != 0 {
		t.Errorf("SkippedRows = %d, want 0", report.SkippedRows)
	}
}

func TestMergeConservation(t *testing.T) {
	// Each method returns a full K list for every query: each method must
	// contribute exactly K x queries pool memberships.
	const depthK = 4
	const numQueries = 5
	m := mustMerger(t, depthK)

	methods := []string{"lexical", "semantic"}
	runs := make([][]SearchHit, len(methods))
	for mi := range methods {
		var hits []SearchHit
		for q := 0; q < numQueries; q++ {
			query := fmt.Sprintf("q%d", q)
			for r := 1; r <= depthK; r++ {
				// Disjoint doc spaces per method.
				hits = append(hits, hit(query, fmt.Sprintf("m%d-doc%d", mi, r), r))
			}
		}
		runs[mi] = hits
	}

	pool, _, err := m.Merge(methods, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	counts := make(map[string]int)
	for _, doc := range pool.Documents {
		for _, method := range doc.FoundBy {
			counts[method]++
		}
	}
	for _, method := range methods {
		if counts[method] != depthK*numQueries {
			t.Errorf("method %s membership = %d, want %d", method, counts[method], depthK*numQueries)
		}
	}

	// Histogram closure: sum over overlap buckets equals pool size.
	stats := Stats(pool)
	total := 0
	for _, n := range stats.Overlap {
		total += n
	}
	if total != len(pool.Documents) {
		t.Errorf("overlap histogram sums to %d, want %d", total, len(pool.Documents))
	}
}

func TestMergeSkipsMalformedRows(t *testing.T) {
	m := mustMerger(t, 10)

	runs := [][]SearchHit{{
		hit("q1", "d1", 1),
		{Query: "", DocID: "d2", Rank: 2},  // missing query
		{Query: "q1", DocID: "", Rank: 3},  // missing doc_id
		{Query: "q1", DocID: "d4", Rank: 0}, // missing rank
		hit("q1", "d5", 2),
	}}

	pool, report, err := m.Merge([]string{"A"}, runs)
	if err != nil {
		t.Fatalf("malformed rows must not abort the merge: %v", err)
	}
	if report.SkippedRows != 3 {
		t.Errorf("SkippedRows = %d, want 3", report.SkippedRows)
	}
	if len(pool.Documents) != 2 {
		t.Errorf("pool size = %d, want 2", len(pool.Documents))
	}
}

func TestMergeMissingScore(t *testing.T) {
	m := mustMerger(t, 10)

	runs := [][]SearchHit{{
		{Query: "q1", DocID: "d1", Rank: 1}, // no score: degraded, not fatal
		hit("q1", "d2", 2),
	}}

	pool, report, err := m.Merge([]string{"A"}, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if report.MissingScores != 1 {
		t.Errorf("MissingScores = %d, want 1", report.MissingScores)
	}
	if entry := pool.Documents[0].Methods["A"]; entry.Score != nil {
		t.Error("missing score should stay nil")
	}
}

func TestMergeDuplicateLastWriteWins(t *testing.T) {
	m := mustMerger(t, 10)

	s1, s2 := 0.5, 0.9
	runs := [][]SearchHit{{
		{Query: "q1", DocID: "d1", Rank: 1, Score: &s1},
		{Query: "q1", DocID: "d1", Rank: 3, Score: &s2}, // rerun row
	}}

	pool, report, err := m.Merge([]string{"A"}, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if report.DuplicateRows != 1 {
		t.Errorf("DuplicateRows = %d, want 1", report.DuplicateRows)
	}
	if len(pool.Documents) != 1 {
		t.Fatalf("pool size = %d, want 1", len(pool.Documents))
	}

	doc := pool.Documents[0]
	if len(doc.FoundBy) != 1 {
		t.Errorf("FoundBy = %v, duplicate must not repeat the method", doc.FoundBy)
	}
	entry := doc.Methods["A"]
	if entry.Rank != 3 || entry.Score == nil || *entry.Score != 0.9 {
		t.Errorf("last occurrence should win, got rank=%d score=%v", entry.Rank, entry.Score)
	}
}

func TestMergePartitioned(t *testing.T) {
	m := mustMerger(t, 3)
	methods := []string{"A", "B"}

	groups := []PartitionedInput{
		{Partition: "HEAD", Runs: [][]SearchHit{run("q1", "d1", "d2"), run("q1", "d2")}},
		{Partition: "TAIL", Runs: [][]SearchHit{run("q9", "d7"), run("q9", "d8")}},
	}

	pool, _, err := m.MergePartitioned(methods, groups)
	if err != nil {
		t.Fatalf("MergePartitioned() error = %v", err)
	}

	partitions := make(map[string]string)
	for _, doc := range pool.Documents {
		partitions[doc.Query] = doc.Partition
	}
	if partitions["q1"] != "HEAD" {
		t.Errorf("q1 partition = %s, want HEAD", partitions["q1"])
	}
	if partitions["q9"] != "TAIL" {
		t.Errorf("q9 partition = %s, want TAIL", partitions["q9"])
	}
}

func TestMergeConfigurationErrors(t *testing.T) {
	m := mustMerger(t, 3)

	tests := []struct {
		name    string
		methods []string
		runs    [][]SearchHit
	}{
		{"count mismatch", []string{"A", "B"}, [][]SearchHit{run("q1", "d1")}},
		{"no methods", nil, nil},
		{"empty method name", []string{""}, [][]SearchHit{nil}},
		{"duplicate method name", []string{"A", "A"}, [][]SearchHit{nil, nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := m.Merge(tt.methods, tt.runs)
			if !errors.IsCode(err, errors.CodeConfiguration) {
				t.Errorf("Merge() error = %v, want CONFIGURATION_ERROR", err)
			}
		})
	}

	if _, err := NewMerger(0, nil); !errors.IsCode(err, errors.CodeConfiguration) {
		t.Errorf("NewMerger(0) error = %v, want CONFIGURATION_ERROR", err)
	}
}
