package table

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/searchlab/search-eval/internal/judgments"
	"github.com/searchlab/search-eval/internal/pool"
)

func score(v float64) *float64 { return &v }

func grade(v int) *int { return &v }

func fixturePool(t *testing.T) *pool.Pool {
	t.Helper()
	merger, err := pool.NewMerger(3, nil)
	if err != nil {
		t.Fatalf("NewMerger: %v", err)
	}
	runA := []pool.SearchHit{
		{Query: "q1", DocID: "d1", Rank: 1, Score: score(0.9), Fields: map[string]string{"title": "first", "content": "body one"}},
		{Query: "q1", DocID: "d2", Rank: 2, Score: score(0.8)},
		{Query: "q1", DocID: "d3", Rank: 3, Score: score(0.7)},
	}
	runB := []pool.SearchHit{
		{Query: "q1", DocID: "d2", Rank: 1, Score: score(0.95)},
		{Query: "q1", DocID: "d4", Rank: 2, Score: score(0.5)},
	}
	p, _, err := merger.Merge([]string{"bm25", "dense"}, [][]pool.SearchHit{runA, runB})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return p
}

func TestFromPool(t *testing.T) {
	tbl := FromPool(fixturePool(t))

	if got, want := tbl.Methods, []string{"bm25", "dense"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Methods = %v, want %v", got, want)
	}
	if len(tbl.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(tbl.Rows))
	}

	first := tbl.Rows[0]
	if first.DocID != "d1" || first.Query != "q1" {
		t.Fatalf("first row = %s/%s, want q1/d1", first.Query, first.DocID)
	}
	if first.Title() != "first" {
		t.Errorf("Title() = %q, want %q", first.Title(), "first")
	}
	if first.Content() != "body one" {
		t.Errorf("Content() = %q, want %q", first.Content(), "body one")
	}

	// d2 was returned by both methods.
	second := tbl.Rows[1]
	if got, want := second.FoundBy, []string{"bm25", "dense"}; !reflect.DeepEqual(got, want) {
		t.Errorf("d2 FoundBy = %v, want %v", got, want)
	}
	if second.Methods["dense"].Rank != 1 {
		t.Errorf("d2 dense rank = %d, want 1", second.Methods["dense"].Rank)
	}
}

func TestContentPrefersMergedComment(t *testing.T) {
	row := &Row{Fields: map[string]string{
		"content":        "raw body",
		"merged_comment": "comment stream",
	}}
	if got := row.Content(); got != "comment stream" {
		t.Fatalf("Content() = %q, want merged_comment", got)
	}
	delete(row.Fields, "merged_comment")
	if got := row.Content(); got != "raw body" {
		t.Fatalf("Content() = %q, want content fallback", got)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := FromPool(fixturePool(t))
	when := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	tbl.ApplyJudgments([]judgments.RelevanceJudgment{
		{Query: "q1", DocID: "d2", Relevance: grade(2), LabeledBy: "ai-gpt-4o-mini", LabeledAt: when},
		{Query: "q1", DocID: "d4", LabeledBy: "ai-gpt-4o-mini", LabeledAt: when, Notes: "classification failed: timeout"},
		{Query: "q9", DocID: "dX", Relevance: grade(1)}, // no matching row, ignored
	})

	var buf bytes.Buffer
	if err := tbl.Write(&buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	for _, col := range []string{"bm25_rank", "bm25_score", "dense_rank", "found_by_methods", "num_methods_found", "relevance", "labeled_at"} {
		if !strings.Contains(header, col) {
			t.Errorf("header missing column %q: %s", col, header)
		}
	}

	back, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got, want := back.Methods, []string{"bm25", "dense"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("reread Methods = %v, want %v", got, want)
	}
	if len(back.Rows) != 4 {
		t.Fatalf("reread rows = %d, want 4", len(back.Rows))
	}

	byDoc := make(map[string]*Row)
	for _, row := range back.Rows {
		byDoc[row.DocID] = row
	}

	d2 := byDoc["d2"]
	if d2.Relevance == nil || *d2.Relevance != 2 {
		t.Errorf("d2 relevance = %v, want 2", d2.Relevance)
	}
	if d2.LabeledAt != "2026-03-10T09:30:00Z" {
		t.Errorf("d2 labeled_at = %q", d2.LabeledAt)
	}
	if got, want := d2.FoundBy, []string{"bm25", "dense"}; !reflect.DeepEqual(got, want) {
		t.Errorf("d2 FoundBy = %v, want %v", got, want)
	}
	if d2.Methods["bm25"].Rank != 2 || d2.Methods["bm25"].Score == nil || *d2.Methods["bm25"].Score != 0.8 {
		t.Errorf("d2 bm25 entry = %+v", d2.Methods["bm25"])
	}

	d4 := byDoc["d4"]
	if d4.Relevance != nil {
		t.Errorf("d4 relevance = %v, want nil", d4.Relevance)
	}
	if !strings.Contains(d4.Notes, "classification failed") {
		t.Errorf("d4 notes = %q", d4.Notes)
	}
	if _, ok := d4.Methods["bm25"]; ok {
		t.Error("d4 should have no bm25 entry")
	}

	d1 := byDoc["d1"]
	if d1.Fields["title"] != "first" || d1.Fields["content"] != "body one" {
		t.Errorf("d1 fields = %v", d1.Fields)
	}
}

func TestReadRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"missing query column", "doc_id,bm25_rank\nd1,1\n"},
		{"bad rank", "query,doc_id,bm25_rank\nq1,d1,abc\n"},
		{"bad relevance", "query,doc_id,bm25_rank,relevance\nq1,d1,1,high\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(tt.csv)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDetectMethods(t *testing.T) {
	header := []string{"query", "doc_id", "bm25_rank", "bm25_score", "dense_rank", "dense_score", "hybrid_rank", "found_by_methods"}
	got := DetectMethods(header)
	want := []string{"bm25", "dense", "hybrid"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DetectMethods = %v, want %v", got, want)
	}
}

func TestFilterPartition(t *testing.T) {
	tbl := &Table{Rows: []*Row{
		{Query: "q1", DocID: "d1", Partition: "head"},
		{Query: "q2", DocID: "d2", Partition: "tail"},
		{Query: "q3", DocID: "d3", Partition: "head"},
	}}

	head := tbl.FilterPartition("head")
	if len(head.Rows) != 2 {
		t.Fatalf("head rows = %d, want 2", len(head.Rows))
	}
	if all := tbl.FilterPartition(""); len(all.Rows) != 3 {
		t.Fatalf("empty filter rows = %d, want 3", len(all.Rows))
	}
}

func TestQueries(t *testing.T) {
	tbl := &Table{Rows: []*Row{
		{Query: "q1", DocID: "d1"},
		{Query: "q1", DocID: "d2"},
		{Query: "q2", DocID: "d3"},
	}}
	if got, want := tbl.Queries(), []string{"q1", "q2"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Queries = %v, want %v", got, want)
	}
}
