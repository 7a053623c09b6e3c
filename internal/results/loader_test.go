package results

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	csv := `query,doc_id,rank,score,title
how to restart,KB-1,1,0.92,Restart guide
how to restart,KB-2,2,0.81,
reset password,KB-7,1,0.88,Password reset
`
	hits, err := Load(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}

	first := hits[0]
	if first.Query != "how to restart" || first.DocID != "KB-1" || first.Rank != 1 {
		t.Fatalf("first hit = %+v", first)
	}
	if first.Score == nil || *first.Score != 0.92 {
		t.Errorf("first score = %v, want 0.92", first.Score)
	}
	if first.Fields["title"] != "Restart guide" {
		t.Errorf("first title = %q", first.Fields["title"])
	}
	if hits[1].Fields != nil {
		t.Errorf("empty extras should stay nil, got %v", hits[1].Fields)
	}
}

func TestLoadMissingScoreColumn(t *testing.T) {
	hits, err := Load(strings.NewReader("query,doc_id,rank\nq1,d1,1\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if hits[0].Score != nil {
		t.Errorf("score = %v, want nil", hits[0].Score)
	}
}

func TestLoadBadRankPassesThrough(t *testing.T) {
	// Malformed ranks are not fatal; the merge counts them as skipped.
	hits, err := Load(strings.NewReader("query,doc_id,rank\nq1,d1,first\nq1,d2,2\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if hits[0].Rank != 0 {
		t.Errorf("bad rank = %d, want 0", hits[0].Rank)
	}
	if hits[1].Rank != 2 {
		t.Errorf("good rank = %d, want 2", hits[1].Rank)
	}
}

func TestLoadRejectsMissingColumns(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty input", ""},
		{"no rank", "query,doc_id\nq1,d1\n"},
		{"no query", "doc_id,rank\nd1,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.csv)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"bm25.csv":  "query,doc_id,rank\nq1,d1,1\n",
		"dense.csv": "query,doc_id,rank\nq1,d2,1\nq1,d1,2\n",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := LoadFiles([]string{filepath.Join(dir, "bm25.csv"), filepath.Join(dir, "dense.csv")})
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if len(runs) != 2 || len(runs[0]) != 1 || len(runs[1]) != 2 {
		t.Fatalf("runs shape = %d/%d/%d", len(runs), len(runs[0]), len(runs[1]))
	}

	if _, err := LoadFiles([]string{filepath.Join(dir, "missing.csv")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNewQdrantSourceDefaults(t *testing.T) {
	src, err := NewQdrantSource(QdrantConfig{}, nil)
	if err != nil {
		t.Fatalf("NewQdrantSource: %v", err)
	}
	defer src.Close()

	if src.config.Host != "localhost" || src.config.Port != DefaultQdrantPort {
		t.Errorf("defaults = %s:%d", src.config.Host, src.config.Port)
	}
	if err := src.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNewOpenAIEmbedderRequiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder("", "", ""); err == nil {
		t.Fatal("expected error for missing API key")
	}
	e, err := NewOpenAIEmbedder("sk-test", "", "")
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder: %v", err)
	}
	if e.model != DefaultEmbedModel {
		t.Errorf("model = %q, want default", e.model)
	}
}
