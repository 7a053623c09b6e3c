// Package table models the pooled evaluation table that flows between
// pooling, labeling, and metric computation.
package table

import (
	"sort"
	"strings"

	"github.com/searchlab/search-eval/internal/judgments"
	"github.com/searchlab/search-eval/internal/pool"
)

// foundBySeparator delimits method names in the found_by_methods column.
const foundBySeparator = ","

// Row is one pooled (query, doc_id) pair with provenance, pass-through
// content, and the judgment once labeling has run.
type Row struct {
	Query     string
	DocID     string
	Partition string

	FoundBy []string
	Methods map[string]pool.MethodEntry

	// Fields carries pass-through content columns.
	Fields map[string]string

	// Judgment columns; Relevance stays nil until the pair is judged.
	Relevance *int
	LabeledBy string
	LabeledAt string
	Notes     string
}

// Title returns the document title for labeling prompts.
func (r *Row) Title() string {
	return r.Fields["title"]
}

// Content returns the document text for labeling prompts, preferring the
// merged comment stream over raw content.
func (r *Row) Content() string {
	if c := r.Fields["merged_comment"]; c != "" {
		return c
	}
	return r.Fields["content"]
}

// Table is an ordered pooled table plus its method and field schema.
type Table struct {
	// Methods lists method identifiers in column order.
	Methods []string

	// FieldNames lists pass-through column names in column order.
	FieldNames []string

	Rows []*Row
}

// FromPool converts a merged pool into a table, preserving the pool's
// deterministic row order.
func FromPool(p *pool.Pool) *Table {
	t := &Table{
		Methods: append([]string(nil), p.Methods...),
	}

	fieldSet := make(map[string]bool)
	for _, doc := range p.Documents {
		row := &Row{
			Query:     doc.Query,
			DocID:     doc.DocID,
			Partition: doc.Partition,
			FoundBy:   append([]string(nil), doc.FoundBy...),
			Methods:   make(map[string]pool.MethodEntry, len(doc.Methods)),
			Fields:    make(map[string]string, len(doc.Fields)),
		}
		for method, entry := range doc.Methods {
			row.Methods[method] = entry
		}
		for name, value := range doc.Fields {
			row.Fields[name] = value
			fieldSet[name] = true
		}
		t.Rows = append(t.Rows, row)
	}

	for name := range fieldSet {
		t.FieldNames = append(t.FieldNames, name)
	}
	sort.Strings(t.FieldNames)

	return t
}

// ApplyJudgments attaches judgments to matching rows. Rows without a
// judgment are left untouched; judgments without a row are ignored.
func (t *Table) ApplyJudgments(js []judgments.RelevanceJudgment) {
	index := make(map[[2]string]*Row, len(t.Rows))
	for _, row := range t.Rows {
		index[[2]string{row.Query, row.DocID}] = row
	}

	for _, j := range js {
		row, ok := index[[2]string{j.Query, j.DocID}]
		if !ok {
			continue
		}
		row.Relevance = j.Relevance
		row.LabeledBy = j.LabeledBy
		row.Notes = j.Notes
		if !j.LabeledAt.IsZero() {
			row.LabeledAt = j.LabeledAt.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
	}
}

// FilterPartition returns a table holding only rows with the given
// partition tag. An empty tag returns the table unchanged.
func (t *Table) FilterPartition(partition string) *Table {
	if partition == "" {
		return t
	}
	out := &Table{
		Methods:    t.Methods,
		FieldNames: t.FieldNames,
	}
	for _, row := range t.Rows {
		if row.Partition == partition {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Queries returns the distinct queries in row order.
func (t *Table) Queries() []string {
	var queries []string
	seen := make(map[string]bool)
	for _, row := range t.Rows {
		if !seen[row.Query] {
			seen[row.Query] = true
			queries = append(queries, row.Query)
		}
	}
	return queries
}

// DetectMethods extracts method names from a header's <method>_rank
// columns, in header order.
func DetectMethods(header []string) []string {
	var methods []string
	for _, col := range header {
		if name, ok := strings.CutSuffix(col, "_rank"); ok && name != "" {
			methods = append(methods, name)
		}
	}
	return methods
}

func joinFoundBy(methods []string) string {
	return strings.Join(methods, foundBySeparator)
}

func splitFoundBy(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, foundBySeparator)
}
