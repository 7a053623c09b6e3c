package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/pool"
)

// Fixed columns ahead of the per-method and pass-through blocks.
var leadColumns = []string{"query", "doc_id"}

var judgmentColumns = []string{"relevance", "labeled_by", "labeled_at", "notes"}

var provenanceColumns = []string{"found_by_methods", "num_methods_found", "partition"}

// Header returns the table's column order: query, doc_id, per-method
// rank/score pairs, provenance, pass-through fields, then judgment columns.
func (t *Table) Header() []string {
	header := append([]string(nil), leadColumns...)
	for _, method := range t.Methods {
		header = append(header, method+"_rank", method+"_score")
	}
	header = append(header, provenanceColumns...)
	header = append(header, t.FieldNames...)
	header = append(header, judgmentColumns...)
	return header
}

// Write emits the table as CSV with a deterministic column order.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return errors.StorageError("write table header", err)
	}

	for _, row := range t.Rows {
		record := []string{row.Query, row.DocID}
		for _, method := range t.Methods {
			entry, ok := row.Methods[method]
			if !ok {
				record = append(record, "", "")
				continue
			}
			rank := strconv.Itoa(entry.Rank)
			score := ""
			if entry.Score != nil {
				score = strconv.FormatFloat(*entry.Score, 'g', -1, 64)
			}
			record = append(record, rank, score)
		}
		record = append(record,
			joinFoundBy(row.FoundBy),
			strconv.Itoa(len(row.FoundBy)),
			row.Partition,
		)
		for _, name := range t.FieldNames {
			record = append(record, row.Fields[name])
		}
		relevance := ""
		if row.Relevance != nil {
			relevance = strconv.Itoa(*row.Relevance)
		}
		record = append(record, relevance, row.LabeledBy, row.LabeledAt, row.Notes)

		if err := cw.Write(record); err != nil {
			return errors.StorageError("write table row", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.StorageError("flush table", err)
	}
	return nil
}

// Read parses a pooled table from CSV, detecting methods from the
// <method>_rank columns.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.ValidationError("pooled table is empty or unreadable")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range leadColumns {
		if _, ok := col[required]; !ok {
			return nil, errors.ValidationError(fmt.Sprintf("pooled table missing %q column", required))
		}
	}

	t := &Table{Methods: DetectMethods(header)}

	known := make(map[string]bool)
	for _, name := range leadColumns {
		known[name] = true
	}
	for _, name := range provenanceColumns {
		known[name] = true
	}
	for _, name := range judgmentColumns {
		known[name] = true
	}
	for _, method := range t.Methods {
		known[method+"_rank"] = true
		known[method+"_score"] = true
	}
	for _, name := range header {
		if !known[name] {
			t.FieldNames = append(t.FieldNames, name)
		}
	}

	get := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ValidationError(fmt.Sprintf("pooled table row %d: %v", line, err))
		}
		line++

		row := &Row{
			Query:     get(record, "query"),
			DocID:     get(record, "doc_id"),
			Partition: get(record, "partition"),
			FoundBy:   splitFoundBy(get(record, "found_by_methods")),
			Methods:   make(map[string]pool.MethodEntry),
			Fields:    make(map[string]string),
		}

		for _, method := range t.Methods {
			rawRank := get(record, method+"_rank")
			if rawRank == "" {
				continue
			}
			rank, err := strconv.Atoi(rawRank)
			if err != nil {
				return nil, errors.ValidationError(fmt.Sprintf("row %d: bad %s_rank %q", line, method, rawRank))
			}
			entry := pool.MethodEntry{Rank: rank}
			if rawScore := get(record, method+"_score"); rawScore != "" {
				score, err := strconv.ParseFloat(rawScore, 64)
				if err != nil {
					return nil, errors.ValidationError(fmt.Sprintf("row %d: bad %s_score %q", line, method, rawScore))
				}
				entry.Score = &score
			}
			row.Methods[method] = entry
		}

		for _, name := range t.FieldNames {
			row.Fields[name] = get(record, name)
		}

		if raw := strings.TrimSpace(get(record, "relevance")); raw != "" {
			grade, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errors.ValidationError(fmt.Sprintf("row %d: bad relevance %q", line, raw))
			}
			row.Relevance = &grade
		}
		row.LabeledBy = get(record, "labeled_by")
		row.LabeledAt = get(record, "labeled_at")
		row.Notes = get(record, "notes")

		t.Rows = append(t.Rows, row)
	}

	return t, nil
}
