// Package results loads ranked result runs, either from exported CSV
// files or live from a vector search backend.
package results

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/searchlab/search-eval/internal/pkg/errors"
	"github.com/searchlab/search-eval/internal/pool"
)

// Core run columns; everything else in the header rides along as a
// pass-through field.
var runColumns = map[string]bool{
	"query":  true,
	"doc_id": true,
	"rank":   true,
	"score":  true,
}

// Load parses one method's run from CSV. Required columns are query,
// doc_id, and rank; score is optional. Rows with an unparseable rank
// come back with rank 0 so the pool merge can count them as skipped
// instead of aborting the whole run.
func Load(r io.Reader) ([]pool.SearchHit, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.ValidationError("run file is empty or unreadable")
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"query", "doc_id", "rank"} {
		if _, ok := col[required]; !ok {
			return nil, errors.ValidationError("run file missing " + required + " column")
		}
	}

	var extras []string
	for _, name := range header {
		if !runColumns[name] {
			extras = append(extras, name)
		}
	}

	get := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var hits []pool.SearchHit
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ValidationError("run file row unreadable: " + err.Error())
		}

		hit := pool.SearchHit{
			Query: get(record, "query"),
			DocID: get(record, "doc_id"),
		}
		if rank, err := strconv.Atoi(get(record, "rank")); err == nil {
			hit.Rank = rank
		}
		if raw := get(record, "score"); raw != "" {
			if score, err := strconv.ParseFloat(raw, 64); err == nil {
				hit.Score = &score
			}
		}
		for _, name := range extras {
			if value := get(record, name); value != "" {
				if hit.Fields == nil {
					hit.Fields = make(map[string]string)
				}
				hit.Fields[name] = value
			}
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// LoadFile loads one method's run from a CSV file on disk.
func LoadFile(path string) ([]pool.SearchHit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.StorageError("open run file "+path, err)
	}
	defer f.Close()
	return Load(f)
}

// LoadFiles loads one run per method, aligned with the methods slice.
func LoadFiles(paths []string) ([][]pool.SearchHit, error) {
	runs := make([][]pool.SearchHit, 0, len(paths))
	for _, path := range paths {
		hits, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		runs = append(runs, hits)
	}
	return runs, nil
}
