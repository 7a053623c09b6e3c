package judgments

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

var fileHeader = []string{"query", "doc_id", "relevance", "labeled_by", "labeled_at", "notes"}

// FileStore is a CSV-backed judgment store. Every Put is appended to the
// file and flushed before returning, so an interrupted labeling run keeps
// all completed judgments. Re-put pairs are deduplicated on load with the
// last record winning; Close rewrites the file in compacted form.
type FileStore struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *csv.Writer
	data map[key]RelevanceJudgment
}

// NewFileStore opens (or creates) a CSV judgment file.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.StorageError("creating judgments directory", err)
	}

	s := &FileStore{
		path: path,
		data: make(map[key]RelevanceJudgment),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.StorageError("opening judgments file", err)
	}
	s.file = file
	s.w = csv.NewWriter(file)

	// Fresh file: write the header before any records.
	if len(s.data) == 0 {
		if info, err := file.Stat(); err == nil && info.Size() == 0 {
			if err := s.w.Write(fileHeader); err != nil {
				file.Close()
				return nil, errors.StorageError("writing judgments header", err)
			}
			s.w.Flush()
		}
	}

	return s, nil
}

func (s *FileStore) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.StorageError("reading judgments file", err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(fileHeader)

	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.StorageError("parsing judgments file", err)
		}
		if first {
			first = false
			if record[0] == "query" {
				continue
			}
		}

		j, err := recordToJudgment(record)
		if err != nil {
			return err
		}
		s.data[key{j.Query, j.DocID}] = j
	}

	return nil
}

// Get returns the judgment for a pair, or nil when unjudged.
func (s *FileStore) Get(ctx context.Context, query, docID string) (*RelevanceJudgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.data[key{query, docID}]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

// Put appends the judgment to the file and flushes it immediately.
func (s *FileStore) Put(ctx context.Context, judgment RelevanceJudgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.w.Write(judgmentToRecord(judgment)); err != nil {
		return errors.StorageError("appending judgment", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return errors.StorageError("flushing judgment", err)
	}

	s.data[key{judgment.Query, judgment.DocID}] = judgment
	return nil
}

// List returns all judgments ordered by query then doc id.
func (s *FileStore) List(ctx context.Context) ([]RelevanceJudgment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RelevanceJudgment, 0, len(s.data))
	for _, j := range s.data {
		out = append(out, j)
	}
	sortJudgments(out)
	return out, nil
}

// Close compacts the file, dropping superseded append records.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.file.Close(); err != nil {
		return errors.StorageError("closing judgments file", err)
	}
	s.file = nil

	out := make([]RelevanceJudgment, 0, len(s.data))
	for _, j := range s.data {
		out = append(out, j)
	}
	sortJudgments(out)

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.StorageError("compacting judgments file", err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(fileHeader); err != nil {
		file.Close()
		return errors.StorageError("compacting judgments file", err)
	}
	for _, j := range out {
		if err := w.Write(judgmentToRecord(j)); err != nil {
			file.Close()
			return errors.StorageError("compacting judgments file", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return errors.StorageError("compacting judgments file", err)
	}
	if err := file.Close(); err != nil {
		return errors.StorageError("compacting judgments file", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.StorageError("replacing judgments file", err)
	}
	return nil
}

func judgmentToRecord(j RelevanceJudgment) []string {
	relevance := ""
	if j.Relevance != nil {
		relevance = strconv.Itoa(*j.Relevance)
	}
	return []string{
		j.Query,
		j.DocID,
		relevance,
		j.LabeledBy,
		j.LabeledAt.UTC().Format(time.RFC3339),
		j.Notes,
	}
}

func recordToJudgment(record []string) (RelevanceJudgment, error) {
	j := RelevanceJudgment{
		Query:     record[0],
		DocID:     record[1],
		LabeledBy: record[3],
		Notes:     record[5],
	}

	if record[2] != "" {
		rel, err := strconv.Atoi(record[2])
		if err != nil {
			return j, errors.StorageError("parsing relevance grade", err)
		}
		j.Relevance = &rel
	}

	if record[4] != "" {
		at, err := time.Parse(time.RFC3339, record[4])
		if err != nil {
			return j, errors.StorageError("parsing labeled_at timestamp", err)
		}
		j.LabeledAt = at
	}

	return j, nil
}

func sortJudgments(js []RelevanceJudgment) {
	sort.Slice(js, func(i, k int) bool {
		if js[i].Query != js[k].Query {
			return js[i].Query < js[k].Query
		}
		return js[i].DocID < js[k].DocID
	})
}
