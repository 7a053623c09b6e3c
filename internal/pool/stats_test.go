package pool

import (
	"strings"
	"testing"
)

func statsFixture(t *testing.T) *Pool {
	t.Helper()
	m := mustMerger(t, 3)
	methods, runs := twoMethodFixture()

	pool, _, err := m.Merge(methods, runs)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	return pool
}

func TestStats(t *testing.T) {
	stats := Stats(statsFixture(t))

	if stats.TotalDocuments != 4 {
		t.Errorf("TotalDocuments = %d, want 4", stats.TotalDocuments)
	}
	if stats.NumQueries != 1 {
		t.Errorf("NumQueries = %d, want 1", stats.NumQueries)
	}

	byMethod := make(map[string]MethodContribution)
	for _, mc := range stats.PerMethod {
		byMethod[mc.Method] = mc
	}

	if byMethod["A"].Found != 3 || byMethod["B"].Found != 3 {
		t.Errorf("Found = A:%d B:%d, want 3 each", byMethod["A"].Found, byMethod["B"].Found)
	}
	if byMethod["A"].Unique != 1 || byMethod["B"].Unique != 1 {
		t.Errorf("Unique = A:%d B:%d, want 1 each", byMethod["A"].Unique, byMethod["B"].Unique)
	}

	// Coverage is relative to K x queries = 3.
	if byMethod["A"].Coverage != 1.0 {
		t.Errorf("A Coverage = %f, want 1.0", byMethod["A"].Coverage)
	}

	if stats.MinPerQuery != 4 || stats.MaxPerQuery != 4 || stats.MeanPerQuery != 4.0 {
		t.Errorf("per-query stats = min %d max %d mean %.1f, want 4/4/4.0",
			stats.MinPerQuery, stats.MaxPerQuery, stats.MeanPerQuery)
	}
}

func TestStatsEmptyPool(t *testing.T) {
	stats := Stats(&Pool{DepthK: 10, Methods: []string{"A"}})

	if stats.TotalDocuments != 0 || stats.NumQueries != 0 {
		t.Errorf("empty pool stats = %+v", stats)
	}
	if stats.PerMethod[0].Coverage != 0 {
		t.Errorf("Coverage on empty pool = %f, want 0", stats.PerMethod[0].Coverage)
	}
}

func TestWriteReport(t *testing.T) {
	var sb strings.Builder
	if err := Stats(statsFixture(t)).WriteReport(&sb); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	out := sb.String()
	for _, want := range []string{
		"Depth-K: 3",
		"Total unique documents in pool: 4",
		"found by all methods",
		"Unique contributions",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}
