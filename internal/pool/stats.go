package pool

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// MethodContribution summarizes one method's share of the pool.
type MethodContribution struct {
	Method string

	// Found is the number of pool documents this method contributed.
	Found int

	// Unique is the number of documents found by this method alone.
	Unique int

	// Coverage is Found relative to the theoretical maximum K x #queries.
	Coverage float64
}

// Statistics is derived from a pool on demand; it is never primary state.
type Statistics struct {
	DepthK         int
	TotalDocuments int
	NumQueries     int
	PerMethod      []MethodContribution

	// Overlap[n-1] is the count of documents found by exactly n methods.
	Overlap []int

	// Per-query pool size distribution.
	MinPerQuery  int
	MaxPerQuery  int
	MeanPerQuery float64
}

// Stats computes derived pooling statistics. Everything here is
// recomputable from the pool alone.
func Stats(p *Pool) *Statistics {
	s := &Statistics{
		DepthK:         p.DepthK,
		TotalDocuments: len(p.Documents),
		Overlap:        make([]int, len(p.Methods)),
	}

	found := make(map[string]int, len(p.Methods))
	unique := make(map[string]int, len(p.Methods))
	perQuery := make(map[string]int)

	for _, doc := range p.Documents {
		perQuery[doc.Query]++

		n := doc.NumMethodsFound()
		if n >= 1 && n <= len(p.Methods) {
			s.Overlap[n-1]++
		}
		for method := range doc.Methods {
			found[method]++
		}
		if n == 1 {
			unique[doc.FoundBy[0]]++
		}
	}

	s.NumQueries = len(perQuery)

	maxPerMethod := float64(p.DepthK * s.NumQueries)
	for _, method := range p.Methods {
		contrib := MethodContribution{
			Method: method,
			Found:  found[method],
			Unique: unique[method],
		}
		if maxPerMethod > 0 {
			contrib.Coverage = float64(found[method]) / maxPerMethod
		}
		s.PerMethod = append(s.PerMethod, contrib)
	}

	if s.NumQueries > 0 {
		sizes := make([]int, 0, s.NumQueries)
		total := 0
		for _, n := range perQuery {
			sizes = append(sizes, n)
			total += n
		}
		sort.Ints(sizes)
		s.MinPerQuery = sizes[0]
		s.MaxPerQuery = sizes[len(sizes)-1]
		s.MeanPerQuery = float64(total) / float64(s.NumQueries)
	}

	return s
}

// WriteReport renders a plain-text pooling statistics report.
func (s *Statistics) WriteReport(w io.Writer) error {
	var b strings.Builder
	line := strings.Repeat("-", 70)

	fmt.Fprintf(&b, "Pooling Statistics Report\n%s\n", line)
	fmt.Fprintf(&b, "Depth-K: %d\n", s.DepthK)
	fmt.Fprintf(&b, "Methods: %d\n", len(s.PerMethod))
	fmt.Fprintf(&b, "Queries: %d\n", s.NumQueries)
	fmt.Fprintf(&b, "Total unique documents in pool: %d\n\n", s.TotalDocuments)

	fmt.Fprintf(&b, "Documents found per method (coverage vs K x queries):\n")
	for _, m := range s.PerMethod {
		fmt.Fprintf(&b, "  %-20s %6d (%5.1f%%)\n", m.Method, m.Found, m.Coverage*100)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Document overlap by number of methods:\n")
	for i, count := range s.Overlap {
		label := fmt.Sprintf("%d method(s)", i+1)
		if i == len(s.Overlap)-1 {
			label = "all methods"
		}
		pct := 0.0
		if s.TotalDocuments > 0 {
			pct = float64(count) / float64(s.TotalDocuments) * 100
		}
		fmt.Fprintf(&b, "  found by %-12s %6d (%5.1f%%)\n", label, count, pct)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Unique contributions (found by only one method):\n")
	for _, m := range s.PerMethod {
		fmt.Fprintf(&b, "  %-20s %6d\n", m.Method, m.Unique)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "Documents per query: min %d, max %d, mean %.1f\n",
		s.MinPerQuery, s.MaxPerQuery, s.MeanPerQuery)

	_, err := io.WriteString(w, b.String())
	return err
}
