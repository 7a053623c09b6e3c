// Package metrics computes graded retrieval metrics over a judged
// evaluation pool.
package metrics

import (
	"math"
	"sort"
)

// RelevanceThreshold is the minimum grade counted as relevant for the
// binary metrics (precision, recall, MRR, AP).
const RelevanceThreshold = 1

// gain is the exponential graded gain used by DCG.
func gain(grade int) float64 {
	return math.Exp2(float64(grade)) - 1
}

// DCG calculates Discounted Cumulative Gain at K with exponential gain.
func DCG(grades []int, k int) float64 {
	if k > len(grades) {
		k = len(grades)
	}
	dcg := 0.0
	for i := 0; i < k; i++ {
		dcg += gain(grades[i]) / math.Log2(float64(i+2))
	}
	return dcg
}

// NDCG calculates Normalized DCG at K. ranked holds the grades in the
// method's rank order; poolGrades holds the grades of every judged
// document in the query's pool, from which the ideal ordering is taken.
// A query with no relevant documents has IDCG 0 and scores 0.
func NDCG(ranked []int, poolGrades []int, k int) float64 {
	ideal := make([]int, len(poolGrades))
	copy(ideal, poolGrades)
	sort.Sort(sort.Reverse(sort.IntSlice(ideal)))

	idcg := DCG(ideal, k)
	if idcg == 0 {
		return 0
	}
	return DCG(ranked, k) / idcg
}

// Precision calculates Precision at K. Rankings shorter than K are
// treated as padded with non-relevant results, so the denominator is
// always K.
func Precision(ranked []int, k int) float64 {
	if k == 0 {
		return 0
	}
	n := k
	if n > len(ranked) {
		n = len(ranked)
	}
	relevant := 0
	for i := 0; i < n; i++ {
		if ranked[i] >= RelevanceThreshold {
			relevant++
		}
	}
	return float64(relevant) / float64(k)
}

// Recall calculates Recall at K against the pool's relevant set.
// totalRelevant is the number of relevant documents in the query's pool;
// when it is zero the query scores 0.
func Recall(ranked []int, k int, totalRelevant int) float64 {
	if totalRelevant == 0 {
		return 0
	}
	if k > len(ranked) {
		k = len(ranked)
	}
	relevantInK := 0
	for i := 0; i < k; i++ {
		if ranked[i] >= RelevanceThreshold {
			relevantInK++
		}
	}
	return float64(relevantInK) / float64(totalRelevant)
}

// MRR calculates the reciprocal rank of the first relevant document in
// the full ranked list, or 0 when the list has none.
func MRR(ranked []int) float64 {
	for i, grade := range ranked {
		if grade >= RelevanceThreshold {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// AveragePrecision calculates Average Precision over the full ranked
// list, normalized by the number of relevant documents in the list.
func AveragePrecision(ranked []int) float64 {
	found := 0
	sumPrecision := 0.0
	for i, grade := range ranked {
		if grade >= RelevanceThreshold {
			found++
			sumPrecision += float64(found) / float64(i+1)
		}
	}
	if found == 0 {
		return 0
	}
	return sumPrecision / float64(found)
}
