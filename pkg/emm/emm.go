// Package emm holds the row-grouping plumbing shared by the EMM
// builders: Bucket (used by SPX, CORR, and PKFK) and EquiJoin (used by
// SPX's uncorrelated join), both ordered deterministically so the
// dense-counter assignment survives re-builds.
package emm

import (
	"sort"

	"rsse-builder/pkg/rowenc"
	"rsse-builder/pkg/source"
)

// RowWithRID pairs a plaintext row with its assigned RID (the output
// of ident.RIDAssigner fed through the row stream).
type RowWithRID struct {
	RID uint64
	Row source.Row
}

// Bucket groups RowWithRID.RID values by a column's rendered value.
// Keys are sorted for deterministic iteration.
func Bucket(rows []RowWithRID, col string) (values []string, buckets map[string][]uint64) {
	buckets = make(map[string][]uint64)
	seen := make(map[string]bool)
	for _, r := range rows {
		v := rowenc.Lexeme(r.Row[col])
		buckets[v] = append(buckets[v], r.RID)
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	sort.Strings(values)
	for _, v := range values {
		sort.Slice(buckets[v], func(i, j int) bool { return buckets[v][i] < buckets[v][j] })
	}
	return values, buckets
}

// JoinPair is one matching (RID_L, RID_R) pair from an equi-join.
type JoinPair struct {
	Left, Right uint64
}

// EquiJoin computes every (RID_L, RID_R) pair where leftRows[i]'s
// leftCol equals rightRows[j]'s rightCol, in a deterministic global
// order: by join value, then by left RID, then by right RID. This is
// a shuffle-by-partition-key, sort-each-partition, zip-with-a-dense-
// index fallback for substrates lacking native window operators.
func EquiJoin(leftRows []RowWithRID, leftCol string, rightRows []RowWithRID, rightCol string) []JoinPair {
	_, leftBuckets := Bucket(leftRows, leftCol)
	_, rightBuckets := Bucket(rightRows, rightCol)

	values := make(map[string]bool)
	for v := range leftBuckets {
		values[v] = true
	}
	ordered := make([]string, 0, len(values))
	for v := range values {
		ordered = append(ordered, v)
	}
	sort.Strings(ordered)

	var pairs []JoinPair
	for _, v := range ordered {
		lefts := leftBuckets[v]
		rights := rightBuckets[v]
		for _, l := range lefts {
			for _, r := range rights {
				pairs = append(pairs, JoinPair{Left: l, Right: r})
			}
		}
	}
	return pairs
}
