// Package spx implements the SPX EMM scheme: a PiBAS-style filter EMM
// plus an uncorrelated-join EMM, deriving (label, value) pairs from a
// per-predicate trapdoor pair and a dense per-bucket counter — one
// bucket per (table, column, value) and one join per declared FK.
package spx

import (
	"rsse-builder/pkg/cryptoprim"
	"rsse-builder/pkg/emm"
	"rsse-builder/pkg/predicate"
	"rsse-builder/pkg/schema"
	"rsse-builder/pkg/store"
)

// BuildFilterEMM emits the t_filter entries for one (table, column)
// pair: one dense bucket per distinct value.
func BuildFilterEMM(master *cryptoprim.MasterKey, table, col string, rows []emm.RowWithRID) ([]store.FilterEntry, error) {
	values, buckets := emm.Bucket(rows, col)
	var out []store.FilterEntry
	for _, v := range values {
		pred := []byte(predicate.Filter(table, col, v))
		t1, t2, err := cryptoprim.DeriveTrapdoorPair(master, pred)
		if err != nil {
			return nil, err
		}
		for k, rid := range buckets[v] {
			label, err := cryptoprim.Label(t1, uint64(k))
			if err != nil {
				return nil, err
			}
			value, err := cryptoprim.XorValue(t2, rid, "v")
			if err != nil {
				return nil, err
			}
			out = append(out, store.FilterEntry{Label: label, Value: value})
		}
	}
	return out, nil
}

// BuildTableFilterEMM runs BuildFilterEMM over every non-key column of
// a declared table, unioning the results into one flat stream.
func BuildTableFilterEMM(master *cryptoprim.MasterKey, table *schema.Table, rows []emm.RowWithRID) ([]store.FilterEntry, error) {
	var out []store.FilterEntry
	for _, col := range table.NonKeyColumns() {
		entries, err := BuildFilterEMM(master, table.Name, col, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// BuildUncorrJoinEMM emits the t_uncorr_join entries for one declared
// FK: an equi-join of the two tables on the key pair, one EMM entry
// per matching row pair, counter monotone over the global join
// result. value_left/value_right follow the same (L, R) ordering as
// predicate.UncorrJoin's own canonicalization — the lexicographically
// smaller qualified name is always "l" — regardless of which side of
// the FK declaration is the child table, so a query processor deriving
// the same predicate string always lands on the matching side.
func BuildUncorrJoinEMM(master *cryptoprim.MasterKey, fk schema.ForeignKey, childRows, parentRows []emm.RowWithRID) ([]store.UncorrJoinEntry, error) {
	pairs := emm.EquiJoin(childRows, fk.Column, parentRows, fk.RefColumn)

	pred := []byte(predicate.UncorrJoin(fk.Table, fk.Column, fk.RefTable, fk.RefColumn))
	t1, t2, err := cryptoprim.DeriveTrapdoorPair(master, pred)
	if err != nil {
		return nil, err
	}

	childQualified := predicate.Qualified(fk.Table, fk.Column)
	refQualified := predicate.Qualified(fk.RefTable, fk.RefColumn)
	childIsLeft := !(refQualified < childQualified)

	out := make([]store.UncorrJoinEntry, 0, len(pairs))
	for k, p := range pairs {
		label, err := cryptoprim.Label(t1, uint64(k))
		if err != nil {
			return nil, err
		}
		leftRID, rightRID := p.Right, p.Left
		if childIsLeft {
			leftRID, rightRID = p.Left, p.Right
		}
		vl, err := cryptoprim.XorValue(t2, leftRID, "l")
		if err != nil {
			return nil, err
		}
		vr, err := cryptoprim.XorValue(t2, rightRID, "r")
		if err != nil {
			return nil, err
		}
		out = append(out, store.UncorrJoinEntry{Label: label, ValueLeft: vl, ValueRight: vr})
	}
	return out, nil
}
