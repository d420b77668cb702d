// Package corr implements the CORR EMM scheme: the SPX filter EMM is
// reused unchanged (spx.BuildTableFilterEMM), and this package adds
// the dependent-filter EMM and the two-orientation correlated-join
// EMM, deriving a per-row token for an arbitrary (table, column,
// value) bucket and FK edge.
package corr

import (
	"sort"

	"rsse-builder/pkg/cryptoprim"
	"rsse-builder/pkg/emm"
	"rsse-builder/pkg/predicate"
	"rsse-builder/pkg/rowenc"
	"rsse-builder/pkg/schema"
	"rsse-builder/pkg/store"
)

// BuildDepFilterEMM emits the t_dep_filter tokens for one (table,
// column) pair: one PRF_{T_P}(rid) token per matching row, with no
// counter — the bucket is probed by equality over the token column
// itself.
func BuildDepFilterEMM(master *cryptoprim.MasterKey, table, col string, rows []emm.RowWithRID) ([]store.DepFilterEntry, error) {
	values, buckets := emm.Bucket(rows, col)
	var out []store.DepFilterEntry
	for _, v := range values {
		pred := []byte(predicate.Filter(table, col, v))
		tp, err := cryptoprim.DeriveTrapdoor(master, pred)
		if err != nil {
			return nil, err
		}
		for _, rid := range buckets[v] {
			tok, err := cryptoprim.SecondaryTrapdoor(tp, rid)
			if err != nil {
				return nil, err
			}
			out = append(out, store.DepFilterEntry{Tok: tok})
		}
	}
	return out, nil
}

// BuildTableDepFilterEMM runs BuildDepFilterEMM over every non-key
// column of a declared table.
func BuildTableDepFilterEMM(master *cryptoprim.MasterKey, table *schema.Table, rows []emm.RowWithRID) ([]store.DepFilterEntry, error) {
	var out []store.DepFilterEntry
	for _, col := range table.NonKeyColumns() {
		entries, err := BuildDepFilterEMM(master, table.Name, col, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

// buildOrientation emits one direction of the correlated-join EMM:
// for each row of leftRows (in RID order, for determinism), the
// dense sequence of matching rightRows RIDs under leftCol == rightCol.
func buildOrientation(master *cryptoprim.MasterKey, leftTable, leftCol string, leftRows []emm.RowWithRID, rightTable, rightCol string, rightRows []emm.RowWithRID) ([]store.CorrJoinEntry, error) {
	pred := []byte(predicate.CorrJoin(leftTable, leftCol, rightTable, rightCol))
	tp, err := cryptoprim.DeriveTrapdoor(master, pred)
	if err != nil {
		return nil, err
	}
	_, rightBuckets := emm.Bucket(rightRows, rightCol)

	sorted := make([]emm.RowWithRID, len(leftRows))
	copy(sorted, leftRows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RID < sorted[j].RID })

	var out []store.CorrJoinEntry
	for _, lr := range sorted {
		v := rowenc.Lexeme(lr.Row[leftCol])
		matches := rightBuckets[v]
		if len(matches) == 0 {
			continue
		}
		s1, err := cryptoprim.SecondaryTrapdoor(tp, lr.RID, 1)
		if err != nil {
			return nil, err
		}
		s2, err := cryptoprim.SecondaryTrapdoor(tp, lr.RID, 2)
		if err != nil {
			return nil, err
		}
		for k, rRID := range matches {
			label, err := cryptoprim.Label(s1, uint64(k))
			if err != nil {
				return nil, err
			}
			value, err := cryptoprim.XorValue(s2, rRID, "v")
			if err != nil {
				return nil, err
			}
			out = append(out, store.CorrJoinEntry{Label: label, Value: value})
		}
	}
	return out, nil
}

// BuildCorrJoinEMM emits both orientations of one declared FK's
// correlated-join EMM: (child, parent) and (parent, child).
func BuildCorrJoinEMM(master *cryptoprim.MasterKey, fk schema.ForeignKey, childRows, parentRows []emm.RowWithRID) ([]store.CorrJoinEntry, error) {
	forward, err := buildOrientation(master, fk.Table, fk.Column, childRows, fk.RefTable, fk.RefColumn, parentRows)
	if err != nil {
		return nil, err
	}
	reverse, err := buildOrientation(master, fk.RefTable, fk.RefColumn, parentRows, fk.Table, fk.Column, childRows)
	if err != nil {
		return nil, err
	}
	return append(forward, reverse...), nil
}
